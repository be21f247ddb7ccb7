package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/d-harlan/agentledger/internal/models"
)

func totalsOf(n uint64) models.TokenTotals {
	return models.TokenTotals{TotalTokens: n}
}

func TestAddToBucket_OutOfOrderStaysSortedAndUnique(t *testing.T) {
	p1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	p2 := time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC)

	var buckets []usageBucket
	buckets = addToBucket(buckets, p1, totalsOf(1))
	buckets = addToBucket(buckets, p2, totalsOf(2))
	buckets = addToBucket(buckets, p1, totalsOf(3))

	if len(buckets) != 2 {
		t.Fatalf("len(buckets) = %d, want 2", len(buckets))
	}
	if !buckets[0].PeriodStart.Equal(p1) || !buckets[1].PeriodStart.Equal(p2) {
		t.Errorf("buckets not sorted ascending: %v, %v", buckets[0].PeriodStart, buckets[1].PeriodStart)
	}
	if buckets[0].Tokens.TotalTokens != 4 {
		t.Errorf("merged bucket totals = %d, want 4", buckets[0].Tokens.TotalTokens)
	}
	if buckets[1].Tokens.TotalTokens != 2 {
		t.Errorf("second bucket totals = %d, want 2", buckets[1].Tokens.TotalTokens)
	}
}

func TestTruncation_CalendarBoundaries(t *testing.T) {
	ts := time.Date(2026, 8, 24, 13, 45, 59, 123456789, time.UTC)

	if got, want := truncateToHour(ts), time.Date(2026, 8, 24, 13, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("truncateToHour = %v, want %v", got, want)
	}
	if got, want := truncateToDay(ts), time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("truncateToDay = %v, want %v", got, want)
	}
	if got, want := truncateToMonth(ts), time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("truncateToMonth = %v, want %v", got, want)
	}
}

func TestUpdateLastHour_CascadesThroughGranularities(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 30, 0, 0, time.UTC)
	data := newAccountUsageData("acct-1")
	data.RawEntries = []tokenWindowEntry{
		{Timestamp: now.Add(-30 * time.Minute), Tokens: totalsOf(1)}, // stays raw
		{Timestamp: now.Add(-2 * time.Hour), Tokens: totalsOf(2)},    // hourly bucket
		{Timestamp: now.Add(-26 * time.Hour), Tokens: totalsOf(4)},   // cascades to daily
		{Timestamp: now.AddDate(0, 0, -40), Tokens: totalsOf(8)},     // cascades to monthly
	}

	data.updateLastHour(now)

	if len(data.RawEntries) != 1 {
		t.Fatalf("raw entries = %d, want 1", len(data.RawEntries))
	}
	if len(data.HourlyBuckets) != 1 {
		t.Fatalf("hourly buckets = %d, want 1", len(data.HourlyBuckets))
	}
	if data.HourlyBuckets[0].Tokens.TotalTokens != 2 {
		t.Errorf("hourly bucket totals = %d, want 2", data.HourlyBuckets[0].Tokens.TotalTokens)
	}
	if len(data.DailyBuckets) != 1 {
		t.Fatalf("daily buckets = %d, want 1", len(data.DailyBuckets))
	}
	if data.DailyBuckets[0].Tokens.TotalTokens != 4 {
		t.Errorf("daily bucket totals = %d, want 4", data.DailyBuckets[0].Tokens.TotalTokens)
	}
	if len(data.MonthlyBuckets) != 1 {
		t.Fatalf("monthly buckets = %d, want 1", len(data.MonthlyBuckets))
	}
	if data.MonthlyBuckets[0].Tokens.TotalTokens != 8 {
		t.Errorf("monthly bucket totals = %d, want 8", data.MonthlyBuckets[0].Tokens.TotalTokens)
	}
	if data.TokensLastHour.TotalTokens != 1 {
		t.Errorf("tokens last hour = %d, want 1", data.TokensLastHour.TotalTokens)
	}
}

func TestUpdateLastHour_SameHourEntriesMergeIntoOneBucket(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	data := newAccountUsageData("acct-1")
	data.RawEntries = []tokenWindowEntry{
		{Timestamp: now.Add(-3*time.Hour - 10*time.Minute), Tokens: totalsOf(5)},
		{Timestamp: now.Add(-3*time.Hour - 40*time.Minute), Tokens: totalsOf(7)},
	}

	data.updateLastHour(now)

	if len(data.HourlyBuckets) != 1 {
		t.Fatalf("hourly buckets = %d, want 1 (same calendar hour)", len(data.HourlyBuckets))
	}
	if data.HourlyBuckets[0].Tokens.TotalTokens != 12 {
		t.Errorf("merged totals = %d, want 12", data.HourlyBuckets[0].Tokens.TotalTokens)
	}
}

func TestUpdateLastHour_Idempotent(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 30, 0, 0, time.UTC)
	data := newAccountUsageData("acct-1")
	data.RawEntries = []tokenWindowEntry{
		{Timestamp: now.Add(-10 * time.Minute), Tokens: totalsOf(1)},
		{Timestamp: now.Add(-5 * time.Hour), Tokens: totalsOf(2)},
		{Timestamp: now.Add(-50 * time.Hour), Tokens: totalsOf(3)},
		{Timestamp: now.AddDate(0, 0, -45), Tokens: totalsOf(4)},
	}

	data.updateLastHour(now)
	first, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	data.updateLastHour(now)
	second, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	if string(first) != string(second) {
		t.Errorf("second compaction pass changed the document:\nfirst:  %s\nsecond: %s", first, second)
	}
}

func TestUpdateLastHour_DropsEntriesPastRetentionHorizon(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	data := newAccountUsageData("acct-1")
	data.RawEntries = []tokenWindowEntry{
		{Timestamp: now.Add(-30 * time.Minute), Tokens: totalsOf(1)},
		{Timestamp: now.AddDate(0, 0, -200), Tokens: totalsOf(2)},
	}

	data.updateLastHour(now)

	for _, entry := range data.RawEntries {
		if entry.Timestamp.Before(now.AddDate(0, 0, -rawRetentionDays)) {
			t.Errorf("entry at %v survived past the retention horizon", entry.Timestamp)
		}
	}
}
