package ledger

import (
	"sort"
	"time"

	"github.com/d-harlan/agentledger/internal/models"
)

// updateLastHour runs the rollup cascade, prunes raw entries past the
// retention horizon, and recomputes the last-hour aggregate. Invoked on
// every usage-recording mutation; the compaction is idempotent, so
// re-running it with the same clock changes nothing.
func (d *accountUsageData) updateLastHour(now time.Time) {
	d.compactUsage(now)

	hourCutoff := now.Add(-time.Hour)
	historyCutoff := now.AddDate(0, 0, -rawRetentionDays)

	kept := d.RawEntries[:0]
	for _, entry := range d.RawEntries {
		if !entry.Timestamp.Before(historyCutoff) {
			kept = append(kept, entry)
		}
	}
	d.RawEntries = kept

	var totals models.TokenTotals
	for _, entry := range d.RawEntries {
		if entry.Timestamp.Before(hourCutoff) {
			continue
		}
		totals.AddTotals(entry.Tokens)
	}
	d.TokensLastHour = totals
}

// compactUsage rolls raw entries older than one hour into hourly buckets,
// then cascades hourly into daily and daily into monthly buckets.
func (d *accountUsageData) compactUsage(now time.Time) {
	recentCutoff := now.Add(-time.Hour)
	rollover := make(map[time.Time]models.TokenTotals)
	recent := d.RawEntries[:0]

	for _, entry := range d.RawEntries {
		if !entry.Timestamp.Before(recentCutoff) {
			recent = append(recent, entry)
			continue
		}
		key := truncateToHour(entry.Timestamp)
		totals := rollover[key]
		totals.AddTotals(entry.Tokens)
		rollover[key] = totals
	}
	d.RawEntries = recent

	for periodStart, tokens := range rollover {
		d.HourlyBuckets = addToBucket(d.HourlyBuckets, periodStart, tokens)
	}

	d.compactHourlyBuckets(now)
	d.compactDailyBuckets(now)
}

// compactHourlyBuckets migrates hourly buckets older than 24 hours
// (relative to the current truncated hour) into daily buckets.
func (d *accountUsageData) compactHourlyBuckets(now time.Time) {
	if len(d.HourlyBuckets) == 0 {
		return
	}

	cutoff := truncateToHour(now).Add(-24 * time.Hour)
	rollover := make(map[time.Time]models.TokenTotals)
	remaining := d.HourlyBuckets[:0]

	for _, bucket := range d.HourlyBuckets {
		if bucket.PeriodStart.Before(cutoff) {
			key := truncateToDay(bucket.PeriodStart)
			totals := rollover[key]
			totals.AddTotals(bucket.Tokens)
			rollover[key] = totals
			continue
		}
		remaining = append(remaining, bucket)
	}
	d.HourlyBuckets = remaining

	for periodStart, tokens := range rollover {
		d.DailyBuckets = addToBucket(d.DailyBuckets, periodStart, tokens)
	}
}

// compactDailyBuckets migrates daily buckets older than 30 days into
// monthly buckets. Monthly buckets are never pruned.
func (d *accountUsageData) compactDailyBuckets(now time.Time) {
	if len(d.DailyBuckets) == 0 {
		return
	}

	cutoff := truncateToDay(now).AddDate(0, 0, -30)
	rollover := make(map[time.Time]models.TokenTotals)
	remaining := d.DailyBuckets[:0]

	for _, bucket := range d.DailyBuckets {
		if bucket.PeriodStart.Before(cutoff) {
			key := truncateToMonth(bucket.PeriodStart)
			totals := rollover[key]
			totals.AddTotals(bucket.Tokens)
			rollover[key] = totals
			continue
		}
		remaining = append(remaining, bucket)
	}
	d.DailyBuckets = remaining

	for periodStart, tokens := range rollover {
		d.MonthlyBuckets = addToBucket(d.MonthlyBuckets, periodStart, tokens)
	}
}

// addToBucket merges tokens into the bucket for periodStart, inserting a
// new bucket at the sorted position when the period is not present yet.
func addToBucket(buckets []usageBucket, periodStart time.Time, tokens models.TokenTotals) []usageBucket {
	idx := sort.Search(len(buckets), func(i int) bool {
		return !buckets[i].PeriodStart.Before(periodStart)
	})
	if idx < len(buckets) && buckets[idx].PeriodStart.Equal(periodStart) {
		buckets[idx].Tokens.AddTotals(tokens)
		return buckets
	}
	buckets = append(buckets, usageBucket{})
	copy(buckets[idx+1:], buckets[idx:])
	buckets[idx] = usageBucket{PeriodStart: periodStart, Tokens: tokens}
	return buckets
}

// Truncation uses calendar UTC boundaries, not rolling windows.

func truncateToHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

func truncateToDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
