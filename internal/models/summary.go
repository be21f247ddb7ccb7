package models

import "time"

// UsageEntry is one recorded usage event at full timestamp resolution.
type UsageEntry struct {
	Timestamp time.Time   `json:"timestamp"`
	Tokens    TokenTotals `json:"tokens"`
}

// UsageBucket is the rollup of all usage within one calendar period
// (hour, day, or month depending on the collection it belongs to).
type UsageBucket struct {
	PeriodStart time.Time   `json:"period_start"`
	Tokens      TokenTotals `json:"tokens"`
}

// UsageSummary is the read-only projection of one account's ledger.
type UsageSummary struct {
	AccountID      string        `json:"account_id"`
	Plan           string        `json:"plan,omitempty"`
	Totals         TokenTotals   `json:"totals"`
	LastUpdated    time.Time     `json:"last_updated"`
	TokensLastHour TokenTotals   `json:"tokens_last_hour"`
	RawEntries     []UsageEntry  `json:"raw_entries"`
	HourlyBuckets  []UsageBucket `json:"hourly_buckets"`
	DailyBuckets   []UsageBucket `json:"daily_buckets"`
	MonthlyBuckets []UsageBucket `json:"monthly_buckets"`
}
