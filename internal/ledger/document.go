// Package ledger owns the durable per-account usage documents: the
// rollup/compaction engine, the rate-limit warning dedup state machine,
// the locked atomic-persistence protocol, and the read-only query surface.
package ledger

import (
	"time"

	"github.com/d-harlan/agentledger/internal/models"
)

const (
	usageVersion = 1
	usageSubdir  = "usage"

	// Raw entries older than this are dropped outright; everything in
	// between lives in the hourly/daily/monthly bucket cascade.
	rawRetentionDays = 183
)

// tokenWindowEntry is one raw usage event inside the persisted document.
type tokenWindowEntry struct {
	Timestamp time.Time          `json:"timestamp"`
	Tokens    models.TokenTotals `json:"tokens"`
}

// usageBucket aggregates usage for one calendar period. Bucket slices are
// kept sorted ascending by PeriodStart with at most one entry per period.
type usageBucket struct {
	PeriodStart time.Time          `json:"period_start"`
	Tokens      models.TokenTotals `json:"tokens"`
}

// warningRecord tracks the dedup state for one warning threshold within a
// scope. LoggedAt unset means the threshold may emit on its next breach.
type warningRecord struct {
	Threshold float64    `json:"threshold"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
	LoggedAt  *time.Time `json:"logged_at,omitempty"`
}

// rateLimitInfo holds the latest provider snapshot, the derived absolute
// reset instants, and the per-scope warning logs.
type rateLimitInfo struct {
	Snapshot               *models.RateLimitSnapshot `json:"snapshot,omitempty"`
	ObservedAt             *time.Time                `json:"observed_at,omitempty"`
	PrimaryNextResetAt     *time.Time                `json:"primary_next_reset_at,omitempty"`
	SecondaryNextResetAt   *time.Time                `json:"secondary_next_reset_at,omitempty"`
	LastUsageLimitHitAt    *time.Time                `json:"last_usage_limit_hit_at,omitempty"`
	PrimaryThresholdLogs   []warningRecord           `json:"primary_threshold_logs,omitempty"`
	SecondaryThresholdLogs []warningRecord           `json:"secondary_threshold_logs,omitempty"`
}

// accountUsageData is the persisted root of one account's ledger file.
type accountUsageData struct {
	Version        int                `json:"version"`
	AccountID      string             `json:"account_id"`
	Plan           string             `json:"plan,omitempty"`
	LastUpdated    time.Time          `json:"last_updated"`
	Totals         models.TokenTotals `json:"totals"`
	RawEntries     []tokenWindowEntry `json:"raw_entries"`
	HourlyBuckets  []usageBucket      `json:"hourly_buckets"`
	DailyBuckets   []usageBucket      `json:"daily_buckets"`
	MonthlyBuckets []usageBucket      `json:"monthly_buckets"`
	TokensLastHour models.TokenTotals `json:"tokens_last_hour"`
	RateLimit      *rateLimitInfo     `json:"rate_limit,omitempty"`
}

func newAccountUsageData(accountID string) *accountUsageData {
	return &accountUsageData{
		Version:     usageVersion,
		AccountID:   accountID,
		LastUpdated: time.Now().UTC(),
	}
}

// applyPlan updates the stored plan label when a non-empty plan is
// supplied and differs from the stored one.
func (d *accountUsageData) applyPlan(plan string) {
	if plan != "" && d.Plan != plan {
		d.Plan = plan
	}
}

// ensureRateLimit returns the rate-limit section, creating it on first use.
func (d *accountUsageData) ensureRateLimit() *rateLimitInfo {
	if d.RateLimit == nil {
		d.RateLimit = &rateLimitInfo{}
	}
	return d.RateLimit
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func copyTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
