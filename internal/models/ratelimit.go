package models

import "time"

// RateLimitSnapshot is the provider's rate-limit reading attached to a
// response. Reset hints are relative ("resets in N seconds"); the ledger
// converts them to absolute timestamps when the snapshot is recorded.
type RateLimitSnapshot struct {
	// Percentage (0-100) of the primary window that has been consumed.
	PrimaryUsedPercent float64 `json:"primary_used_percent"`
	// Percentage (0-100) of the secondary window that has been consumed.
	SecondaryUsedPercent float64 `json:"secondary_used_percent"`
	// Size of the primary window relative to secondary (0-100).
	PrimaryToSecondaryRatioPercent float64 `json:"primary_to_secondary_ratio_percent"`
	// Rolling window duration for the primary limit, in minutes.
	PrimaryWindowMinutes uint64 `json:"primary_window_minutes"`
	// Rolling window duration for the secondary limit, in minutes.
	SecondaryWindowMinutes uint64 `json:"secondary_window_minutes"`
	// Seconds until the primary window resets, if reported by the API.
	PrimaryResetAfterSeconds *uint64 `json:"primary_reset_after_seconds,omitempty"`
	// Seconds until the secondary window resets, if reported by the API.
	SecondaryResetAfterSeconds *uint64 `json:"secondary_reset_after_seconds,omitempty"`
}

// StoredRateLimitSnapshot is the read-only projection of one account's
// rate-limit state returned by the directory scan. A missing secondary
// reset mirrors the primary one: the secondary limit is treated as
// following the same window, not as having no policy.
type StoredRateLimitSnapshot struct {
	AccountID            string             `json:"account_id"`
	Plan                 string             `json:"plan,omitempty"`
	Snapshot             *RateLimitSnapshot `json:"snapshot,omitempty"`
	ObservedAt           *time.Time         `json:"observed_at,omitempty"`
	PrimaryNextResetAt   *time.Time         `json:"primary_next_reset_at,omitempty"`
	SecondaryNextResetAt *time.Time         `json:"secondary_next_reset_at,omitempty"`
	LastUsageLimitHitAt  *time.Time         `json:"last_usage_limit_hit_at,omitempty"`
}
