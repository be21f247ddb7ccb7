package ledger

import (
	"time"

	"github.com/d-harlan/agentledger/internal/models"
)

// RecordTokenUsage folds one usage observation into the account's ledger:
// lifetime totals, a new raw entry, and a rollup/compaction pass.
func RecordTokenUsage(home, accountID, plan string, usage models.TokenUsage, observedAt time.Time) error {
	return withAccountFile(home, accountID, plan, func(data *accountUsageData) {
		data.LastUpdated = observedAt
		data.Totals.AddUsage(usage)
		data.RawEntries = append(data.RawEntries, tokenWindowEntry{
			Timestamp: observedAt,
			Tokens:    models.TotalsFromUsage(usage),
		})
		data.updateLastHour(observedAt)
	})
}

// RecordRateLimitSnapshot stores the latest provider snapshot and derives
// absolute reset instants from its relative "resets in N seconds" hints.
func RecordRateLimitSnapshot(home, accountID, plan string, snapshot models.RateLimitSnapshot, observedAt time.Time) error {
	return withAccountFile(home, accountID, plan, func(data *accountUsageData) {
		data.LastUpdated = observedAt
		info := data.ensureRateLimit()
		snap := snapshot
		info.Snapshot = &snap
		info.ObservedAt = timePtr(observedAt)
		info.PrimaryNextResetAt = resetFromHint(observedAt, snapshot.PrimaryResetAfterSeconds)
		info.SecondaryNextResetAt = resetFromHint(observedAt, snapshot.SecondaryResetAfterSeconds)
	})
}

// RecordUsageLimitHint marks that the account hit its usage limit. When a
// relative reset hint is supplied, both reset instants are set to it.
func RecordUsageLimitHint(home, accountID, plan string, resetsInSeconds *uint64, observedAt time.Time) error {
	return withAccountFile(home, accountID, plan, func(data *accountUsageData) {
		data.LastUpdated = observedAt
		info := data.ensureRateLimit()
		info.LastUsageLimitHitAt = timePtr(observedAt)
		if resetsInSeconds != nil {
			reset := observedAt.Add(time.Duration(*resetsInSeconds) * time.Second)
			info.PrimaryNextResetAt = timePtr(reset)
			info.SecondaryNextResetAt = timePtr(reset)
		}
	})
}

func resetFromHint(observedAt time.Time, seconds *uint64) *time.Time {
	if seconds == nil {
		return nil
	}
	return timePtr(observedAt.Add(time.Duration(*seconds) * time.Second))
}
