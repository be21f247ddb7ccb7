package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/d-harlan/agentledger/internal/logger"
	"github.com/d-harlan/agentledger/internal/models"
)

// LoadAccountUsage returns the read-only projection of one account's
// ledger, or nil when the account has no file. An unparsable file is
// reported as absent rather than as an error.
func LoadAccountUsage(home, accountID string) (*models.UsageSummary, error) {
	path := accountFilePath(home, accountID)
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var data accountUsageData
	if err := json.Unmarshal(raw, &data); err != nil {
		logger.Warn("skipping unparsable usage file", "path", path, "error", err)
		return nil, nil
	}

	summary := &models.UsageSummary{
		AccountID:      data.AccountID,
		Plan:           data.Plan,
		Totals:         data.Totals,
		LastUpdated:    data.LastUpdated,
		TokensLastHour: data.TokensLastHour,
		RawEntries:     make([]models.UsageEntry, 0, len(data.RawEntries)),
		HourlyBuckets:  projectBuckets(data.HourlyBuckets),
		DailyBuckets:   projectBuckets(data.DailyBuckets),
		MonthlyBuckets: projectBuckets(data.MonthlyBuckets),
	}
	for _, entry := range data.RawEntries {
		summary.RawEntries = append(summary.RawEntries, models.UsageEntry{
			Timestamp: entry.Timestamp,
			Tokens:    entry.Tokens,
		})
	}
	return summary, nil
}

// ListRateLimitSnapshots scans every account file under <home>/usage and
// projects its rate-limit state. Files that cannot be read or parsed are
// skipped rather than aborting the scan. An absent secondary reset is
// reported as mirroring the primary one.
func ListRateLimitSnapshots(home string) ([]models.StoredRateLimitSnapshot, error) {
	dir := usageDir(home)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read usage directory: %w", err)
	}

	var results []models.StoredRateLimitSnapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("skipping unreadable usage file", "path", path, "error", err)
			continue
		}
		var data accountUsageData
		if err := json.Unmarshal(raw, &data); err != nil {
			logger.Warn("skipping unparsable usage file", "path", path, "error", err)
			continue
		}

		var info rateLimitInfo
		if data.RateLimit != nil {
			info = *data.RateLimit
		}
		secondary := info.SecondaryNextResetAt
		if secondary == nil {
			secondary = info.PrimaryNextResetAt
		}
		results = append(results, models.StoredRateLimitSnapshot{
			AccountID:            data.AccountID,
			Plan:                 data.Plan,
			Snapshot:             info.Snapshot,
			ObservedAt:           copyTimePtr(info.ObservedAt),
			PrimaryNextResetAt:   copyTimePtr(info.PrimaryNextResetAt),
			SecondaryNextResetAt: copyTimePtr(secondary),
			LastUsageLimitHitAt:  copyTimePtr(info.LastUsageLimitHitAt),
		})
	}
	return results, nil
}

func projectBuckets(buckets []usageBucket) []models.UsageBucket {
	out := make([]models.UsageBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, models.UsageBucket{PeriodStart: b.PeriodStart, Tokens: b.Tokens})
	}
	return out
}

// AccountFilePath exposes where an account's ledger file lives, for
// display and for tests in downstream packages.
func AccountFilePath(home, accountID string) string {
	return accountFilePath(home, accountID)
}

// WarningLogPath exposes where the shared audit log lives.
func WarningLogPath(home string) string {
	return warningLogPath(home)
}
