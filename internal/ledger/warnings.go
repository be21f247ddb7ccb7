package ledger

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/gofrs/flock"

	"github.com/d-harlan/agentledger/internal/logger"
)

// WarningScope names the rate-limit tier a warning concerns.
type WarningScope string

const (
	WarningScopePrimary   WarningScope = "primary"
	WarningScopeSecondary WarningScope = "secondary"
)

const (
	// How long warnings stay muted when reset metadata is missing. Bounds
	// the suppression window so warnings make forward progress even if
	// the provider never reports reset times again.
	unknownResetRelogInterval = 24 * time.Hour

	// Slack when comparing reset timestamps, so clock and measurement
	// jitter does not trigger spurious relogs.
	resetPassedTolerance = 5 * time.Second

	// Threshold values are human-chosen percentages; equality only needs
	// to absorb float representation noise.
	thresholdEpsilon = 1e-9
)

// recordThresholdLog decides whether a breach observation for threshold
// should emit a new warning or be suppressed as a repeat within the same
// reset window, updating the stored record either way. Rules, in order:
// a reset moving more than the tolerance earlier clears the log (the
// window changed discontinuously); an elapsed reset clears it unless the
// existing log already belongs to the new window; with reset metadata
// missing on either side, a log older than the fallback interval clears.
// The stored reset is then replaced unconditionally, and the record emits
// iff it has no log timestamp left.
func recordThresholdLog(logs []warningRecord, threshold float64, resetAt *time.Time, observedAt time.Time) ([]warningRecord, bool) {
	for i := range logs {
		if math.Abs(logs[i].Threshold-threshold) >= thresholdEpsilon {
			continue
		}
		rec := &logs[i]
		prevReset := rec.ResetAt
		prevLogged := rec.LoggedAt

		resetMovedEarlier := prevReset != nil && resetAt != nil &&
			resetAt.Add(resetPassedTolerance).Before(*prevReset)

		loggedAfterPrevReset := prevLogged != nil && prevReset != nil &&
			!prevLogged.Before(*prevReset)

		prevResetElapsed := prevReset != nil &&
			!observedAt.Add(resetPassedTolerance).Before(*prevReset)

		unknownResetElapsed := (prevReset == nil || resetAt == nil) &&
			prevLogged != nil &&
			observedAt.Sub(*prevLogged) >= unknownResetRelogInterval

		shouldClear := false
		switch {
		case resetMovedEarlier:
			shouldClear = true
		case prevResetElapsed && !loggedAfterPrevReset:
			shouldClear = true
		case unknownResetElapsed:
			shouldClear = true
		}

		rec.ResetAt = copyTimePtr(resetAt)
		if shouldClear {
			rec.LoggedAt = nil
		}
		if rec.LoggedAt == nil {
			rec.LoggedAt = timePtr(observedAt)
			return logs, true
		}
		return logs, false
	}

	logs = append(logs, warningRecord{
		Threshold: threshold,
		ResetAt:   copyTimePtr(resetAt),
		LoggedAt:  timePtr(observedAt),
	})
	return logs, true
}

// RecordRateLimitWarning runs the dedup state machine for (account,
// scope, threshold) and, when it reports emit, appends one line to the
// shared audit log after the ledger mutation has been persisted. The
// returned bool says whether a new audit line was written.
func RecordRateLimitWarning(home, accountID, plan string, scope WarningScope, threshold float64, resetAt *time.Time, observedAt time.Time, message string) (bool, error) {
	emitted := false
	err := withAccountFile(home, accountID, plan, func(data *accountUsageData) {
		data.LastUpdated = observedAt
		info := data.ensureRateLimit()
		switch scope {
		case WarningScopeSecondary:
			info.SecondaryThresholdLogs, emitted = recordThresholdLog(info.SecondaryThresholdLogs, threshold, resetAt, observedAt)
		default:
			info.PrimaryThresholdLogs, emitted = recordThresholdLog(info.PrimaryThresholdLogs, threshold, resetAt, observedAt)
		}
	})
	if err != nil {
		return false, err
	}

	if emitted {
		if err := appendWarningLog(home, accountID, plan, scope, threshold, resetAt, observedAt, message); err != nil {
			return false, err
		}
	}
	return emitted, nil
}

// appendWarningLog appends one tab-separated audit line to the shared
// warning log. The log file has its own lock, held only for the append.
func appendWarningLog(home, accountID, plan string, scope WarningScope, threshold float64, resetAt *time.Time, observedAt time.Time, message string) error {
	dir := usageDir(home)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create usage directory: %w", err)
	}

	path := warningLogPath(home)
	lock := flock.New(path)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock %s: %w", path, err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Error("failed to release warning log lock", "path", path, "error", err)
		}
	}()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open warning log: %w", err)
	}

	planField := plan
	if planField == "" {
		planField = "-"
	}
	resetField := "-"
	if resetAt != nil {
		resetField = resetAt.Format(time.RFC3339)
	}
	line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		observedAt.Format(time.RFC3339),
		accountID,
		planField,
		strconv.FormatFloat(threshold, 'f', 0, 64),
		scope,
		resetField,
		message,
	)

	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to append warning log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close warning log: %w", err)
	}
	return nil
}
