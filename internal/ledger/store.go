package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/d-harlan/agentledger/internal/logger"
)

func usageDir(home string) string {
	return filepath.Join(home, usageSubdir)
}

func accountFilePath(home, accountID string) string {
	return filepath.Join(usageDir(home), accountID+".json")
}

func warningLogPath(home string) string {
	return filepath.Join(usageDir(home), "rate_limit_warnings.log")
}

// withAccountFile is the only mutation path into an account document. It
// creates the usage directory and the account file if needed, holds an
// exclusive advisory lock on the file for the whole read-modify-write
// cycle, and replaces the file atomically via a sibling temp file so that
// readers never observe a torn write.
func withAccountFile(home, accountID, plan string, update func(*accountUsageData)) error {
	dir := usageDir(home)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create usage directory: %w", err)
	}

	path := accountFilePath(home, accountID)
	lock := flock.New(path)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock %s: %w", path, err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Error("failed to release account lock", "path", path, "error", err)
		}
	}()

	data, err := loadOrDefault(path, accountID)
	if err != nil {
		return err
	}

	data.applyPlan(plan)
	update(data)

	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal usage data: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := writeFileSync(tmpPath, out); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		if removeErr := os.Remove(tmpPath); removeErr != nil {
			logger.Error("failed to remove temp file", "path", tmpPath, "error", removeErr)
		}
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// loadOrDefault reads the account document at path. An absent, empty, or
// unparsable file yields a fresh document: usage recording must never
// hard-fail just because a file went corrupt. Read errors other than
// not-exist still propagate. A stale version tag is normalized to the
// current one; no field migration is performed.
func loadOrDefault(path, accountID string) (*accountUsageData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return newAccountUsageData(accountID), nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return newAccountUsageData(accountID), nil
	}

	var data accountUsageData
	if err := json.Unmarshal(raw, &data); err != nil || data.AccountID == "" {
		return newAccountUsageData(accountID), nil
	}
	data.Version = usageVersion
	return &data, nil
}

// writeFileSync writes data and flushes it to storage before returning,
// so the subsequent rename is the durability boundary.
func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	return nil
}
