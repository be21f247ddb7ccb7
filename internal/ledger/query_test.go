package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/d-harlan/agentledger/internal/models"
)

func sampleSnapshotWithResets(primary, secondary *uint64) models.RateLimitSnapshot {
	return models.RateLimitSnapshot{
		PrimaryUsedPercent:         50.0,
		SecondaryUsedPercent:       25.0,
		PrimaryWindowMinutes:       300,
		SecondaryWindowMinutes:     10080,
		PrimaryResetAfterSeconds:   primary,
		SecondaryResetAfterSeconds: secondary,
	}
}

func TestLoadAccountUsage_MissingAccountIsNotAnError(t *testing.T) {
	home := t.TempDir()

	summary, err := LoadAccountUsage(home, "nobody")
	if err != nil {
		t.Fatalf("LoadAccountUsage() failed: %v", err)
	}
	if summary != nil {
		t.Errorf("summary = %+v, want nil for missing account", summary)
	}
}

func TestLoadAccountUsage_RoundTrip(t *testing.T) {
	home := t.TempDir()
	now := time.Now().UTC()

	if err := RecordTokenUsage(home, "acct-1", "Team", sampleUsage(), now); err != nil {
		t.Fatalf("RecordTokenUsage() failed: %v", err)
	}

	summary, err := LoadAccountUsage(home, "acct-1")
	if err != nil {
		t.Fatalf("LoadAccountUsage() failed: %v", err)
	}
	if summary == nil {
		t.Fatal("summary should exist")
	}
	if summary.Totals.InputTokens != 120 {
		t.Errorf("totals.input_tokens = %d, want 120", summary.Totals.InputTokens)
	}
	if summary.Totals.OutputTokens != 80 {
		t.Errorf("totals.output_tokens = %d, want 80", summary.Totals.OutputTokens)
	}
	if summary.TokensLastHour.TotalTokens != 210 {
		t.Errorf("tokens_last_hour.total_tokens = %d, want 210", summary.TokensLastHour.TotalTokens)
	}
	if len(summary.RawEntries) != 1 {
		t.Errorf("raw entries = %d, want 1", len(summary.RawEntries))
	}
}

func TestLoadAccountUsage_CorruptFileReportsAbsent(t *testing.T) {
	home := t.TempDir()
	if err := os.MkdirAll(usageDir(home), 0o750); err != nil {
		t.Fatalf("failed to create usage dir: %v", err)
	}
	if err := os.WriteFile(AccountFilePath(home, "acct-1"), []byte("garbage"), 0o600); err != nil {
		t.Fatalf("failed to seed corrupt file: %v", err)
	}

	summary, err := LoadAccountUsage(home, "acct-1")
	if err != nil {
		t.Fatalf("LoadAccountUsage() should not fail on corrupt input: %v", err)
	}
	if summary != nil {
		t.Errorf("summary = %+v, want nil for corrupt file", summary)
	}
}

func TestListRateLimitSnapshots_EmptyHome(t *testing.T) {
	snapshots, err := ListRateLimitSnapshots(t.TempDir())
	if err != nil {
		t.Fatalf("ListRateLimitSnapshots() failed: %v", err)
	}
	if len(snapshots) != 0 {
		t.Errorf("snapshots = %d, want 0", len(snapshots))
	}
}

func TestListRateLimitSnapshots_SkipsCorruptFiles(t *testing.T) {
	home := t.TempDir()
	now := time.Now().UTC()

	if err := RecordTokenUsage(home, "good", "Team", sampleUsage(), now); err != nil {
		t.Fatalf("RecordTokenUsage() failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(usageDir(home), "bad.json"), []byte("{broken"), 0o600); err != nil {
		t.Fatalf("failed to seed corrupt file: %v", err)
	}
	// Non-JSON files in the directory are ignored entirely.
	if err := os.WriteFile(filepath.Join(usageDir(home), "notes.txt"), []byte("hi"), 0o600); err != nil {
		t.Fatalf("failed to seed stray file: %v", err)
	}

	snapshots, err := ListRateLimitSnapshots(home)
	if err != nil {
		t.Fatalf("ListRateLimitSnapshots() failed: %v", err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("snapshots = %d, want 1 (corrupt file skipped)", len(snapshots))
	}
	if snapshots[0].AccountID != "good" {
		t.Errorf("account = %q, want %q", snapshots[0].AccountID, "good")
	}
}

func TestListRateLimitSnapshots_SecondaryMirrorsPrimaryWhenAbsent(t *testing.T) {
	home := t.TempDir()
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	primary := uint64(600)

	snapshot := sampleSnapshotWithResets(&primary, nil)
	if err := RecordRateLimitSnapshot(home, "acct-1", "", snapshot, now); err != nil {
		t.Fatalf("RecordRateLimitSnapshot() failed: %v", err)
	}

	snapshots, err := ListRateLimitSnapshots(home)
	if err != nil {
		t.Fatalf("ListRateLimitSnapshots() failed: %v", err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(snapshots))
	}

	got := snapshots[0]
	if got.PrimaryNextResetAt == nil {
		t.Fatal("primary reset should be set")
	}
	if got.SecondaryNextResetAt == nil || !got.SecondaryNextResetAt.Equal(*got.PrimaryNextResetAt) {
		t.Errorf("secondary reset = %v, want mirror of primary %v", got.SecondaryNextResetAt, got.PrimaryNextResetAt)
	}
}
