// Package main is the entry point for the agentledger CLI.
// It reads the per-account usage ledgers maintained by the agent tool and
// presents summaries, rate-limit status, and a live watch mode.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/guptarohit/asciigraph"

	"github.com/d-harlan/agentledger/internal/config"
	"github.com/d-harlan/agentledger/internal/ledger"
	"github.com/d-harlan/agentledger/internal/logger"
	"github.com/d-harlan/agentledger/internal/models"
	"github.com/d-harlan/agentledger/internal/version"
)

// Usage percentage at or above which watch mode raises a notification.
const notifyUsedPercent = 90.0

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "-v", "--version", "version":
		fmt.Println(version.Info())
	case "-h", "--help", "help":
		printUsage()
	case "summary":
		err = runSummary(os.Args[2:])
	case "limits":
		err = runLimits()
	case "watch":
		err = runWatch()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`agentledger - usage ledger for multi-account agent tools

Usage:
  agentledger summary <account-id>   show one account's accumulated usage
  agentledger limits                 list rate-limit status for all accounts
  agentledger watch                  follow ledger changes and alert on high usage
  agentledger version                print version information

Environment:
  AGENTLEDGER_HOME   ledger root directory (default ~/.agentledger)
  LOG_LEVEL          debug|info|warn|error
  WATCH_DEBOUNCE     watch coalescing interval (e.g. 250ms)
  NOTIFICATIONS      enable desktop notifications in watch mode (default true)
`)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Setup(cfg.LogLevel)
	return cfg, nil
}

func runSummary(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: agentledger summary <account-id>")
	}
	accountID := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	summary, err := ledger.LoadAccountUsage(cfg.Home, accountID)
	if err != nil {
		return err
	}
	if summary == nil {
		return fmt.Errorf("no usage recorded for account %s", accountID)
	}

	plan := summary.Plan
	if plan == "" {
		plan = "-"
	}
	fmt.Printf("Account:      %s (plan: %s)\n", summary.AccountID, plan)
	fmt.Printf("Last updated: %s\n", summary.LastUpdated.Format(time.RFC3339))
	fmt.Println()
	fmt.Printf("Lifetime tokens: %d total (%d input, %d cached input, %d output, %d reasoning)\n",
		summary.Totals.TotalTokens,
		summary.Totals.InputTokens,
		summary.Totals.CachedInputTokens,
		summary.Totals.OutputTokens,
		summary.Totals.ReasoningOutputTokens,
	)
	fmt.Printf("Last hour:       %d total tokens across %d events\n",
		summary.TokensLastHour.TotalTokens, len(summary.RawEntries))
	fmt.Printf("History:         %d hourly, %d daily, %d monthly buckets\n",
		len(summary.HourlyBuckets), len(summary.DailyBuckets), len(summary.MonthlyBuckets))

	if chart := dailyChart(summary); chart != "" {
		fmt.Println()
		fmt.Println(chart)
	}
	return nil
}

// dailyChart renders recent daily bucket totals, when there are enough
// points for a graph to mean anything.
func dailyChart(summary *models.UsageSummary) string {
	if len(summary.DailyBuckets) < 2 {
		return ""
	}
	series := make([]float64, len(summary.DailyBuckets))
	for i, bucket := range summary.DailyBuckets {
		series[i] = float64(bucket.Tokens.TotalTokens)
	}
	return asciigraph.Plot(series,
		asciigraph.Height(8),
		asciigraph.Caption("total tokens per day"),
	)
}

func runLimits() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	snapshots, err := ledger.ListRateLimitSnapshots(cfg.Home)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		fmt.Println("No accounts found.")
		return nil
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].AccountID < snapshots[j].AccountID
	})

	for _, snap := range snapshots {
		plan := snap.Plan
		if plan == "" {
			plan = "-"
		}
		fmt.Printf("%s (plan: %s)\n", snap.AccountID, plan)
		if snap.Snapshot == nil {
			fmt.Println("  no rate-limit snapshot recorded")
			continue
		}
		fmt.Printf("  primary:   %5.1f%% used, resets %s\n",
			snap.Snapshot.PrimaryUsedPercent, formatReset(snap.PrimaryNextResetAt))
		fmt.Printf("  secondary: %5.1f%% used, resets %s\n",
			snap.Snapshot.SecondaryUsedPercent, formatReset(snap.SecondaryNextResetAt))
		if snap.LastUsageLimitHitAt != nil {
			fmt.Printf("  last limit hit: %s\n", snap.LastUsageLimitHitAt.Format(time.RFC3339))
		}
	}
	return nil
}

func formatReset(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.Format(time.RFC3339)
}

func runWatch() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	watcher, err := ledger.NewWatcher(cfg.Home, cfg.WatchDebounce)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", cfg.Home)
	for {
		select {
		case accountID := <-watcher.Events():
			reportChange(cfg, accountID)
		case <-sigChan:
			fmt.Println("\nStopped.")
			return nil
		}
	}
}

// reportChange prints the changed account's state and raises a desktop
// notification when a rate-limit window is close to exhausted.
func reportChange(cfg *config.Config, accountID string) {
	summary, err := ledger.LoadAccountUsage(cfg.Home, accountID)
	if err != nil || summary == nil {
		return
	}

	fmt.Printf("[%s] %s: %d tokens in the last hour\n",
		time.Now().Format("15:04:05"), accountID, summary.TokensLastHour.TotalTokens)

	snapshots, err := ledger.ListRateLimitSnapshots(cfg.Home)
	if err != nil {
		return
	}
	for _, snap := range snapshots {
		if snap.AccountID != accountID || snap.Snapshot == nil {
			continue
		}
		used := snap.Snapshot.PrimaryUsedPercent
		if snap.Snapshot.SecondaryUsedPercent > used {
			used = snap.Snapshot.SecondaryUsedPercent
		}
		if used >= notifyUsedPercent && cfg.Notifications {
			msg := fmt.Sprintf("%s is at %.0f%% of its rate limit", accountID, used)
			if err := beeep.Notify("agentledger", msg, ""); err != nil {
				logger.Warn("failed to send notification", "error", err)
			}
		}
	}
}
