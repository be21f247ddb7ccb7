package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/d-harlan/agentledger/internal/logger"
)

const defaultWatchDebounce = 100 * time.Millisecond

// Watcher reports which accounts' ledger files changed on disk, so an
// external display can refresh when another process records usage.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	events   chan string
	stopChan chan struct{}
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

// NewWatcher watches <home>/usage for account-file writes. Changed
// account ids are delivered on Events after a debounce interval; zero
// debounce selects a small default.
func NewWatcher(home string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}

	dir := usageDir(home)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create usage directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &Watcher{
		dir:      dir,
		watcher:  fsw,
		events:   make(chan string, 100),
		stopChan: make(chan struct{}),
		debounce: debounce,
		pending:  make(map[string]struct{}),
	}
	go w.watchLoop()
	return w, nil
}

// Events returns the channel of changed account ids.
func (w *Watcher) Events() <-chan string {
	return w.events
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			name := filepath.Base(event.Name)
			// Atomic replaces surface as create/rename of the target;
			// the transient .tmp files are not account changes.
			if !strings.HasSuffix(name, ".json") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.enqueue(strings.TrimSuffix(name, ".json"))

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("usage watcher error", "error", err)

		case <-w.stopChan:
			return
		}
	}
}

// enqueue coalesces rapid changes to the same account into one event.
func (w *Watcher) enqueue(accountID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[accountID] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	for accountID := range pending {
		select {
		case w.events <- accountID:
		default:
			// Channel full, drop the oldest event.
			select {
			case <-w.events:
			default:
			}
			select {
			case w.events <- accountID:
			default:
			}
		}
	}
}

// Close stops the watcher and releases its resources.
func (w *Watcher) Close() error {
	close(w.stopChan)

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	return w.watcher.Close()
}
