package dictionary

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher monitors a YAML word list for changes and calls a callback with
// the rebuilt [Dictionary] when the file content changes. It polls instead of
// relying on filesystem notifications, which are unreliable on network and
// container-mounted volumes.
//
// [Watcher.Run] drives the polling; it is meant to run next to the server
// that consumes the dictionary and ends with its context.
//
// A file that fails to parse or validate is logged and skipped; the last
// valid dictionary stays current.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(*Dictionary)

	mu      sync.Mutex
	current *Dictionary

	lastMtime time.Time
	lastHash  [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher creates a word list watcher and loads the initial dictionary.
// Polling starts with [Watcher.Run].
func NewWatcher(path string, onChange func(*Dictionary), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
	}
	for _, opt := range opts {
		opt(w)
	}

	d, hash, mtime, err := w.loadAndHash()
	if err != nil {
		return nil, fmt.Errorf("dictionary: watcher initial load: %w", err)
	}
	w.current = d
	w.lastHash = hash
	w.lastMtime = mtime
	return w, nil
}

// Current returns the most recently loaded valid dictionary.
func (w *Watcher) Current() *Dictionary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run polls the word list until ctx is cancelled. It always returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.check()
		}
	}
}

// check reloads the word list when its mtime and content hash changed.
func (w *Watcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("dictionary watcher: cannot stat file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	mtime := w.lastMtime
	w.mu.Unlock()

	if info.ModTime().Equal(mtime) {
		return
	}

	d, hash, newMtime, err := w.loadAndHash()
	if err != nil {
		slog.Warn("dictionary watcher: keeping previous word list", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if hash == w.lastHash {
		// Touched, not edited.
		w.lastMtime = newMtime
		w.mu.Unlock()
		return
	}
	w.current = d
	w.lastHash = hash
	w.lastMtime = newMtime
	w.mu.Unlock()

	slog.Info("dictionary watcher: word list reloaded", "path", w.path, "words", d.Len())

	// Outside the lock so the callback may call Current.
	if w.onChange != nil {
		w.onChange(d)
	}
}

// loadAndHash reads, parses and validates the word list, returning it with
// the file's SHA-256 hash and modification time.
func (w *Watcher) loadAndHash() (*Dictionary, [sha256.Size]byte, time.Time, error) {
	var zeroHash [sha256.Size]byte

	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}

	wl, err := LoadWordListFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}
	d, err := New(wl.Words)
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}
	return d, sha256.Sum256(data), info.ModTime(), nil
}
