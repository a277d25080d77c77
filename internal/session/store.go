package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/metavoices/internal/analysis"
	"github.com/MrWong99/metavoices/internal/observe"
)

const (
	// DefaultMaxSessions is the session cap of a [Store].
	DefaultMaxSessions = 1000

	// DefaultIdleTTL is how long a session may stay unchanged before a
	// [Store] evicts it.
	DefaultIdleTTL = 30 * time.Minute
)

var (
	// ErrNotFound is returned when no session with the requested ID exists.
	ErrNotFound = errors.New("session: not found")

	// ErrStoreFull is returned by [Store.Create] when the store holds the
	// maximum number of sessions and none of them is idle.
	ErrStoreFull = errors.New("session: too many sessions")
)

// StoreOption configures a [Store].
type StoreOption func(*Store)

// WithMaxSessions caps the number of live sessions. Non-positive values are
// ignored. Default: [DefaultMaxSessions].
func WithMaxSessions(n int) StoreOption {
	return func(st *Store) {
		if n > 0 {
			st.maxSessions = n
		}
	}
}

// WithIdleTTL sets how long a session may go without changes before it is
// evicted. Non-positive values are ignored. Default: [DefaultIdleTTL].
func WithIdleTTL(d time.Duration) StoreOption {
	return func(st *Store) {
		if d > 0 {
			st.idleTTL = d
		}
	}
}

// WithSessionOptions passes opts to every session the store creates. A
// [WithClock] among them also drives idle eviction, and [WithMetrics] also
// receives the active-session gauge.
func WithSessionOptions(opts ...Option) StoreOption {
	return func(st *Store) { st.opts = append(st.opts, opts...) }
}

// Store keeps sessions in memory by ID, bounded by a session cap and an idle
// timeout. The zero value is not usable; create one with [NewStore].
type Store struct {
	analyzer    *analysis.Analyzer
	opts        []Option
	metrics     *observe.Metrics
	now         func() time.Time
	maxSessions int
	idleTTL     time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore returns an empty [Store] whose sessions analyze with a.
func NewStore(a *analysis.Analyzer, opts ...StoreOption) *Store {
	st := &Store{
		analyzer:    a,
		maxSessions: DefaultMaxSessions,
		idleTTL:     DefaultIdleTTL,
		sessions:    make(map[string]*Session),
	}
	for _, o := range opts {
		o(st)
	}

	var cfg Session
	for _, o := range st.opts {
		o(&cfg)
	}
	st.metrics = cfg.metrics
	if st.metrics == nil {
		st.metrics = observe.DefaultMetrics()
	}
	st.now = cfg.now
	if st.now == nil {
		st.now = time.Now
	}
	return st
}

// Create starts a new session over text. When the store is at capacity idle
// sessions are evicted first; if none is idle it returns [ErrStoreFull].
func (st *Store) Create(ctx context.Context, text string) (*Session, error) {
	id, err := generateID()
	if err != nil {
		return nil, fmt.Errorf("session: generate id: %w", err)
	}

	if st.Len() >= st.maxSessions {
		st.Evict(ctx)
	}

	st.mu.Lock()
	if len(st.sessions) >= st.maxSessions {
		st.mu.Unlock()
		return nil, fmt.Errorf("%w: limit is %d", ErrStoreFull, st.maxSessions)
	}
	s := New(id, st.analyzer, text, st.opts...)
	st.sessions[id] = s
	st.mu.Unlock()

	st.metrics.ActiveSessions.Add(ctx, 1)
	observe.Logger(ctx).Debug("session created", "id", id, "bytes", len(text))
	return s, nil
}

// Get returns the session with the given ID or [ErrNotFound].
func (st *Store) Get(_ context.Context, id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Delete removes the session with the given ID or returns [ErrNotFound].
func (st *Store) Delete(ctx context.Context, id string) error {
	st.mu.Lock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	st.metrics.ActiveSessions.Add(ctx, -1)
	observe.Logger(ctx).Debug("session deleted", "id", id)
	return nil
}

// Evict removes every session unchanged for at least the idle TTL and
// returns how many were removed.
func (st *Store) Evict(ctx context.Context) int {
	cutoff := st.now().Add(-st.idleTTL)

	// Session locks are taken outside the store lock: a session may be
	// busy loading its dictionary.
	st.mu.RLock()
	candidates := make(map[string]*Session, len(st.sessions))
	for id, s := range st.sessions {
		candidates[id] = s
	}
	st.mu.RUnlock()

	var idle []string
	for id, s := range candidates {
		if !s.UpdatedAt().After(cutoff) {
			idle = append(idle, id)
		}
	}
	if len(idle) == 0 {
		return 0
	}

	n := 0
	st.mu.Lock()
	for _, id := range idle {
		if st.sessions[id] == candidates[id] {
			delete(st.sessions, id)
			n++
		}
	}
	st.mu.Unlock()

	if n > 0 {
		st.metrics.ActiveSessions.Add(ctx, int64(-n))
		observe.Logger(ctx).Info("idle sessions evicted", slog.Int("count", n), slog.Duration("idle_ttl", st.idleTTL))
	}
	return n
}

// Run evicts idle sessions periodically until ctx is cancelled. It always
// returns nil.
func (st *Store) Run(ctx context.Context) error {
	ticker := time.NewTicker(max(min(st.idleTTL/2, time.Minute), time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			st.Evict(ctx)
		}
	}
}

// IDs returns the IDs of all live sessions in sorted order.
func (st *Store) IDs() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// generateID returns a random (version 4) UUID.
func generateID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
