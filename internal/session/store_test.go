package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/metavoices/internal/analysis"
	"github.com/MrWong99/metavoices/internal/observe"
	"github.com/MrWong99/metavoices/internal/session"
)

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func activeSessions(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "metavoices.active_sessions" {
				continue
			}
			var total int64
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestStore_Lifecycle(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	st := session.NewStore(analysis.New(nil), session.WithSessionOptions(session.WithMetrics(m)))
	ctx := context.Background()

	s, err := st.Create(ctx, "vengo da Roma")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id, err := uuid.Parse(s.ID()); err != nil || id.Version() != 4 {
		t.Errorf("ID %q is not a version 4 UUID", s.ID())
	}
	if got := activeSessions(t, reader); got != 1 {
		t.Errorf("active sessions = %d, want 1", got)
	}

	got, err := st.Get(ctx, s.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != s {
		t.Error("Get returned a different session")
	}
	if got.Text() != "vengo da Roma" {
		t.Errorf("text = %q", got.Text())
	}

	if err := st.Delete(ctx, s.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := st.Get(ctx, s.ID()); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
	}
	if err := st.Delete(ctx, s.ID()); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
	if got := activeSessions(t, reader); got != 0 {
		t.Errorf("active sessions = %d, want 0", got)
	}
}

func TestStore_OptionsReachSessions(t *testing.T) {
	t.Parallel()

	st := session.NewStore(analysis.New(nil), session.WithSessionOptions(session.WithClock(fixedClock)))
	s, err := st.Create(context.Background(), "da")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Analyze(context.Background()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	ac, _, err := s.ApplySuggestion(0, 0)
	if err != nil {
		t.Fatalf("ApplySuggestion: %v", err)
	}
	if !ac.Timestamp.Equal(fixedTime) {
		t.Errorf("timestamp = %v, want %v", ac.Timestamp, fixedTime)
	}
}

func TestStore_ConcurrentCreate(t *testing.T) {
	t.Parallel()

	st := session.NewStore(analysis.New(nil))
	const n = 50

	var wg sync.WaitGroup
	for range n {
		wg.Go(func() {
			if _, err := st.Create(context.Background(), "testo"); err != nil {
				t.Errorf("Create: %v", err)
			}
		})
	}
	wg.Wait()

	if st.Len() != n {
		t.Errorf("Len() = %d, want %d", st.Len(), n)
	}
	ids := st.IDs()
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Fatalf("IDs not sorted and unique at %d: %q, %q", i, ids[i-1], ids[i])
		}
	}
}

// manualClock is a settable time source.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestStore_EvictIdle(t *testing.T) {
	t.Parallel()

	clock := &manualClock{now: fixedTime}
	m, reader := newTestMetrics(t)
	st := session.NewStore(analysis.New(nil),
		session.WithSessionOptions(session.WithClock(clock.Now), session.WithMetrics(m)),
		session.WithIdleTTL(10*time.Minute),
	)
	ctx := context.Background()

	old, err := st.Create(ctx, "da")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	clock.Advance(6 * time.Minute)
	fresh, err := st.Create(ctx, "poi")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if n := st.Evict(ctx); n != 0 {
		t.Fatalf("Evict() = %d before any session is idle", n)
	}

	clock.Advance(5 * time.Minute)
	if n := st.Evict(ctx); n != 1 {
		t.Fatalf("Evict() = %d, want 1", n)
	}
	if _, err := st.Get(ctx, old.ID()); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("idle session still present: %v", err)
	}
	if _, err := st.Get(ctx, fresh.ID()); err != nil {
		t.Errorf("recent session evicted: %v", err)
	}
	if got := activeSessions(t, reader); got != 1 {
		t.Errorf("active sessions = %d, want 1", got)
	}

	// Any change resets the idle timer.
	clock.Advance(9 * time.Minute)
	fresh.SetText("poi da")
	clock.Advance(9 * time.Minute)
	if n := st.Evict(ctx); n != 0 {
		t.Errorf("Evict() = %d, want 0 after a recent edit", n)
	}
}

func TestStore_MaxSessions(t *testing.T) {
	t.Parallel()

	clock := &manualClock{now: fixedTime}
	st := session.NewStore(analysis.New(nil),
		session.WithSessionOptions(session.WithClock(clock.Now)),
		session.WithMaxSessions(2),
		session.WithIdleTTL(time.Minute),
	)
	ctx := context.Background()

	for range 2 {
		if _, err := st.Create(ctx, "da"); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if _, err := st.Create(ctx, "da"); !errors.Is(err, session.ErrStoreFull) {
		t.Fatalf("Create at capacity error = %v, want ErrStoreFull", err)
	}
	if st.Len() != 2 {
		t.Errorf("Len() = %d, want 2", st.Len())
	}

	// Once the existing sessions are idle, Create makes room by evicting them.
	clock.Advance(time.Minute)
	if _, err := st.Create(ctx, "da"); err != nil {
		t.Fatalf("Create after idle timeout: %v", err)
	}
	if st.Len() != 1 {
		t.Errorf("Len() = %d, want 1", st.Len())
	}
}

func TestStore_RunEvictsUntilCancelled(t *testing.T) {
	t.Parallel()

	clock := &manualClock{now: fixedTime}
	st := session.NewStore(analysis.New(nil),
		session.WithSessionOptions(session.WithClock(clock.Now)),
		session.WithIdleTTL(20*time.Millisecond),
	)
	if _, err := st.Create(context.Background(), "da"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- st.Run(ctx) }()

	clock.Advance(time.Second)
	deadline := time.Now().Add(2 * time.Second)
	for st.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("idle session was not evicted")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
}
