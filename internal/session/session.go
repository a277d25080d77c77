// Package session keeps an editable text together with its analysis so a
// client can review findings and apply suggestions one step at a time.
//
// A [Session] mirrors the review workflow of an editor: analyze the text,
// apply individual suggestions or all of them at once, and keep a log of
// every correction made. Corrections rewrite every occurrence of a word, so
// after any change the remaining findings may point at stale positions until
// the next [Session.Analyze]; [Session.Stale] reports that condition.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/metavoices/internal/analysis"
	"github.com/MrWong99/metavoices/internal/dictionary"
	"github.com/MrWong99/metavoices/internal/observe"
)

var (
	// ErrFindingIndex is returned when a finding index is out of range.
	ErrFindingIndex = errors.New("session: finding index out of range")

	// ErrSuggestionIndex is returned when a suggestion index is out of range
	// for the selected finding.
	ErrSuggestionIndex = errors.New("session: suggestion index out of range")
)

// AppliedCorrection is one entry of the corrections log.
type AppliedCorrection struct {
	Original    string    `json:"original"`
	Corrected   string    `json:"corrected"`
	Timestamp   time.Time `json:"timestamp"`
	AutoApplied bool      `json:"auto_applied,omitempty"`
}

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	ID        string              `json:"id"`
	Text      string              `json:"text"`
	Findings  []analysis.Finding  `json:"findings"`
	Applied   []AppliedCorrection `json:"applied"`
	Stats     analysis.Stats      `json:"stats"`
	Stale     bool                `json:"stale"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Option is a functional option for configuring a [Session].
type Option func(*Session)

// WithClock overrides the time source used for log timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics records correction counts on m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// Session is an editable text under review. All methods are safe for
// concurrent use.
type Session struct {
	id       string
	analyzer *analysis.Analyzer
	metrics  *observe.Metrics
	now      func() time.Time

	mu        sync.Mutex
	text      string
	findings  []analysis.Finding
	applied   []AppliedCorrection
	stale     bool
	updatedAt time.Time
}

// New creates a session over text. Findings stay empty until [Session.Analyze]
// runs.
func New(id string, a *analysis.Analyzer, text string, opts ...Option) *Session {
	s := &Session{
		id:       id,
		analyzer: a,
		now:      time.Now,
		text:     text,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.updatedAt = s.now()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Analyze runs the analyzer over the current text, replaces the findings and
// returns the resulting state. On a dictionary load failure the previous
// findings are kept.
func (s *Session) Analyze(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	findings, err := s.analyzer.AnalyzeText(observe.WithSession(ctx, s.id), s.text)
	if err != nil {
		return Snapshot{}, fmt.Errorf("session %s: analyze: %w", s.id, err)
	}
	s.findings = findings
	s.stale = false
	s.touch()
	return s.snapshot(), nil
}

// SetText replaces the working text and returns the resulting state. The
// findings become stale.
func (s *Session) SetText(text string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if text != s.text {
		s.text = text
		s.stale = true
		s.touch()
	}
	return s.snapshot()
}

// ApplySuggestion applies suggestion suggestionIdx of finding findingIdx to
// the text, logs it and drops the finding. The rewrite covers every
// occurrence of the finding's word, so other findings are left stale rather
// than recomputed. The returned [Snapshot] is the state right after this
// correction.
func (s *Session) ApplySuggestion(findingIdx, suggestionIdx int) (AppliedCorrection, Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if findingIdx < 0 || findingIdx >= len(s.findings) {
		return AppliedCorrection{}, Snapshot{}, fmt.Errorf("%w: %d of %d", ErrFindingIndex, findingIdx, len(s.findings))
	}
	f := s.findings[findingIdx]
	suggestions := suggestionsOf(f)
	if suggestionIdx < 0 || suggestionIdx >= len(suggestions) {
		return AppliedCorrection{}, Snapshot{}, fmt.Errorf("%w: %d of %d for %q", ErrSuggestionIndex, suggestionIdx, len(suggestions), f.Word)
	}

	ac := s.apply(f.Word, suggestions[suggestionIdx].Correction, false)
	s.findings = slices.Delete(s.findings, findingIdx, findingIdx+1)
	s.metrics.RecordCorrection(context.Background(), "suggestion", 1)
	return ac, s.snapshot(), nil
}

// ApplyAll applies the first suggestion of every finding that has one and
// clears the findings. It returns the number of corrections applied and the
// resulting state.
func (s *Session) ApplyAll() (int, Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, f := range s.findings {
		suggestions := suggestionsOf(f)
		if len(suggestions) == 0 {
			continue
		}
		s.apply(f.Word, suggestions[0].Correction, false)
		n++
	}
	s.findings = nil
	s.touch()
	s.metrics.RecordCorrection(context.Background(), "all", n)
	return n, s.snapshot()
}

// AutoCorrect applies the first suggestion of every finding that has one,
// marking the log entries as automatic. Findings without suggestions stay in
// place. It returns the number of corrections applied and the resulting
// state.
func (s *Session) AutoCorrect() (int, Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	kept := s.findings[:0]
	for _, f := range s.findings {
		suggestions := suggestionsOf(f)
		if len(suggestions) == 0 {
			kept = append(kept, f)
			continue
		}
		s.apply(f.Word, suggestions[0].Correction, true)
		n++
	}
	clear(s.findings[len(kept):])
	s.findings = kept
	s.metrics.RecordCorrection(context.Background(), "auto", n)
	return n, s.snapshot()
}

// Text returns the current working text.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Findings returns a copy of the current findings.
func (s *Session) Findings() []analysis.Finding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.findings)
}

// Applied returns a copy of the corrections log, oldest first.
func (s *Session) Applied() []AppliedCorrection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.applied)
}

// Stats returns [analysis.Stats] for the current text.
func (s *Session) Stats() analysis.Stats {
	return s.analyzer.TextStats(s.Text())
}

// Stale reports whether the text changed since the last successful
// [Session.Analyze], meaning finding positions may no longer match.
func (s *Session) Stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale
}

// Snapshot returns a consistent copy of the whole session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// UpdatedAt returns the time of the last change to the session.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// snapshot copies the state. Callers hold s.mu.
func (s *Session) snapshot() Snapshot {
	findings := slices.Clone(s.findings)
	if findings == nil {
		findings = []analysis.Finding{}
	}
	applied := slices.Clone(s.applied)
	if applied == nil {
		applied = []AppliedCorrection{}
	}
	return Snapshot{
		ID:        s.id,
		Text:      s.text,
		Findings:  findings,
		Applied:   applied,
		Stats:     s.analyzer.TextStats(s.text),
		Stale:     s.stale,
		UpdatedAt: s.updatedAt,
	}
}

// apply rewrites the text and appends to the log. Callers hold s.mu.
func (s *Session) apply(original, corrected string, auto bool) AppliedCorrection {
	out := analysis.ApplyCorrection(s.text, original, corrected)
	if out != s.text {
		s.text = out
		s.stale = true
	}
	ac := AppliedCorrection{
		Original:    original,
		Corrected:   corrected,
		Timestamp:   s.now(),
		AutoApplied: auto,
	}
	s.applied = append(s.applied, ac)
	s.updatedAt = ac.Timestamp
	return ac
}

// touch records a state change. Callers hold s.mu.
func (s *Session) touch() { s.updatedAt = s.now() }

func suggestionsOf(f analysis.Finding) []dictionary.Suggestion {
	if f.Entry == nil {
		return nil
	}
	return f.Entry.Suggestions
}
