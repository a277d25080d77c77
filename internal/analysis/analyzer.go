// Package analysis flags ambiguous words in Italian text and rewrites them.
//
// An [Analyzer] owns a dictionary lifecycle with two states. It starts
// Uninitialized and becomes Ready after its [dictionary.Source] loads
// successfully, either explicitly through [Analyzer.EnsureReady] or
// implicitly on the first [Analyzer.AnalyzeText] call. A failed load leaves
// the analyzer Uninitialized so the caller can retry.
//
// Analysis and correction are pure computations over in-memory data. Once
// Ready, the analyzer is safe for concurrent use and never blocks on I/O.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/metavoices/internal/dictionary"
	"github.com/MrWong99/metavoices/internal/observe"
	"github.com/MrWong99/metavoices/internal/tokenizer"
)

const (
	// DefaultContextSize is the number of tokens kept on each side of a
	// flagged word in its context window.
	DefaultContextSize = 2

	// DefaultWordsPerMinute is the reading speed used for reading-time
	// estimates.
	DefaultWordsPerMinute = 200
)

// ErrDictionaryLoad is returned (wrapped) when the dictionary source fails.
// The analyzer stays Uninitialized and the load may be retried.
var ErrDictionaryLoad = errors.New("analysis: dictionary load failed")

// State is the readiness of an [Analyzer].
type State int32

const (
	// StateUninitialized means no dictionary has been loaded yet.
	StateUninitialized State = iota

	// StateReady means a dictionary is loaded and analysis can run.
	StateReady
)

// String returns the lower-case name of s.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Finding is one occurrence of a dictionary word in an analyzed text. It is
// only meaningful for the text it was produced from.
type Finding struct {
	// Word is the surface form as it appeared, case preserved.
	Word string `json:"word"`

	// Position is the byte offset of Word in the analyzed text.
	Position int `json:"position"`

	// Context is the neighbourhood of the word: up to the configured number
	// of tokens on each side plus the word itself, joined by single spaces.
	Context string `json:"context"`

	// Entry is the matched dictionary record. It is shared and must not be
	// modified.
	Entry *dictionary.Entry `json:"entry"`
}

// End returns the byte offset just past the flagged word.
func (f Finding) End() int { return f.Position + len(f.Word) }

// Option is a functional option for configuring an [Analyzer].
type Option func(*Analyzer)

// WithContextSize sets how many tokens on each side of a flagged word make
// up its context window. Negative values are ignored. Default: 2.
func WithContextSize(n int) Option {
	return func(a *Analyzer) {
		if n >= 0 {
			a.contextSize = n
		}
	}
}

// WithWordsPerMinute sets the reading speed for [Analyzer.TextStats].
// Non-positive values are ignored. Default: 200.
func WithWordsPerMinute(wpm int) Option {
	return func(a *Analyzer) {
		if wpm > 0 {
			a.wordsPerMinute = wpm
		}
	}
}

// WithMetrics records analysis and load metrics on m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Analyzer) {
		if m != nil {
			a.metrics = m
		}
	}
}

// WithDictionary starts the analyzer Ready with d. The source is still used
// by [Analyzer.Reload].
func WithDictionary(d *dictionary.Dictionary) Option {
	return func(a *Analyzer) {
		if d != nil {
			a.dict.Store(d)
		}
	}
}

// Analyzer detects ambiguous words and applies corrections. Create one with
// [New]; the zero value is not usable.
type Analyzer struct {
	src            dictionary.Source
	contextSize    int
	wordsPerMinute int
	metrics        *observe.Metrics

	// loadMu serialises loads so concurrent EnsureReady callers share one.
	loadMu sync.Mutex
	dict   atomic.Pointer[dictionary.Dictionary]
}

// New creates an Uninitialized [Analyzer] that loads its dictionary from
// src. A nil src selects [dictionary.BuiltinSource].
func New(src dictionary.Source, opts ...Option) *Analyzer {
	if src == nil {
		src = dictionary.BuiltinSource{}
	}
	a := &Analyzer{
		src:            src,
		contextSize:    DefaultContextSize,
		wordsPerMinute: DefaultWordsPerMinute,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	return a
}

// State reports whether a dictionary has been loaded.
func (a *Analyzer) State() State {
	if a.dict.Load() == nil {
		return StateUninitialized
	}
	return StateReady
}

// Dictionary returns the current dictionary, or nil while Uninitialized.
func (a *Analyzer) Dictionary() *dictionary.Dictionary {
	return a.dict.Load()
}

// Source returns the source the analyzer loads from.
func (a *Analyzer) Source() dictionary.Source { return a.src }

// EnsureReady loads the dictionary if it is not loaded yet. It is
// idempotent: once Ready, it returns nil without touching the source. On
// failure it returns an error wrapping [ErrDictionaryLoad] and the analyzer
// stays Uninitialized.
func (a *Analyzer) EnsureReady(ctx context.Context) error {
	if a.dict.Load() != nil {
		return nil
	}

	a.loadMu.Lock()
	defer a.loadMu.Unlock()

	// Another caller may have finished loading while we waited.
	if a.dict.Load() != nil {
		return nil
	}

	d, err := a.load(ctx)
	if err != nil {
		return err
	}
	a.dict.Store(d)
	return nil
}

// Reload fetches the dictionary from the source again and swaps it in. On
// failure the current dictionary, if any, stays in place. Findings produced
// before the swap keep referencing the old entries.
func (a *Analyzer) Reload(ctx context.Context) error {
	a.loadMu.Lock()
	defer a.loadMu.Unlock()

	d, err := a.load(ctx)
	if err != nil {
		return err
	}
	a.dict.Store(d)
	return nil
}

// Swap replaces the current dictionary with d and makes the analyzer Ready.
// It is used by file watchers that have already built a new dictionary.
// A nil d is ignored.
func (a *Analyzer) Swap(d *dictionary.Dictionary) {
	if d == nil {
		return
	}
	a.loadMu.Lock()
	defer a.loadMu.Unlock()
	a.dict.Store(d)
	a.metrics.DictionaryWords.Record(context.Background(), int64(d.Len()))
}

func (a *Analyzer) load(ctx context.Context) (*dictionary.Dictionary, error) {
	ctx, span := observe.StartSpan(ctx, "analysis.LoadDictionary",
		trace.WithAttributes(attribute.String("source", a.src.Name())),
	)
	defer span.End()

	start := time.Now()
	d, err := dictionary.Load(ctx, a.src)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		a.metrics.RecordDictionaryLoad(ctx, a.src.Name(), "error", elapsed, 0)
		observe.Fail(span, err, "dictionary load failed")
		observe.Logger(ctx).Warn("dictionary load failed", "source", a.src.Name(), "err", err)
		return nil, fmt.Errorf("%w: %w", ErrDictionaryLoad, err)
	}

	a.metrics.RecordDictionaryLoad(ctx, a.src.Name(), "ok", elapsed, d.Len())
	span.SetAttributes(attribute.Int("words", d.Len()))
	observe.Logger(ctx).Info("dictionary loaded",
		slog.String("source", a.src.Name()),
		slog.Int("words", d.Len()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return d, nil
}

// AnalyzeText returns one [Finding] per token of text whose lowercase form
// is a dictionary word, in left-to-right order. Repeated words yield one
// finding per occurrence. The dictionary is loaded first if needed; that
// load is the only failure path and its error wraps [ErrDictionaryLoad].
//
// The scan itself does not observe ctx: it is bounded by the text length.
func (a *Analyzer) AnalyzeText(ctx context.Context, text string) ([]Finding, error) {
	if err := a.EnsureReady(ctx); err != nil {
		return nil, err
	}
	d := a.dict.Load()

	_, span := observe.StartSpan(ctx, "analysis.AnalyzeText",
		trace.WithAttributes(attribute.Int("text.bytes", len(text))),
	)
	defer span.End()

	start := time.Now()
	findings := Scan(d, text, a.contextSize)
	a.metrics.AnalysisDuration.Record(ctx, time.Since(start).Seconds())
	for _, f := range findings {
		a.metrics.RecordFinding(ctx, string(f.Entry.Kind))
	}
	span.SetAttributes(attribute.Int("findings", len(findings)))

	return findings, nil
}

// Scan is the analysis step of [Analyzer.AnalyzeText] for callers that
// manage their own dictionary. contextSize is the number of tokens on each
// side of a flagged word kept in its context window. It never returns nil.
func Scan(d *dictionary.Dictionary, text string, contextSize int) []Finding {
	findings := []Finding{}
	if text == "" || d.Len() == 0 {
		return findings
	}
	if contextSize < 0 {
		contextSize = 0
	}

	// The window needs lookahead, so the token sequence is materialised.
	tokens := tokenizer.All(text)
	for i, tok := range tokens {
		e, ok := d.Entry(tok.Surface)
		if !ok {
			continue
		}
		findings = append(findings, Finding{
			Word:     tok.Surface,
			Position: tok.Offset,
			Context:  contextWindow(tokens, i, contextSize),
			Entry:    e,
		})
	}
	return findings
}

// contextWindow joins the surfaces of tokens[i-size : i+size+1], clipped to
// the slice bounds, with single spaces.
func contextWindow(tokens []tokenizer.Token, i, size int) string {
	lo := max(0, i-size)
	hi := min(len(tokens), i+size+1)

	n := hi - lo - 1
	for _, t := range tokens[lo:hi] {
		n += len(t.Surface)
	}
	buf := make([]byte, 0, n)
	for j, t := range tokens[lo:hi] {
		if j > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, t.Surface...)
	}
	return string(buf)
}
