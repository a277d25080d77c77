package dictionary

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrLoad is returned (wrapped) by [Load] when a source fails to produce
	// a valid dictionary.
	ErrLoad = errors.New("dictionary: load failed")

	// ErrReadOnly is returned when entries are written to a source that
	// does not implement [WritableSource].
	ErrReadOnly = errors.New("dictionary: source is read-only")
)

// Source produces the raw entries a [Dictionary] is built from.
//
// Implementations must be safe for concurrent use and must respect context
// cancellation when they perform I/O.
type Source interface {
	// Name is a short label used in logs and metrics (e.g. "file", "redis").
	Name() string

	// Load returns all entries. The returned slice is owned by the caller.
	Load(ctx context.Context) ([]Entry, error)
}

// WritableSource is a [Source] whose entries can be administered.
type WritableSource interface {
	Source

	// Upsert validates e and creates or replaces it under its lowercase key.
	Upsert(ctx context.Context, e Entry) error

	// Delete removes word. Deleting an unknown word is not an error.
	Delete(ctx context.Context, word string) error
}

// Import writes entries to dst and returns how many were written. The whole
// batch is validated first, so an invalid list writes nothing. A write
// failure stops the import; entries written before it stay.
func Import(ctx context.Context, dst WritableSource, entries []Entry) (int, error) {
	if _, err := New(entries); err != nil {
		return 0, fmt.Errorf("dictionary: import: %w", err)
	}
	for i, e := range entries {
		if err := dst.Upsert(ctx, e); err != nil {
			return i, fmt.Errorf("dictionary: import into %s: %w", dst.Name(), err)
		}
	}
	return len(entries), nil
}

// Load fetches entries from src and builds a [Dictionary] from them. Any
// failure, whether from the source or from validation, wraps [ErrLoad].
func Load(ctx context.Context, src Source) (*Dictionary, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: source must not be nil", ErrLoad)
	}
	entries, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: source %q: %w", ErrLoad, src.Name(), err)
	}
	d, err := New(entries)
	if err != nil {
		return nil, fmt.Errorf("%w: source %q: %w", ErrLoad, src.Name(), err)
	}
	return d, nil
}

// StaticSource serves an in-memory set of entries. It is mostly useful in
// tests. Entries may be set directly before the source is shared.
type StaticSource struct {
	Label   string
	Entries []Entry

	mu sync.Mutex
}

var _ WritableSource = (*StaticSource)(nil)

// Name implements [Source].
func (s *StaticSource) Name() string {
	if s.Label == "" {
		return "static"
	}
	return s.Label
}

// Load implements [Source].
func (s *StaticSource) Load(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.Entries))
	for i, e := range s.Entries {
		out[i] = e.clone()
	}
	return out, nil
}

// Upsert implements [WritableSource].
func (s *StaticSource) Upsert(_ context.Context, e Entry) error {
	e = e.clone()
	e.Word = Key(e.Word)
	if err := Validate(e); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.Entries, func(x Entry) bool { return Key(x.Word) == e.Word })
	if i >= 0 {
		s.Entries[i] = e
		return nil
	}
	s.Entries = append(s.Entries, e)
	return nil
}

// Delete implements [WritableSource].
func (s *StaticSource) Delete(_ context.Context, word string) error {
	key := Key(word)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Entries = slices.DeleteFunc(s.Entries, func(x Entry) bool { return Key(x.Word) == key })
	return nil
}
