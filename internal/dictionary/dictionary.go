// Package dictionary holds the immutable table of ambiguous Italian words
// and the sources it can be loaded from.
//
// A [Dictionary] maps a lowercase word form to its [Entry]: the kind of
// ambiguity, its possible meanings, and an ordered list of candidate
// corrections. Lookups fold case only; punctuation and surrounding
// whitespace are never stripped, so "da," misses where "da" hits.
//
// Dictionaries are built once with [New] (or [Load] from a [Source]) and never
// modified afterwards, so a single instance may be shared freely between
// goroutines.
package dictionary

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrDuplicateWord is returned (wrapped) by [New] when two entries share the
// same lowercase key.
var ErrDuplicateWord = errors.New("dictionary: duplicate word")

// Dictionary is an immutable, case-insensitive lookup table of ambiguous
// words. The zero value is an empty dictionary.
type Dictionary struct {
	entries map[string]*Entry
}

// Key returns the lookup key for word: its Italian lowercase form.
func Key(word string) string {
	// A Caser keeps internal state and must not be shared between goroutines.
	return cases.Lower(language.Italian).String(word)
}

// New validates entries and builds a [Dictionary] from them. Entry words
// are lowercased; the input slice is copied and may be reused by the caller.
// All validation failures are reported together.
func New(entries []Entry) (*Dictionary, error) {
	d := &Dictionary{entries: make(map[string]*Entry, len(entries))}

	var errs []error
	for i, e := range entries {
		e = e.clone()
		e.Word = Key(e.Word)
		if err := Validate(e); err != nil {
			errs = append(errs, fmt.Errorf("entries[%d]: %w", i, err))
			continue
		}
		if _, dup := d.entries[e.Word]; dup {
			errs = append(errs, fmt.Errorf("entries[%d]: %w %q", i, ErrDuplicateWord, e.Word))
			continue
		}
		d.entries[e.Word] = &e
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return d, nil
}

// IsAmbiguous reports whether word, compared case-insensitively, is a
// dictionary key. The empty string is never ambiguous.
func (d *Dictionary) IsAmbiguous(word string) bool {
	_, ok := d.Entry(word)
	return ok
}

// Entry returns the shared entry for word, compared case-insensitively. The
// boolean is false when the word is unknown, in which case the entry is nil.
func (d *Dictionary) Entry(word string) (*Entry, bool) {
	if d == nil || word == "" {
		return nil, false
	}
	e, ok := d.entries[Key(word)]
	return e, ok
}

// Suggestions returns the ordered corrections for word. It returns an empty,
// non-nil slice for unknown words and for words without suggestions. The
// returned slice is shared and must not be modified.
func (d *Dictionary) Suggestions(word string) []Suggestion {
	e, ok := d.Entry(word)
	if !ok {
		return []Suggestion{}
	}
	return e.Suggestions
}

// Len returns the number of entries.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// Words returns all dictionary keys in sorted order.
func (d *Dictionary) Words() []string {
	if d == nil {
		return []string{}
	}
	return slices.Sorted(maps.Keys(d.entries))
}

// Entries returns copies of all entries ordered by word.
func (d *Dictionary) Entries() []Entry {
	words := d.Words()
	out := make([]Entry, 0, len(words))
	for _, w := range words {
		out = append(out, d.entries[w].clone())
	}
	return out
}
