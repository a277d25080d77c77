package dictionary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// WordList is the top-level structure of a dictionary YAML file.
//
// Example:
//
//	words:
//	  - word: "da"
//	    kind: homophone
//	    meanings: ["preposizione", "verbo dare"]
//	    suggestions:
//	      - correction: "dà"
//	        context: "verbo"
//	        example: "Lui dà il libro a Maria"
type WordList struct {
	Words []Entry `yaml:"words"`
}

// FileSource is a [Source] that reads a YAML [WordList] from disk on every
// load, so edits to the file are picked up by the next reload.
type FileSource struct {
	path string
}

var _ Source = (*FileSource)(nil)

// NewFileSource creates a [FileSource] reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name implements [Source].
func (s *FileSource) Name() string { return "file" }

// Path returns the file the source reads.
func (s *FileSource) Path() string { return s.path }

// Load implements [Source].
func (s *FileSource) Load(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wl, err := LoadWordList(s.path)
	if err != nil {
		return nil, err
	}
	return wl.Words, nil
}

// LoadWordList reads and parses the YAML word list at path.
func LoadWordList(path string) (*WordList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dictionary: open word list %q: %w", path, err)
	}
	defer f.Close()

	wl, err := LoadWordListFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("dictionary: parse word list %q: %w", path, err)
	}
	return wl, nil
}

// LoadWordListFromReader parses a YAML word list from an [io.Reader].
// Unknown keys are rejected. The caller is responsible for closing r.
func LoadWordListFromReader(r io.Reader) (*WordList, error) {
	var wl WordList
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&wl); err != nil {
		if errors.Is(err, io.EOF) {
			return &wl, nil
		}
		return nil, fmt.Errorf("dictionary: decode word list yaml: %w", err)
	}
	return &wl, nil
}

// WriteWordList encodes entries as a YAML word list to w.
func WriteWordList(w io.Writer, entries []Entry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(WordList{Words: entries}); err != nil {
		return fmt.Errorf("dictionary: encode word list yaml: %w", err)
	}
	return enc.Close()
}
