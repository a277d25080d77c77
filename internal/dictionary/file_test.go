package dictionary_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/metavoices/internal/dictionary"
)

const wordListYAML = `
words:
  - word: "Da"
    kind: omofono
    meanings: ["preposizione", "verbo dare"]
    suggestions:
      - correction: "dà"
        context: "verbo"
        example: "Lui dà il libro a Maria"
  - word: "perche"
    kind: accent-missing
    meanings: ["forma senza accento"]
    suggestions:
      - correction: "perché"
        context: "congiunzione"
`

func writeWordList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "words.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
	return path
}

func TestFileSource_Load(t *testing.T) {
	t.Parallel()

	src := dictionary.NewFileSource(writeWordList(t, wordListYAML))
	d, err := dictionary.Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Len() != 2 {
		t.Errorf("Len() = %d, want 2", d.Len())
	}
	e, ok := d.Entry("DA")
	if !ok {
		t.Fatal("Entry(DA) not found")
	}
	if e.Kind != dictionary.KindHomophone {
		t.Errorf("Kind = %q, want homophone", e.Kind)
	}
	if e.Suggestions[0].Example != "Lui dà il libro a Maria" {
		t.Errorf("Example = %q", e.Suggestions[0].Example)
	}
}

func TestFileSource_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown field",
			content: "words:\n  - word: da\n    kind: homophone\n    colour: red\n",
			wantErr: "colour",
		},
		{
			name:    "unknown kind",
			content: "words:\n  - word: da\n    kind: typo\n",
			wantErr: "typo",
		},
		{
			name:    "malformed yaml",
			content: "words: [\n",
			wantErr: "decode word list yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := dictionary.NewFileSource(writeWordList(t, tt.content))
			_, err := dictionary.Load(context.Background(), src)
			if !errors.Is(err, dictionary.ErrLoad) {
				t.Fatalf("error %v does not wrap ErrLoad", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestFileSource_MissingFile(t *testing.T) {
	t.Parallel()

	src := dictionary.NewFileSource(filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := src.Load(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing) = %v, want os.ErrNotExist", err)
	}
}

func TestLoadWordListFromReader_Empty(t *testing.T) {
	t.Parallel()

	wl, err := dictionary.LoadWordListFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(wl.Words) != 0 {
		t.Errorf("Words = %+v, want none", wl.Words)
	}
}

func TestWriteWordList_ReadsBack(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := dictionary.WriteWordList(&buf, dictionary.Builtin().Entries()); err != nil {
		t.Fatalf("WriteWordList: %v", err)
	}

	wl, err := dictionary.LoadWordListFromReader(&buf)
	if err != nil {
		t.Fatalf("LoadWordListFromReader: %v", err)
	}
	d, err := dictionary.New(wl.Words)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.Len() != dictionary.Builtin().Len() {
		t.Errorf("round-tripped %d entries, want %d", d.Len(), dictionary.Builtin().Len())
	}
}
