package analysis_test

import (
	"testing"

	"github.com/MrWong99/metavoices/internal/analysis"
)

func TestApplyCorrection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		text      string
		original  string
		corrected string
		want      string
	}{
		{
			name: "single occurrence",
			text: "vengo da Roma", original: "da", corrected: "dà",
			want: "vengo dà Roma",
		},
		{
			name: "no match inside a longer word",
			text: "affiancato", original: "da", corrected: "dà",
			want: "affiancato",
		},
		{
			name: "no match as prefix or suffix",
			text: "Dante guarda dado", original: "da", corrected: "dà",
			want: "Dante guarda dado",
		},
		{
			name: "global and case-insensitive",
			text: "Da qui, DA lì e da là.", original: "da", corrected: "dà",
			want: "dà qui, dà lì e dà là.",
		},
		{
			name: "accented letters are word characters",
			text: "dà da", original: "da", corrected: "dà",
			want: "dà dà",
		},
		{
			name: "apostrophe is a word character",
			text: "d'accordo da", original: "d", corrected: "di",
			want: "d'accordo da",
		},
		{
			name: "word with apostrophe",
			text: "Qual'è il tuo nome? qual'è.", original: "qual'è", corrected: "qual è",
			want: "qual è il tuo nome? qual è.",
		},
		{
			name: "uppercase accented match",
			text: "PERCHE no", original: "perche", corrected: "perché",
			want: "perché no",
		},
		{
			name: "multi-word replacement",
			text: "mi metto affianco a te", original: "affianco", corrected: "a fianco",
			want: "mi metto a fianco a te",
		},
		{
			name: "regexp metacharacters are literal",
			text: "a.b axb a.b", original: "a.b", corrected: "c",
			want: "c axb c",
		},
		{
			name: "replacement is literal",
			text: "da", original: "da", corrected: "$1",
			want: "$1",
		},
		{
			name: "adjacent occurrences",
			text: "da,da;da", original: "da", corrected: "X",
			want: "X,X;X",
		},
		{
			name: "rejected candidate does not hide a later match",
			text: "dada da", original: "da", corrected: "dà",
			want: "dada dà",
		},
		{
			name: "empty original is a no-op",
			text: "vengo da Roma", original: "", corrected: "x",
			want: "vengo da Roma",
		},
		{
			name: "invalid utf8 original",
			text: "vengo da Roma", original: "d\xffa", corrected: "dà",
			want: "vengo da Roma",
		},
		{
			name: "invalid utf8 text",
			text: "vengo \xffda Roma da", original: "da", corrected: "dà",
			want: "vengo \xffdà Roma dà",
		},
		{
			name: "empty text",
			text: "", original: "da", corrected: "dà",
			want: "",
		},
		{
			name: "deletion",
			text: "poi poi", original: "poi", corrected: "",
			want: " ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := analysis.ApplyCorrection(tt.text, tt.original, tt.corrected)
			if got != tt.want {
				t.Errorf("ApplyCorrection(%q, %q, %q) = %q, want %q", tt.text, tt.original, tt.corrected, got, tt.want)
			}
		})
	}
}

func TestApplyCorrection_Idempotent(t *testing.T) {
	t.Parallel()

	texts := []string{
		"Vengo da Roma e da Milano",
		"Perche? Perche sì. perche",
		"affianco, dappertutto e qual'è",
		"",
	}
	pairs := [][2]string{
		{"da", "dà"},
		{"perche", "perché"},
		{"affianco", "a fianco"},
		{"qual'è", "qual è"},
		{"e", "è"},
	}

	for _, text := range texts {
		for _, p := range pairs {
			once := analysis.ApplyCorrection(text, p[0], p[1])
			twice := analysis.ApplyCorrection(once, p[0], p[1])
			if once != twice {
				t.Errorf("ApplyCorrection not idempotent for %q (%q -> %q): %q then %q", text, p[0], p[1], once, twice)
			}
		}
	}
}

func TestApplyCorrection_StalePositions(t *testing.T) {
	t.Parallel()

	// Correcting the first finding rewrites every occurrence, so the second
	// finding's recorded position no longer points at "da".
	a := analysis.New(nil)
	text := "da qui da lì"
	findings, err := a.AnalyzeText(t.Context(), text)
	if err != nil {
		t.Fatalf("AnalyzeText: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("got %d findings, want 2", len(findings))
	}

	corrected := a.ApplyCorrection(text, findings[0].Word, "dà")
	if corrected != "dà qui dà lì" {
		t.Fatalf("corrected = %q", corrected)
	}
	second := findings[1]
	if corrected[second.Position:second.End()] == "da" {
		t.Error("second finding unexpectedly still valid after global rewrite")
	}

	refreshed, err := a.AnalyzeText(t.Context(), corrected)
	if err != nil {
		t.Fatalf("AnalyzeText: %v", err)
	}
	for _, f := range refreshed {
		if corrected[f.Position:f.End()] != f.Word {
			t.Errorf("refreshed finding %q@%d does not match text", f.Word, f.Position)
		}
	}
}

func TestTextStats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want analysis.Stats
	}{
		{name: "empty", text: "", want: analysis.Stats{}},
		{name: "whitespace only", text: " \n\t ", want: analysis.Stats{CharCount: 4}},
		{name: "scenario", text: "Vengo da Roma e resto qui", want: analysis.Stats{WordCount: 6, CharCount: 25, ReadingTime: 1}},
		{name: "punctuation chunk counts", text: "uno - due", want: analysis.Stats{WordCount: 3, CharCount: 9, ReadingTime: 1}},
		{name: "accents count as one char", text: "è perché", want: analysis.Stats{WordCount: 2, CharCount: 8, ReadingTime: 1}},
	}

	for _, tt := range tests {
		if got := analysis.TextStats(tt.text); got != tt.want {
			t.Errorf("%s: TextStats(%q) = %+v, want %+v", tt.name, tt.text, got, tt.want)
		}
	}
}

func TestTextStats_ReadingTimeRoundsUp(t *testing.T) {
	t.Parallel()

	words := func(n int) string {
		b := make([]byte, 0, n*2)
		for range n {
			b = append(b, "w "...)
		}
		return string(b)
	}

	tests := []struct {
		words int
		want  int
	}{
		{1, 1},
		{199, 1},
		{200, 1},
		{201, 2},
		{400, 2},
		{401, 3},
	}
	for _, tt := range tests {
		if got := analysis.TextStats(words(tt.words)).ReadingTime; got != tt.want {
			t.Errorf("%d words: ReadingTime = %d, want %d", tt.words, got, tt.want)
		}
	}

	a := analysis.New(nil, analysis.WithWordsPerMinute(100))
	if got := a.TextStats(words(150)).ReadingTime; got != 2 {
		t.Errorf("150 words at 100 wpm: ReadingTime = %d, want 2", got)
	}
}
