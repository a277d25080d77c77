package analysis

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/metavoices/internal/tokenizer"
)

// ApplyCorrection replaces every whole-word, case-insensitive occurrence of
// original in text with corrected and returns the result. corrected is
// inserted literally. An empty original, or one that is not valid UTF-8,
// leaves text unchanged.
//
// Word boundaries follow the tokenizer's word class, so accented vowels and
// apostrophes count as word characters: correcting "da" never touches
// "dà", "affiancato" or "d'accordo".
//
// The rewrite is global. Correcting one [Finding] corrects every other
// occurrence of the same word too, which shifts the byte positions of any
// later findings. Callers that apply findings one at a time must re-run
// analysis after each correction instead of trusting stale positions.
func ApplyCorrection(text, original, corrected string) string {
	if original == "" || text == "" || !utf8.ValidString(original) {
		return text
	}

	// QuoteMeta guarantees a valid pattern.
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(original))

	var b strings.Builder
	last := 0 // end of the text already copied to b
	pos := 0  // where the next search starts
	for pos <= len(text) {
		loc := re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if end > start && isBoundary(text, start) && isBoundary(text, end) {
			if b.Len() == 0 {
				b.Grow(len(text))
			}
			b.WriteString(text[last:start])
			b.WriteString(corrected)
			last, pos = end, end
			continue
		}
		// Rejected candidate: resume one rune later so overlapping
		// candidates are still considered.
		_, size := utf8.DecodeRuneInString(text[start:])
		pos = start + max(size, 1)
	}

	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

// ApplyCorrection is the package-level [ApplyCorrection] with the rewrite
// counted in the corrections metric under the "direct" mode.
func (a *Analyzer) ApplyCorrection(text, original, corrected string) string {
	out := ApplyCorrection(text, original, corrected)
	if out != text {
		a.metrics.RecordCorrection(context.Background(), "direct", 1)
	}
	return out
}

// isBoundary reports whether byte offset i of text sits between a word rune
// and a non-word rune, treating both ends of the text as non-word.
func isBoundary(text string, i int) bool {
	before, after := false, false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:i])
		before = tokenizer.IsWordRune(r)
	}
	if i < len(text) {
		r, _ := utf8.DecodeRuneInString(text[i:])
		after = tokenizer.IsWordRune(r)
	}
	return before != after
}
