// Package tokenizer splits free-form Italian text into word tokens.
//
// A word is a maximal run of word characters: ASCII letters, ASCII digits,
// underscore, the apostrophe, and the accented vowels à è é ì í î ò ó ù ú
// (in either case). Every other rune, including invalid UTF-8 and letters
// outside that set, breaks a run and never appears in a token.
//
// Tokenization is total: it never fails, and empty text yields no tokens.
package tokenizer

import (
	"iter"
	"unicode/utf8"
)

// Token is one word occurrence in a text.
type Token struct {
	// Surface is the exact substring as it appeared in the text, case
	// preserved.
	Surface string `json:"surface"`

	// Offset is the byte offset of Surface in the tokenized text, so that
	// text[Offset:Offset+Len()] == Surface always holds.
	Offset int `json:"offset"`
}

// Len returns the length of the token in bytes.
func (t Token) Len() int { return len(t.Surface) }

// End returns the byte offset just past the token.
func (t Token) End() int { return t.Offset + len(t.Surface) }

// accented lists the non-ASCII vowels that belong to the word class.
const accented = "àèéìíîòóùúÀÈÉÌÍÎÒÓÙÚ"

// IsWordRune reports whether r belongs to the word-character class.
func IsWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '\'':
		return true
	case r < utf8.RuneSelf:
		return false
	}
	for _, a := range accented {
		if r == a {
			return true
		}
	}
	return false
}

// Tokenize returns the word tokens of text in strictly increasing offset
// order. The sequence is lazy and may be ranged over any number of times;
// every iteration rescans text from the start.
func Tokenize(text string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		start := -1
		for i, r := range text {
			// range yields utf8.RuneError for invalid bytes, which is not a
			// word rune, so malformed input simply breaks the run.
			if IsWordRune(r) {
				if start < 0 {
					start = i
				}
				continue
			}
			if start >= 0 {
				if !yield(Token{Surface: text[start:i], Offset: start}) {
					return
				}
				start = -1
			}
		}
		if start >= 0 {
			yield(Token{Surface: text[start:], Offset: start})
		}
	}
}

// All collects every token of text into a slice. It returns nil for text
// without words.
func All(text string) []Token {
	var tokens []Token
	for tok := range Tokenize(text) {
		tokens = append(tokens, tok)
	}
	return tokens
}

// Count returns the number of tokens in text without allocating them.
func Count(text string) int {
	n := 0
	for range Tokenize(text) {
		n++
	}
	return n
}
