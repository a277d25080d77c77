package analysis

import (
	"strings"
	"unicode/utf8"
)

// Stats are rough size figures for a text.
type Stats struct {
	// WordCount is the number of whitespace-separated chunks. Unlike the
	// tokenizer, punctuation-only chunks such as "-" count as words.
	WordCount int `json:"word_count"`

	// CharCount is the number of Unicode code points.
	CharCount int `json:"char_count"`

	// ReadingTime is the estimated reading time in whole minutes, rounded
	// up. It is 0 only for texts without words.
	ReadingTime int `json:"reading_time"`
}

// TextStats computes [Stats] for text at [DefaultWordsPerMinute].
func TextStats(text string) Stats {
	return textStats(text, DefaultWordsPerMinute)
}

// TextStats computes [Stats] for text at the analyzer's reading speed.
func (a *Analyzer) TextStats(text string) Stats {
	return textStats(text, a.wordsPerMinute)
}

func textStats(text string, wpm int) Stats {
	words := len(strings.Fields(text))
	return Stats{
		WordCount:   words,
		CharCount:   utf8.RuneCountInString(text),
		ReadingTime: (words + wpm - 1) / wpm,
	}
}
