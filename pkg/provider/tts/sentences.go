package tts

import (
	"context"
	"strings"
)

// Sentences splits text into trimmed sentences. A sentence ends at '.', '!',
// '?' or '…' followed by whitespace, or at a blank line. Text without any
// boundary is returned as a single sentence; blank text yields nil.
func Sentences(text string) []string {
	var out []string
	rest := strings.TrimSpace(text)
	for rest != "" {
		idx := firstSentenceBoundary(rest)
		if idx < 0 {
			out = append(out, rest)
			break
		}
		if s := strings.TrimSpace(rest[:idx]); s != "" {
			out = append(out, s)
		}
		rest = strings.TrimLeft(rest[idx:], " \t\n\r")
	}
	return out
}

// Feed returns a channel that emits fragments in order and then closes. It
// stops early when ctx is cancelled.
func Feed(ctx context.Context, fragments []string) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		for _, f := range fragments {
			select {
			case ch <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// firstSentenceBoundary returns the byte index just past the first sentence
// terminator that is followed by whitespace, or -1.
func firstSentenceBoundary(s string) int {
	if i := strings.Index(s, "\n\n"); i >= 0 {
		if j := terminatorBoundary(s[:i]); j >= 0 {
			return j
		}
		return i
	}
	return terminatorBoundary(s)
}

func terminatorBoundary(s string) int {
	for i := 0; i < len(s); i++ {
		var n int
		switch {
		case s[i] == '.' || s[i] == '!' || s[i] == '?':
			n = 1
		case strings.HasPrefix(s[i:], "…"):
			n = len("…")
		default:
			continue
		}
		end := i + n
		if end < len(s) {
			switch s[end] {
			case ' ', '\n', '\r', '\t':
				return end
			}
		}
		i = end - 1
	}
	return -1
}
