package dictionary

import (
	"cmp"
	"slices"

	"github.com/antzucaro/matchr"
)

// DefaultNearestThreshold is the minimum Jaro-Winkler similarity a key needs
// to be reported by [Dictionary.Nearest].
const DefaultNearestThreshold = 0.80

// Match is a dictionary key that resembles a looked-up word.
type Match struct {
	// Word is the dictionary key.
	Word string `json:"word"`

	// Score is the Jaro-Winkler similarity in [0, 1].
	Score float64 `json:"score"`

	// Distance is the Levenshtein edit distance to the looked-up word.
	Distance int `json:"distance"`

	// Phonetic reports whether the Double Metaphone codes of both words
	// overlap.
	Phonetic bool `json:"phonetic"`
}

// Nearest returns up to limit dictionary keys resembling word, best first.
// Keys whose similarity is below threshold are omitted; a threshold <= 0
// selects [DefaultNearestThreshold]. An exact key match is reported with
// score 1 and distance 0.
//
// Nearest is a discovery aid for callers looking up a misspelt word. Analysis
// never uses it: flagging stays an exact-key lookup.
func (d *Dictionary) Nearest(word string, limit int, threshold float64) []Match {
	if d.Len() == 0 || word == "" || limit <= 0 {
		return []Match{}
	}
	if threshold <= 0 {
		threshold = DefaultNearestThreshold
	}

	key := Key(word)
	codes := metaphoneCodes(key)

	matches := make([]Match, 0, limit)
	for w := range d.entries {
		score := matchr.JaroWinkler(key, w, false)
		if score < threshold {
			continue
		}
		matches = append(matches, Match{
			Word:     w,
			Score:    score,
			Distance: matchr.Levenshtein(key, w),
			Phonetic: overlaps(codes, metaphoneCodes(w)),
		})
	}

	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if a.Phonetic != b.Phonetic {
			if a.Phonetic {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Word, b.Word)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// metaphoneCodes returns the non-empty Double Metaphone codes of w.
func metaphoneCodes(w string) []string {
	p, s := matchr.DoubleMetaphone(w)
	codes := make([]string, 0, 2)
	if p != "" {
		codes = append(codes, p)
	}
	if s != "" && s != p {
		codes = append(codes, s)
	}
	return codes
}

func overlaps(a, b []string) bool {
	for _, c := range a {
		if slices.Contains(b, c) {
			return true
		}
	}
	return false
}
