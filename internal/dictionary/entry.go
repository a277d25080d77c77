package dictionary

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Kind classifies why a word is ambiguous.
type Kind string

const (
	// KindHomophone marks a word that sounds like another but differs in
	// spelling, meaning or grammatical role ("da" vs "dà").
	KindHomophone Kind = "homophone"

	// KindAccentMissing marks a form written without its required accent
	// ("perche" for "perché").
	KindAccentMissing Kind = "accent-missing"

	// KindWronglyJoined marks a word that should be written as separate
	// words ("affianco" for "a fianco").
	KindWronglyJoined Kind = "wrongly-joined"

	// KindWronglySplit marks separate words that should be written as one.
	KindWronglySplit Kind = "wrongly-split"

	// KindOther covers any remaining ambiguity, such as a misplaced
	// apostrophe ("qual'è").
	KindOther Kind = "other"
)

// IsValid reports whether k is a recognised kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindHomophone, KindAccentMissing, KindWronglyJoined, KindWronglySplit, KindOther:
		return true
	}
	return false
}

// kindAliases maps the Italian labels used by hand-written word lists to
// their kind.
var kindAliases = map[string]Kind{
	"omofono":     KindHomophone,
	"accento":     KindAccentMissing,
	"separazione": KindWronglyJoined,
	"unione":      KindWronglySplit,
	"apostrofo":   KindOther,
	"altro":       KindOther,
}

// ParseKind converts s to a [Kind]. It accepts the canonical names as well
// as the Italian labels (omofono, accento, separazione, unione, apostrofo,
// altro), ignoring case and surrounding whitespace.
func ParseKind(s string) (Kind, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if k := Kind(norm); k.IsValid() {
		return k, nil
	}
	if k, ok := kindAliases[norm]; ok {
		return k, nil
	}
	return "", fmt.Errorf("kind %q is not a recognised ambiguity kind", s)
}

// UnmarshalText implements [encoding.TextUnmarshaler] so kinds decode from
// YAML and JSON through [ParseKind].
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Suggestion is one candidate correction for an ambiguous word.
type Suggestion struct {
	// Correction is the replacement text.
	Correction string `yaml:"correction" json:"correction"`

	// UsageContext describes when this correction applies (e.g. "verbo").
	UsageContext string `yaml:"context" json:"context"`

	// Example is an optional illustrative sentence.
	Example string `yaml:"example,omitempty" json:"example,omitempty"`
}

// Entry is the ambiguity record of a single word. Entries handed out by a
// [Dictionary] are shared and must not be modified.
type Entry struct {
	// Word is the lowercase dictionary key.
	Word string `yaml:"word" json:"word"`

	// Kind classifies the ambiguity.
	Kind Kind `yaml:"kind" json:"kind"`

	// Meanings lists the possible readings of the word, in order.
	Meanings []string `yaml:"meanings" json:"meanings"`

	// Suggestions lists candidate corrections. Index 0 is the default choice
	// used by automatic correction.
	Suggestions []Suggestion `yaml:"suggestions" json:"suggestions"`
}

// ErrInvalidEntry is returned (wrapped) when an entry fails validation.
var ErrInvalidEntry = errors.New("dictionary: invalid entry")

// Validate checks an [Entry] for required fields.
//
// Rules:
//   - Word must be non-empty and contain no whitespace.
//   - Kind must be a recognised [Kind].
//   - Every [Suggestion] must have a non-empty Correction.
func Validate(e Entry) error {
	var errs []error

	if e.Word == "" {
		errs = append(errs, errors.New("word must not be empty"))
	} else if strings.ContainsFunc(e.Word, unicode.IsSpace) {
		errs = append(errs, fmt.Errorf("word %q must not contain whitespace", e.Word))
	}

	if !e.Kind.IsValid() {
		errs = append(errs, fmt.Errorf("kind %q is not a recognised ambiguity kind", e.Kind))
	}

	for i, s := range e.Suggestions {
		if s.Correction == "" {
			errs = append(errs, fmt.Errorf("suggestions[%d]: correction must not be empty", i))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w %q: %w", ErrInvalidEntry, e.Word, errors.Join(errs...))
}

// clone returns a deep copy of e with non-nil slices.
func (e Entry) clone() Entry {
	e.Meanings = append(make([]string, 0, len(e.Meanings)), e.Meanings...)
	e.Suggestions = append(make([]Suggestion, 0, len(e.Suggestions)), e.Suggestions...)
	return e
}
