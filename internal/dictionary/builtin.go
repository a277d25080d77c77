package dictionary

import "context"

// builtinEntries is the compiled-in table of common Italian ambiguities.
var builtinEntries = []Entry{
	// Homophones.
	{
		Word:     "da",
		Kind:     KindHomophone,
		Meanings: []string{"preposizione", "verbo dare"},
		Suggestions: []Suggestion{
			{Correction: "dà", UsageContext: "verbo", Example: "Lui dà il libro a Maria"},
		},
	},
	{
		Word:     "dà",
		Kind:     KindHomophone,
		Meanings: []string{"verbo dare", "preposizione"},
		Suggestions: []Suggestion{
			{Correction: "da", UsageContext: "preposizione", Example: "Vengo da Roma"},
		},
	},
	{
		Word:     "e",
		Kind:     KindHomophone,
		Meanings: []string{"congiunzione", "nota musicale"},
	},
	{
		Word:     "è",
		Kind:     KindHomophone,
		Meanings: []string{"verbo essere"},
	},

	// Common mistakes.
	{
		Word:     "qual'è",
		Kind:     KindOther,
		Meanings: []string{"forma errata"},
		Suggestions: []Suggestion{
			{Correction: "qual è", UsageContext: "forma corretta", Example: "Qual è il tuo nome?"},
		},
	},
	{
		Word:     "affianco",
		Kind:     KindWronglyJoined,
		Meanings: []string{"avverbio errato"},
		Suggestions: []Suggestion{
			{Correction: "a fianco", UsageContext: "locuzione avverbiale", Example: "Mi metto a fianco a te"},
		},
	},
	{
		Word:     "dappertutto",
		Kind:     KindWronglyJoined,
		Meanings: []string{"avverbio errato"},
		Suggestions: []Suggestion{
			{Correction: "da per tutto", UsageContext: "locuzione avverbiale", Example: "Ho cercato da per tutto"},
		},
	},

	// Accents.
	{
		Word:     "perche",
		Kind:     KindAccentMissing,
		Meanings: []string{"forma senza accento"},
		Suggestions: []Suggestion{
			{Correction: "perché", UsageContext: "congiunzione", Example: "Non so perché sia successo"},
			{Correction: "perchè", UsageContext: "forma obsoleta", Example: "Forma meno comune"},
		},
	},
	{
		Word:     "poi",
		Kind:     KindAccentMissing,
		Meanings: []string{"avverbio", "forma senza accento"},
		Suggestions: []Suggestion{
			{Correction: "poi", UsageContext: "avverbio tempo", Example: "Prima studio, poi esco"},
			{Correction: "poi", UsageContext: "avverbio luogo", Example: "E poi cosa fai?"},
		},
	},
}

// BuiltinEntries returns a copy of the compiled-in entries.
func BuiltinEntries() []Entry {
	out := make([]Entry, len(builtinEntries))
	for i, e := range builtinEntries {
		out[i] = e.clone()
	}
	return out
}

// Builtin returns a new [Dictionary] built from the compiled-in table.
// It panics if the table is malformed, which a test guards against.
func Builtin() *Dictionary {
	d, err := New(builtinEntries)
	if err != nil {
		panic("dictionary: builtin table is malformed: " + err.Error())
	}
	return d
}

// BuiltinSource serves the compiled-in table. It never fails.
type BuiltinSource struct{}

var _ Source = BuiltinSource{}

// Name implements [Source].
func (BuiltinSource) Name() string { return "builtin" }

// Load implements [Source].
func (BuiltinSource) Load(context.Context) ([]Entry, error) {
	return BuiltinEntries(), nil
}
