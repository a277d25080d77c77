package mcptools

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/metavoices/internal/analysis"
	"github.com/MrWong99/metavoices/internal/dictionary"
	"github.com/MrWong99/metavoices/internal/session"
)

const (
	toolAnalyze    = "analyze_text"
	toolApply      = "apply_correction"
	toolAuto       = "auto_correct"
	toolStats      = "text_stats"
	toolLookup     = "lookup_word"
	lookupNearestN = 5
)

var toolNames = []string{toolAnalyze, toolApply, toolAuto, toolStats, toolLookup}

var errEmptyWord = errors.New("word must not be empty")

type textArgs struct {
	Text string `json:"text" jsonschema:"the Italian text to examine"`
}

// finding is the flattened tool view of an [analysis.Finding].
type finding struct {
	Word        string   `json:"word"`
	Position    int      `json:"position"`
	Context     string   `json:"context"`
	Kind        string   `json:"kind"`
	Meanings    []string `json:"meanings"`
	Suggestions []string `json:"suggestions"`
}

type analyzeResult struct {
	Findings []finding      `json:"findings"`
	Stats    analysis.Stats `json:"stats"`
}

type applyArgs struct {
	Text      string `json:"text" jsonschema:"the text to rewrite"`
	Original  string `json:"original" jsonschema:"the word to replace, matched as a whole word ignoring case"`
	Corrected string `json:"corrected" jsonschema:"the replacement, inserted literally"`
}

type applyResult struct {
	Text    string `json:"text"`
	Changed bool   `json:"changed"`
}

type correction struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
}

type autoResult struct {
	Text       string       `json:"text"`
	Applied    []correction `json:"applied"`
	Unresolved []finding    `json:"unresolved"`
}

type lookupArgs struct {
	Word string `json:"word" jsonschema:"the word to look up"`
}

type similarWord struct {
	Word  string  `json:"word"`
	Score float64 `json:"score"`
}

type lookupResult struct {
	Found       bool          `json:"found"`
	Word        string        `json:"word"`
	Kind        string        `json:"kind,omitempty"`
	Meanings    []string      `json:"meanings"`
	Suggestions []string      `json:"suggestions"`
	Nearest     []similarWord `json:"nearest"`
}

func (s *Server) register() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolAnalyze,
		Description: "Find ambiguous Italian words (homophones, missing accents, wrongly joined words) with their context and suggested corrections.",
	}, instrument(s, toolAnalyze, s.analyzeText))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolApply,
		Description: "Replace every whole-word, case-insensitive occurrence of a word in a text.",
	}, instrument(s, toolApply, s.applyCorrection))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolAuto,
		Description: "Apply the default suggestion of every ambiguous word in a text and report what could not be resolved.",
	}, instrument(s, toolAuto, s.autoCorrect))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolStats,
		Description: "Count words and characters in a text and estimate its reading time in minutes.",
	}, instrument(s, toolStats, s.textStats))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolLookup,
		Description: "Look a word up in the ambiguity dictionary; unknown words return similar dictionary words.",
	}, instrument(s, toolLookup, s.lookupWord))
}

func (s *Server) analyzeText(ctx context.Context, _ *mcp.CallToolRequest, in textArgs) (*mcp.CallToolResult, analyzeResult, error) {
	findings, err := s.analyzer.AnalyzeText(ctx, in.Text)
	if err != nil {
		return nil, analyzeResult{}, err
	}
	return nil, analyzeResult{
		Findings: toFindings(findings),
		Stats:    s.analyzer.TextStats(in.Text),
	}, nil
}

func (s *Server) applyCorrection(_ context.Context, _ *mcp.CallToolRequest, in applyArgs) (*mcp.CallToolResult, applyResult, error) {
	out := s.analyzer.ApplyCorrection(in.Text, in.Original, in.Corrected)
	return nil, applyResult{Text: out, Changed: out != in.Text}, nil
}

func (s *Server) autoCorrect(ctx context.Context, _ *mcp.CallToolRequest, in textArgs) (*mcp.CallToolResult, autoResult, error) {
	sess := session.New(toolAuto, s.analyzer, in.Text, session.WithMetrics(s.metrics))
	if _, err := sess.Analyze(ctx); err != nil {
		return nil, autoResult{}, err
	}
	_, snap := sess.AutoCorrect()
	applied := make([]correction, 0, len(snap.Applied))
	for _, ac := range snap.Applied {
		applied = append(applied, correction{Original: ac.Original, Corrected: ac.Corrected})
	}
	return nil, autoResult{
		Text:       snap.Text,
		Applied:    applied,
		Unresolved: toFindings(snap.Findings),
	}, nil
}

func (s *Server) textStats(_ context.Context, _ *mcp.CallToolRequest, in textArgs) (*mcp.CallToolResult, analysis.Stats, error) {
	return nil, s.analyzer.TextStats(in.Text), nil
}

func (s *Server) lookupWord(ctx context.Context, _ *mcp.CallToolRequest, in lookupArgs) (*mcp.CallToolResult, lookupResult, error) {
	word := strings.TrimSpace(in.Word)
	if word == "" {
		return nil, lookupResult{}, errEmptyWord
	}
	if err := s.analyzer.EnsureReady(ctx); err != nil {
		return nil, lookupResult{}, err
	}
	d := s.analyzer.Dictionary()

	res := lookupResult{
		Word:        dictionary.Key(word),
		Meanings:    []string{},
		Suggestions: []string{},
		Nearest:     []similarWord{},
	}
	if e, ok := d.Entry(word); ok {
		res.Found = true
		res.Kind = string(e.Kind)
		res.Meanings = append(res.Meanings, e.Meanings...)
		res.Suggestions = corrections(e)
		return nil, res, nil
	}
	for _, m := range d.Nearest(word, lookupNearestN, 0) {
		res.Nearest = append(res.Nearest, similarWord{Word: m.Word, Score: m.Score})
	}
	return nil, res, nil
}

func toFindings(in []analysis.Finding) []finding {
	out := make([]finding, 0, len(in))
	for _, f := range in {
		tf := finding{
			Word:        f.Word,
			Position:    f.Position,
			Context:     f.Context,
			Meanings:    []string{},
			Suggestions: []string{},
		}
		if f.Entry != nil {
			tf.Kind = string(f.Entry.Kind)
			tf.Meanings = append(tf.Meanings, f.Entry.Meanings...)
			tf.Suggestions = corrections(f.Entry)
		}
		out = append(out, tf)
	}
	return out
}

func corrections(e *dictionary.Entry) []string {
	out := make([]string, 0, len(e.Suggestions))
	for _, sg := range e.Suggestions {
		out = append(out, sg.Correction)
	}
	return out
}
