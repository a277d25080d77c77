package api

import (
	"fmt"
	"net/http"

	"github.com/MrWong99/metavoices/internal/analysis"
	"github.com/MrWong99/metavoices/internal/dictionary"
)

// nearestLimit is how many similar words a failed lookup suggests.
const nearestLimit = 5

type textRequest struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	Findings []analysis.Finding `json:"findings"`
	Stats    analysis.Stats     `json:"stats"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	findings, err := s.analyzer.AnalyzeText(r.Context(), req.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{
		Findings: findings,
		Stats:    s.analyzer.TextStats(req.Text),
	})
}

type correctionRequest struct {
	Text      string `json:"text"`
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
}

type correctionResponse struct {
	Text    string `json:"text"`
	Changed bool   `json:"changed"`
}

func (s *Server) handleCorrection(w http.ResponseWriter, r *http.Request) {
	var req correctionRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out := s.analyzer.ApplyCorrection(req.Text, req.Original, req.Corrected)
	writeJSON(w, http.StatusOK, correctionResponse{Text: out, Changed: out != req.Text})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.analyzer.TextStats(req.Text))
}

type wordsResponse struct {
	Source string   `json:"source"`
	Count  int      `json:"count"`
	Words  []string `json:"words"`
}

func (s *Server) handleListWords(w http.ResponseWriter, r *http.Request) {
	d, err := s.dictionary(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	words := d.Words()
	writeJSON(w, http.StatusOK, wordsResponse{
		Source: s.analyzer.Source().Name(),
		Count:  len(words),
		Words:  words,
	})
}

type lookupMiss struct {
	Error   string             `json:"error"`
	Nearest []dictionary.Match `json:"nearest"`
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	d, err := s.dictionary(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	word := r.PathValue("word")
	if e, ok := d.Entry(word); ok {
		writeJSON(w, http.StatusOK, e)
		return
	}
	writeJSON(w, http.StatusNotFound, lookupMiss{
		Error:   fmt.Sprintf("%q is not an ambiguous word", word),
		Nearest: d.Nearest(word, nearestLimit, 0),
	})
}

// dictionary returns the analyzer's dictionary, loading it first if needed.
func (s *Server) dictionary(r *http.Request) (*dictionary.Dictionary, error) {
	if err := s.analyzer.EnsureReady(r.Context()); err != nil {
		return nil, err
	}
	return s.analyzer.Dictionary(), nil
}
