// Package api serves the text review HTTP API.
//
// All endpoints speak JSON. Errors are reported as {"error": "..."} with a
// 4xx or 5xx status. Routes:
//
//	POST   /v1/analyze                      analyze a text
//	POST   /v1/corrections                  apply one correction to a text
//	POST   /v1/stats                        word, character and reading-time counts
//	GET    /v1/dictionary                   list dictionary words
//	GET    /v1/dictionary/{word}            look up one word
//	GET    /v1/sessions                     list session IDs
//	POST   /v1/sessions                     open a correction session
//	GET    /v1/sessions/{id}                session snapshot
//	PUT    /v1/sessions/{id}/text           replace the working text
//	POST   /v1/sessions/{id}/analyze        re-run analysis
//	POST   /v1/sessions/{id}/apply          apply one suggestion
//	POST   /v1/sessions/{id}/apply-all      apply every default suggestion
//	POST   /v1/sessions/{id}/auto-correct   apply defaults, flag them automatic
//	DELETE /v1/sessions/{id}                close a session
//	GET    /v1/voices                       list synthesis voices
//	POST   /v1/speak                        stream synthesized audio
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/MrWong99/metavoices/internal/analysis"
	"github.com/MrWong99/metavoices/internal/observe"
	"github.com/MrWong99/metavoices/internal/session"
	"github.com/MrWong99/metavoices/pkg/provider/tts"
)

// DefaultMaxBodyBytes caps request bodies.
const DefaultMaxBodyBytes int64 = 1 << 20

// Speech configures the synthesis endpoints.
type Speech struct {
	// Voices is the provider used for synthesis and voice lookup.
	Voices *tts.VoiceCache

	// DefaultVoice is used when a request names no voice.
	DefaultVoice string

	// ContentType is sent with synthesized audio.
	// Default: "application/octet-stream".
	ContentType string
}

// Option configures a [Server].
type Option func(*Server)

// WithSpeech enables /v1/voices and /v1/speak. Without it both answer 503.
func WithSpeech(sp Speech) Option {
	return func(s *Server) {
		if sp.Voices == nil {
			return
		}
		if sp.ContentType == "" {
			sp.ContentType = "application/octet-stream"
		}
		s.speech = &sp
	}
}

// WithMetrics records synthesis latency on m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithMaxBodyBytes overrides [DefaultMaxBodyBytes].
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// Server holds the HTTP handlers.
type Server struct {
	analyzer *analysis.Analyzer
	sessions *session.Store
	speech   *Speech
	metrics  *observe.Metrics
	maxBody  int64
}

// New creates a [Server] on top of an analyzer and a session store.
func New(a *analysis.Analyzer, sessions *session.Store, opts ...Option) *Server {
	s := &Server{
		analyzer: a,
		sessions: sessions,
		maxBody:  DefaultMaxBodyBytes,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Register adds every API route to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /v1/corrections", s.handleCorrection)
	mux.HandleFunc("POST /v1/stats", s.handleStats)
	mux.HandleFunc("GET /v1/dictionary", s.handleListWords)
	mux.HandleFunc("GET /v1/dictionary/{word}", s.handleLookup)

	mux.HandleFunc("GET /v1/sessions", s.handleListSessions)
	mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("PUT /v1/sessions/{id}/text", s.handleSetText)
	mux.HandleFunc("POST /v1/sessions/{id}/analyze", s.handleSessionAnalyze)
	mux.HandleFunc("POST /v1/sessions/{id}/apply", s.handleApply)
	mux.HandleFunc("POST /v1/sessions/{id}/apply-all", s.handleApplyAll)
	mux.HandleFunc("POST /v1/sessions/{id}/auto-correct", s.handleAutoCorrect)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)

	mux.HandleFunc("GET /v1/voices", s.handleVoices)
	mux.HandleFunc("POST /v1/speak", s.handleSpeak)
}

// Handler returns a mux serving only the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

type errorResponse struct {
	Error string `json:"error"`
}

// decode reads a JSON body into v, rejecting unknown fields and oversized
// bodies.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrFindingIndex), errors.Is(err, session.ErrSuggestionIndex):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrStoreFull):
		return http.StatusTooManyRequests
	case errors.Is(err, analysis.ErrDictionaryLoad):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("request failed", "err", err)
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
