package api

import (
	"net/http"

	"github.com/MrWong99/metavoices/internal/session"
)

type sessionsResponse struct {
	Sessions []string `json:"sessions"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: s.sessions.IDs()})
}

// handleCreateSession opens a session and analyzes its text right away. A
// session whose first analysis fails is discarded.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := s.sessions.Create(r.Context(), req.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	snap, err := sess.Analyze(r.Context())
	if err != nil {
		_ = s.sessions.Delete(r.Context(), sess.ID())
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/sessions/"+sess.ID())
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleSetText(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req textRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess.SetText(req.Text))
}

func (s *Server) handleSessionAnalyze(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	snap, err := sess.Analyze(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type applyRequest struct {
	Finding    int `json:"finding"`
	Suggestion int `json:"suggestion"`
}

type applyResponse struct {
	Applied session.AppliedCorrection `json:"applied"`
	Session session.Snapshot          `json:"session"`
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req applyRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	applied, snap, err := sess.ApplySuggestion(req.Finding, req.Suggestion)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, applyResponse{Applied: applied, Session: snap})
}

type bulkResponse struct {
	Applied int              `json:"applied"`
	Session session.Snapshot `json:"session"`
}

func (s *Server) handleApplyAll(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	n, snap := sess.ApplyAll()
	writeJSON(w, http.StatusOK, bulkResponse{Applied: n, Session: snap})
}

func (s *Server) handleAutoCorrect(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	n, snap := sess.AutoCorrect()
	writeJSON(w, http.StatusOK, bulkResponse{Applied: n, Session: snap})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// session resolves the {id} path value, writing a 404 when it is unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return sess, true
}
