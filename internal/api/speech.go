package api

import (
	"cmp"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/metavoices/internal/observe"
	"github.com/MrWong99/metavoices/pkg/provider/tts"
)

var errSpeechDisabled = errors.New("speech synthesis is not configured")

type voicesResponse struct {
	Voices []tts.VoiceProfile `json:"voices"`
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	if s.speech == nil {
		writeError(w, http.StatusServiceUnavailable, errSpeechDisabled.Error())
		return
	}
	voices, err := s.speech.Voices.ListVoices(r.Context())
	if err != nil {
		observe.Logger(r.Context()).Warn("list voices failed", "err", err)
		writeError(w, http.StatusServiceUnavailable, "voice list unavailable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, voicesResponse{Voices: voices})
}

// speakRequest names the text to synthesize: either inline or the working
// text of a session.
type speakRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
	VoiceID   string `json:"voice_id"`
}

// handleSpeak streams synthesized audio for a text, one sentence at a time.
// Chunks are flushed as they arrive so playback can start before synthesis
// ends.
func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	if s.speech == nil {
		writeError(w, http.StatusServiceUnavailable, errSpeechDisabled.Error())
		return
	}
	var req speakRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	text := req.Text
	if req.SessionID != "" {
		sess, err := s.sessions.Get(r.Context(), req.SessionID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		text = sess.Text()
	}
	sentences := tts.Sentences(text)
	if len(sentences) == 0 {
		writeError(w, http.StatusBadRequest, "text is empty")
		return
	}

	voiceID := cmp.Or(req.VoiceID, s.speech.DefaultVoice)
	if voiceID == "" {
		writeError(w, http.StatusBadRequest, "voice_id is required")
		return
	}
	voice, status, err := s.resolveVoice(r, voiceID)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	ctx := r.Context()
	log := observe.Logger(ctx)
	start := time.Now()
	audio, err := s.speech.Voices.SynthesizeStream(ctx, tts.Feed(ctx, sentences), voice)
	if err != nil {
		log.Warn("synthesis failed", "voice", voice.ID, "err", err)
		writeError(w, http.StatusServiceUnavailable, "speech synthesis failed: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", s.speech.ContentType)
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	var written int
	var writeErr error
	for chunk := range audio {
		// Keep draining after a write error so the provider can finish.
		if writeErr != nil {
			continue
		}
		if _, writeErr = w.Write(chunk); writeErr == nil {
			written += len(chunk)
			writeErr = rc.Flush()
		}
	}

	elapsed := time.Since(start)
	s.metrics.TTSDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("voice", voice.ID)),
	)
	log.Debug("speech streamed",
		"voice", voice.ID,
		"sentences", len(sentences),
		"bytes", written,
		"elapsed", elapsed,
		"write_err", writeErr,
	)
}

// resolveVoice looks voiceID up in the voice list. When the provider's list
// cannot be fetched, and no fallback voice matches, a bare profile with the
// ID is used so synthesis can still be attempted. Only a list that came from
// the provider can make a voice unknown.
func (s *Server) resolveVoice(r *http.Request, voiceID string) (tts.VoiceProfile, int, error) {
	v, ok, err := s.speech.Voices.Voice(r.Context(), voiceID)
	switch {
	case err != nil:
		observe.Logger(r.Context()).Warn("voice lookup failed, using bare profile", "voice", voiceID, "err", err)
		return tts.VoiceProfile{ID: voiceID}, 0, nil
	case !ok:
		return tts.VoiceProfile{}, http.StatusNotFound, fmt.Errorf("unknown voice %q", voiceID)
	}
	return v, 0, nil
}
