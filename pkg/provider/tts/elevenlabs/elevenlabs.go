// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// ElevenLabs streaming WebSocket API. It implements the tts.Provider interface.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/metavoices/pkg/provider/tts"
)

const (
	defaultBaseURL   = "https://api.elevenlabs.io"
	streamPathFmt    = "/v1/text-to-speech/%s/stream-input"
	voicesPath       = "/v1/voices"
	addVoicePath     = "/v1/voices/add"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "pcm_16000"
	providerName     = "elevenlabs"
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_multilingual_v2").
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithOutputFormat sets the audio output format (e.g., "pcm_16000", "pcm_24000").
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		if format != "" {
			p.outputFormat = format
		}
	}
}

// WithBaseURL overrides the API origin. Both the REST calls and the
// WebSocket stream use it.
func WithBaseURL(base string) Option {
	return func(p *Provider) {
		if base != "" {
			p.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithHTTPClient sets the client used for REST calls and the WebSocket
// handshake.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// Provider implements tts.Provider backed by the ElevenLabs streaming API.
type Provider struct {
	apiKey       string
	model        string
	outputFormat string
	baseURL      string
	httpClient   *http.Client
}

var _ tts.Provider = (*Provider)(nil)

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		baseURL:      defaultBaseURL,
		httpClient:   &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// PredefinedVoices is a small list of stock voices usable without listing
// the account catalogue. It serves as the fallback when the API is down.
func PredefinedVoices() []tts.VoiceProfile {
	mk := func(id, name, desc string) tts.VoiceProfile {
		return tts.VoiceProfile{
			ID:       id,
			Name:     name,
			Provider: providerName,
			Metadata: map[string]string{"category": "premade", "description": desc},
		}
	}
	return []tts.VoiceProfile{
		mk("21m00Tcm4TlvDq8ikWAM", "Rachel", "Voce femminile chiara"),
		mk("AZnzlk1XvdvUeBnXmlld", "Domi", "Voce femminile energetica"),
		mk("EXAVITQu4vr4xnSDxMaL", "Bella", "Voce femminile calda"),
	}
}

// ---- WebSocket message types ----

// textMessage is the JSON payload sent to ElevenLabs for each text fragment.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64  `json:"stability"`
	SimilarityBoost float64  `json:"similarity_boost"`
	Speed           *float64 `json:"speed,omitempty"`
}

// audioResponse is the JSON message received from ElevenLabs over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded PCM
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// settingsFor derives the voice settings for voice. SpeedFactor is only sent
// when it differs from the default.
func settingsFor(voice tts.VoiceProfile) *voiceSettings {
	vs := &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
	if voice.SpeedFactor > 0 && voice.SpeedFactor != 1 {
		speed := voice.SpeedFactor
		vs.Speed = &speed
	}
	return vs
}

// ContentType returns the MIME type of the audio produced with the
// configured output format.
func (p *Provider) ContentType() string {
	codec, params, _ := strings.Cut(p.outputFormat, "_")
	switch codec {
	case "pcm":
		rate, _, _ := strings.Cut(params, "_")
		return "audio/L16; rate=" + rate + "; channels=1"
	case "mp3":
		return "audio/mpeg"
	case "ulaw":
		return "audio/basic"
	case "opus":
		return "audio/ogg; codecs=opus"
	default:
		return "application/octet-stream"
	}
}

// streamURL constructs the WebSocket URL for a given voice.
func (p *Provider) streamURL(voiceID string) string {
	q := url.Values{}
	q.Set("model_id", p.model)
	q.Set("output_format", p.outputFormat)
	return p.baseURL + fmt.Sprintf(streamPathFmt, url.PathEscape(voiceID)) + "?" + q.Encode()
}

// SynthesizeStream opens a WebSocket to ElevenLabs, pipes text fragments from
// the text channel, and returns a channel emitting raw PCM audio chunks.
//
// The returned audio channel is closed when synthesis is complete or ctx is cancelled.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	if voice.ID == "" {
		return nil, errors.New("elevenlabs: voice.ID must not be empty")
	}

	conn, _, err := websocket.Dial(ctx, p.streamURL(voice.ID), &websocket.DialOptions{HTTPClient: p.httpClient})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}

	// The first message authenticates and configures the stream. ElevenLabs
	// requires a single space as its text.
	boi, _ := json.Marshal(textMessage{Text: " ", VoiceSettings: settingsFor(voice), XiAPIKey: p.apiKey})
	if err := conn.Write(ctx, websocket.MessageText, boi); err != nil {
		conn.Close(websocket.StatusInternalError, "failed to send BOI")
		return nil, fmt.Errorf("elevenlabs: send BOI: %w", err)
	}

	audioCh := make(chan []byte, 256)

	go func() {
		defer close(audioCh)

		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			p.readAudio(ctx, conn, audioCh)
		}()

		p.writeText(ctx, conn, text, readDone)
		conn.Close(websocket.StatusNormalClosure, "done")
		// The reader must be gone before audioCh is closed.
		<-readDone
	}()

	return audioCh, nil
}

// writeText sends fragments from text until it is closed, then flushes and
// waits for the reader to see the final message. It returns early when the
// reader stops or ctx is cancelled.
func (p *Provider) writeText(ctx context.Context, conn *websocket.Conn, text <-chan string, readDone <-chan struct{}) {
	for {
		select {
		case fragment, ok := <-text:
			if !ok {
				// End of input: an empty text flushes and closes the stream.
				flush, _ := json.Marshal(textMessage{Text: ""})
				_ = conn.Write(ctx, websocket.MessageText, flush)
				select {
				case <-readDone:
				case <-ctx.Done():
				}
				return
			}
			if strings.TrimSpace(fragment) == "" {
				continue
			}
			// ElevenLabs buffers until it sees trailing whitespace.
			msg, _ := json.Marshal(textMessage{Text: fragment + " "})
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				slog.Warn("elevenlabs: write fragment", "err", err)
				return
			}
		case <-readDone:
			return
		case <-ctx.Done():
			return
		}
	}
}

// readAudio forwards decoded audio chunks to out until the final message,
// an error, or cancellation.
func (p *Provider) readAudio(ctx context.Context, conn *websocket.Conn, out chan<- []byte) {
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && ctx.Err() == nil {
				slog.Debug("elevenlabs: stream closed", "err", err)
			}
			return
		}
		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Error != "" {
			slog.Warn("elevenlabs: synthesis error", "error", resp.Error, "message", resp.Message)
			return
		}
		if resp.Audio != "" {
			pcm, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err == nil {
				select {
				case out <- pcm:
				case <-ctx.Done():
					return
				}
			}
		}
		if resp.IsFinal {
			return
		}
	}
}

// ---- ListVoices ----

// voicesResponse is the top-level response from GET /v1/voices.
type voicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

// elevenLabsVoice is a single voice entry from the ElevenLabs API.
type elevenLabsVoice struct {
	VoiceID     string            `json:"voice_id"`
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	Description string            `json:"description"`
	Labels      map[string]string `json:"labels"`
}

// ListVoices returns all voices available from ElevenLabs for the configured API key.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+voicesPath, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: list voices: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices read: %w", err)
	}
	profiles, err := parseVoicesResponse(data)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices decode: %w", err)
	}
	return profiles, nil
}

// parseVoicesResponse parses a raw /v1/voices response body into profiles.
func parseVoicesResponse(data []byte) ([]tts.VoiceProfile, error) {
	var vr voicesResponse
	if err := json.Unmarshal(data, &vr); err != nil {
		return nil, err
	}
	profiles := make([]tts.VoiceProfile, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		meta := make(map[string]string, len(v.Labels)+2)
		maps.Copy(meta, v.Labels)
		if v.Category != "" {
			meta["category"] = v.Category
		}
		if v.Description != "" {
			meta["description"] = v.Description
		}
		profiles = append(profiles, tts.VoiceProfile{
			ID:       v.VoiceID,
			Name:     v.Name,
			Provider: providerName,
			Metadata: meta,
		})
	}
	return profiles, nil
}

// ---- CloneVoice ----

// addVoiceResponse is the response from POST /v1/voices/add.
type addVoiceResponse struct {
	VoiceID string `json:"voice_id"`
}

// CloneVoice uploads samples as an instant voice clone and returns the new
// profile. Each sample must be an audio file ElevenLabs accepts (e.g., WAV
// or MP3).
func (p *Provider) CloneVoice(ctx context.Context, samples [][]byte) (*tts.VoiceProfile, error) {
	if len(samples) == 0 {
		return nil, errors.New("elevenlabs: clone voice: no samples")
	}
	name := fmt.Sprintf("metavoices-%d", time.Now().Unix())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("name", name); err != nil {
		return nil, fmt.Errorf("elevenlabs: clone voice: %w", err)
	}
	for i, s := range samples {
		fw, err := mw.CreateFormFile("files", fmt.Sprintf("sample-%d.wav", i))
		if err != nil {
			return nil, fmt.Errorf("elevenlabs: clone voice: %w", err)
		}
		if _, err := fw.Write(s); err != nil {
			return nil, fmt.Errorf("elevenlabs: clone voice: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("elevenlabs: clone voice: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+addVoicePath, &body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: clone voice: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: clone voice HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: clone voice: unexpected status %d", resp.StatusCode)
	}
	var avr addVoiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&avr); err != nil {
		return nil, fmt.Errorf("elevenlabs: clone voice decode: %w", err)
	}
	if avr.VoiceID == "" {
		return nil, errors.New("elevenlabs: clone voice: response has no voice_id")
	}
	return &tts.VoiceProfile{ID: avr.VoiceID, Name: name, Provider: providerName}, nil
}
