package tts

// VoiceProfile describes a synthesis voice offered by a provider.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string `json:"id"`

	// Name is the human-readable voice name.
	Name string `json:"name"`

	// Provider identifies which TTS provider this voice belongs to.
	Provider string `json:"provider,omitempty"`

	// PitchShift adjusts pitch (-10 to +10, 0 = default).
	PitchShift float64 `json:"pitch_shift,omitempty"`

	// SpeedFactor adjusts speaking rate (0.5–2.0, 0 or 1.0 = default).
	SpeedFactor float64 `json:"speed_factor,omitempty"`

	// Metadata holds provider-specific voice attributes (category, accent,
	// description, etc.).
	Metadata map[string]string `json:"metadata,omitempty"`
}
