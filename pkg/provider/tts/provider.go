// Package tts defines the Provider interface for Text-to-Speech backends.
//
// Reviewed text is handed to a TTS provider for reading aloud. The primary
// entry point is SynthesizeStream, which accepts a channel of text fragments
// (usually sentences, see [Sentences]) and returns a channel of raw PCM audio
// bytes as they become available, so playback can start before the whole
// text is synthesised.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// SynthesizeStream consumes text fragments from the text channel and
	// returns a channel that emits raw PCM audio byte slices as they are
	// synthesised.
	//
	// The returned audio channel is closed by the implementation when all text
	// has been synthesised or when ctx is cancelled. The caller must drain the
	// audio channel to avoid blocking the provider's internal goroutines.
	//
	// Returns a non-nil error only if the stream cannot be started. Errors
	// encountered during synthesis are signalled by closing the audio channel
	// early; callers should check ctx.Err() to distinguish cancellation from
	// provider errors.
	SynthesizeStream(ctx context.Context, text <-chan string, voice VoiceProfile) (<-chan []byte, error)

	// ListVoices returns all voice profiles available from this provider.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)

	// CloneVoice creates a new voice profile from the supplied audio samples.
	// It is an expensive operation. An empty samples slice returns an error.
	CloneVoice(ctx context.Context, samples [][]byte) (*VoiceProfile, error)
}
