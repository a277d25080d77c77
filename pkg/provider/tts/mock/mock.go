// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to feed controlled audio chunks to consumers and to verify
// which voice and text fragments reached the TTS backend.
//
// Example:
//
//	p := &mock.Provider{
//	    SynthesizeChunks: [][]byte{[]byte("audio1"), []byte("audio2")},
//	    ListVoicesResult: []tts.VoiceProfile{{ID: "v1", Name: "Rachel"}},
//	}
//	ch, _ := p.SynthesizeStream(ctx, textCh, voice)
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/metavoices/pkg/provider/tts"
)

// SynthesizeStreamCall records a single invocation of SynthesizeStream.
type SynthesizeStreamCall struct {
	// Voice is the VoiceProfile passed to SynthesizeStream.
	Voice tts.VoiceProfile
}

// Provider is a mock implementation of tts.Provider. The zero value is
// usable and emits no audio.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// SynthesizeChunks is the sequence of audio byte slices emitted on the
	// channel returned by SynthesizeStream, after the text channel closes.
	SynthesizeChunks [][]byte

	// SynthesizeErr, if non-nil, is returned from SynthesizeStream instead of
	// starting a channel.
	SynthesizeErr error

	// ListVoicesResult is returned by ListVoices.
	ListVoicesResult []tts.VoiceProfile

	// ListVoicesErr, if non-nil, is returned as the error from ListVoices.
	ListVoicesErr error

	// CloneVoiceResult is returned by CloneVoice. May be nil.
	CloneVoiceResult *tts.VoiceProfile

	// CloneVoiceErr, if non-nil, is returned as the error from CloneVoice.
	CloneVoiceErr error

	// --- Call records ---

	synthesizeCalls []SynthesizeStreamCall
	listVoicesCalls int
	cloneVoiceCalls int
	texts           []string
}

var _ tts.Provider = (*Provider)(nil)

// SynthesizeStream records the call and, if SynthesizeErr is nil, returns a
// channel that drains text, emits SynthesizeChunks, then closes.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	p.mu.Lock()
	p.synthesizeCalls = append(p.synthesizeCalls, SynthesizeStreamCall{Voice: voice})
	if p.SynthesizeErr != nil {
		err := p.SynthesizeErr
		p.mu.Unlock()
		return nil, err
	}
	chunks := slices.Clone(p.SynthesizeChunks)
	p.mu.Unlock()

	ch := make(chan []byte, len(chunks))
	go func() {
		defer close(ch)
		for {
			select {
			case s, ok := <-text:
				if !ok {
					for _, audio := range chunks {
						select {
						case ch <- audio:
						case <-ctx.Done():
							return
						}
					}
					return
				}
				p.mu.Lock()
				p.texts = append(p.texts, s)
				p.mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// ListVoices records the call and returns ListVoicesResult, ListVoicesErr.
func (p *Provider) ListVoices(context.Context) ([]tts.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listVoicesCalls++
	return slices.Clone(p.ListVoicesResult), p.ListVoicesErr
}

// CloneVoice records the call and returns CloneVoiceResult, CloneVoiceErr.
func (p *Provider) CloneVoice(context.Context, [][]byte) (*tts.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cloneVoiceCalls++
	return p.CloneVoiceResult, p.CloneVoiceErr
}

// SynthesizeCalls returns a copy of the recorded SynthesizeStream calls.
func (p *Provider) SynthesizeCalls() []SynthesizeStreamCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.synthesizeCalls)
}

// Texts returns every text fragment received so far, in order.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.texts)
}

// ListVoicesCalls returns how often ListVoices was called.
func (p *Provider) ListVoicesCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listVoicesCalls
}

// CloneVoiceCalls returns how often CloneVoice was called.
func (p *Provider) CloneVoiceCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cloneVoiceCalls
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synthesizeCalls = nil
	p.listVoicesCalls = 0
	p.cloneVoiceCalls = 0
	p.texts = nil
}
