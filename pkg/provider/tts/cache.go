package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// DefaultVoiceCacheTTL is how long a voice list stays fresh.
const DefaultVoiceCacheTTL = 5 * time.Minute

// ErrVoiceUnverified is returned (wrapped with the provider error) by
// [VoiceCache.Voice] when the provider is unreachable and the fallback list
// does not name the voice, so its existence cannot be decided.
var ErrVoiceUnverified = errors.New("tts: voice cannot be verified")

// CacheOption configures a [VoiceCache].
type CacheOption func(*VoiceCache)

// WithTTL sets how long a fetched voice list is served without asking the
// provider again. Non-positive values are ignored.
func WithTTL(d time.Duration) CacheOption {
	return func(c *VoiceCache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *VoiceCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithFallbackVoices sets the list served when the provider fails and no
// earlier list is cached.
func WithFallbackVoices(voices []VoiceProfile) CacheOption {
	return func(c *VoiceCache) {
		c.fallback = slices.Clone(voices)
	}
}

// VoiceCache is a [Provider] decorator that caches ListVoices. Synthesis and
// cloning pass straight through; a successful clone invalidates the cache.
//
// When a refresh fails, the last good list is served even if expired, then
// the fallback list; only when neither exists is the error returned.
type VoiceCache struct {
	inner    Provider
	ttl      time.Duration
	now      func() time.Time
	fallback []VoiceProfile

	mu        sync.Mutex
	voices    []VoiceProfile
	fetchedAt time.Time
}

var _ Provider = (*VoiceCache)(nil)

// NewVoiceCache wraps inner with a voice list cache.
func NewVoiceCache(inner Provider, opts ...CacheOption) *VoiceCache {
	c := &VoiceCache{
		inner: inner,
		ttl:   DefaultVoiceCacheTTL,
		now:   time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SynthesizeStream implements [Provider].
func (c *VoiceCache) SynthesizeStream(ctx context.Context, text <-chan string, voice VoiceProfile) (<-chan []byte, error) {
	return c.inner.SynthesizeStream(ctx, text, voice)
}

// ListVoices implements [Provider].
func (c *VoiceCache) ListVoices(ctx context.Context) ([]VoiceProfile, error) {
	voices, _, err := c.list(ctx)
	return voices, err
}

// Voice returns the profile with the given ID, refreshing the list if
// needed. The bool is false when a list obtained from the provider, fresh
// or stale, lacks the voice. When only the fallback list is available and
// it lacks the voice, the error wraps [ErrVoiceUnverified].
func (c *VoiceCache) Voice(ctx context.Context, id string) (VoiceProfile, bool, error) {
	voices, listErr, err := c.list(ctx)
	if err != nil {
		return VoiceProfile{}, false, err
	}
	i := slices.IndexFunc(voices, func(v VoiceProfile) bool { return v.ID == id })
	switch {
	case i >= 0:
		return voices[i], true, nil
	case listErr != nil:
		return VoiceProfile{}, false, fmt.Errorf("%w: %q: %w", ErrVoiceUnverified, id, listErr)
	}
	return VoiceProfile{}, false, nil
}

// list returns the voices to serve. listErr is the provider error when the
// result is the configured fallback list.
func (c *VoiceCache) list(ctx context.Context) (voices []VoiceProfile, listErr, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.voices != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		return slices.Clone(c.voices), nil, nil
	}

	voices, err = c.inner.ListVoices(ctx)
	if err != nil {
		switch {
		case c.voices != nil:
			slog.Warn("tts: voice refresh failed, serving stale list", "err", err, "age", c.now().Sub(c.fetchedAt))
			return slices.Clone(c.voices), nil, nil
		case c.fallback != nil:
			slog.Warn("tts: voice list unavailable, serving fallback voices", "err", err)
			return slices.Clone(c.fallback), err, nil
		}
		return nil, nil, err
	}

	if voices == nil {
		voices = []VoiceProfile{}
	}
	c.voices = voices
	c.fetchedAt = c.now()
	return slices.Clone(voices), nil, nil
}

// CloneVoice implements [Provider].
func (c *VoiceCache) CloneVoice(ctx context.Context, samples [][]byte) (*VoiceProfile, error) {
	v, err := c.inner.CloneVoice(ctx, samples)
	if err == nil {
		c.Invalidate()
	}
	return v, err
}

// Invalidate drops the cached list so the next ListVoices asks the provider.
func (c *VoiceCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.voices = nil
	c.fetchedAt = time.Time{}
}
