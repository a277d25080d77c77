package tts_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/metavoices/pkg/provider/tts"
	"github.com/MrWong99/metavoices/pkg/provider/tts/mock"
)

func TestSentences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "empty", text: "   ", want: nil},
		{name: "no terminator", text: "vengo da Roma", want: []string{"vengo da Roma"}},
		{name: "three sentences", text: "Ciao. Come stai? Bene!", want: []string{"Ciao.", "Come stai?", "Bene!"}},
		{name: "abbreviation-like dot without space", text: "v.1.2 è uscita. Sì", want: []string{"v.1.2 è uscita.", "Sì"}},
		{name: "ellipsis", text: "Dunque… vediamo", want: []string{"Dunque…", "vediamo"}},
		{name: "triple dot", text: "Aspetta... ok", want: []string{"Aspetta...", "ok"}},
		{name: "blank line", text: "Titolo\n\nTesto qui.", want: []string{"Titolo", "Testo qui."}},
		{name: "surrounding space", text: "  Uno.   Due.  ", want: []string{"Uno.", "Due."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tts.Sentences(tt.text); !slices.Equal(got, tt.want) {
				t.Errorf("Sentences(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestFeed(t *testing.T) {
	t.Parallel()

	var got []string
	for s := range tts.Feed(context.Background(), []string{"a", "b", "c"}) {
		got = append(got, s)
	}
	if !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("Feed emitted %q", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch := tts.Feed(ctx, []string{"a", "b"})
	cancel()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("Feed did not stop after cancellation")
		}
	}
}

func TestVoiceCache_TTL(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	inner := &mock.Provider{ListVoicesResult: []tts.VoiceProfile{{ID: "v1"}}}
	c := tts.NewVoiceCache(inner, tts.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	for range 3 {
		if _, err := c.ListVoices(ctx); err != nil {
			t.Fatalf("ListVoices: %v", err)
		}
	}
	if n := inner.ListVoicesCalls(); n != 1 {
		t.Errorf("provider called %d times within TTL, want 1", n)
	}

	now = now.Add(tts.DefaultVoiceCacheTTL)
	if _, err := c.ListVoices(ctx); err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if n := inner.ListVoicesCalls(); n != 2 {
		t.Errorf("provider called %d times after expiry, want 2", n)
	}

	c.Invalidate()
	_, _ = c.ListVoices(ctx)
	if n := inner.ListVoicesCalls(); n != 3 {
		t.Errorf("provider called %d times after Invalidate, want 3", n)
	}
}

func TestVoiceCache_StaleAndFallback(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := tts.WithClock(func() time.Time { return now })
	boom := errors.New("api down")
	ctx := context.Background()

	// Stale list wins over the fallback.
	inner := &mock.Provider{ListVoicesResult: []tts.VoiceProfile{{ID: "fresh"}}}
	c := tts.NewVoiceCache(inner, clock, tts.WithTTL(time.Minute),
		tts.WithFallbackVoices([]tts.VoiceProfile{{ID: "fallback"}}))
	if _, err := c.ListVoices(ctx); err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	inner.ListVoicesErr = boom
	now = now.Add(2 * time.Minute)
	voices, err := c.ListVoices(ctx)
	if err != nil || len(voices) != 1 || voices[0].ID != "fresh" {
		t.Errorf("stale: voices=%v err=%v", voices, err)
	}

	// Nothing cached: fallback.
	c2 := tts.NewVoiceCache(&mock.Provider{ListVoicesErr: boom}, clock,
		tts.WithFallbackVoices([]tts.VoiceProfile{{ID: "fallback"}}))
	voices, err = c2.ListVoices(ctx)
	if err != nil || len(voices) != 1 || voices[0].ID != "fallback" {
		t.Errorf("fallback: voices=%v err=%v", voices, err)
	}

	// Neither: the error surfaces.
	c3 := tts.NewVoiceCache(&mock.Provider{ListVoicesErr: boom}, clock)
	if _, err := c3.ListVoices(ctx); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestVoiceCache_VoiceWithFallbackList(t *testing.T) {
	t.Parallel()

	boom := errors.New("api down")
	c := tts.NewVoiceCache(&mock.Provider{ListVoicesErr: boom},
		tts.WithFallbackVoices([]tts.VoiceProfile{{ID: "giulia", Name: "Giulia"}}))
	ctx := context.Background()

	v, ok, err := c.Voice(ctx, "giulia")
	if err != nil || !ok || v.Name != "Giulia" {
		t.Errorf("Voice(giulia) = %+v, %v, %v", v, ok, err)
	}

	// The fallback list is not authoritative: a missing voice is unverified,
	// not unknown.
	_, ok, err = c.Voice(ctx, "custom")
	if ok {
		t.Error("Voice(custom) found")
	}
	if !errors.Is(err, tts.ErrVoiceUnverified) || !errors.Is(err, boom) {
		t.Errorf("Voice(custom) error = %v, want ErrVoiceUnverified wrapping %v", err, boom)
	}
}

func TestVoiceCache_VoiceAndClone(t *testing.T) {
	t.Parallel()

	inner := &mock.Provider{
		ListVoicesResult: []tts.VoiceProfile{{ID: "v1", Name: "Rachel"}},
		CloneVoiceResult: &tts.VoiceProfile{ID: "v2"},
	}
	c := tts.NewVoiceCache(inner)
	ctx := context.Background()

	v, ok, err := c.Voice(ctx, "v1")
	if err != nil || !ok || v.Name != "Rachel" {
		t.Errorf("Voice(v1) = %+v, %v, %v", v, ok, err)
	}
	if _, ok, _ := c.Voice(ctx, "missing"); ok {
		t.Error("Voice(missing) found")
	}

	if _, err := c.CloneVoice(ctx, [][]byte{{1}}); err != nil {
		t.Fatalf("CloneVoice: %v", err)
	}
	_, _ = c.ListVoices(ctx)
	if n := inner.ListVoicesCalls(); n != 2 {
		t.Errorf("ListVoices calls = %d, want 2 (clone invalidates)", n)
	}
}

func TestMockProvider_RecordsText(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{SynthesizeChunks: [][]byte{[]byte("a"), []byte("b")}}
	ctx := context.Background()
	audio, err := p.SynthesizeStream(ctx, tts.Feed(ctx, []string{"Uno.", "Due."}), tts.VoiceProfile{ID: "v"})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	var n int
	for range audio {
		n++
	}
	if n != 2 {
		t.Errorf("got %d chunks, want 2", n)
	}
	if got := p.Texts(); !slices.Equal(got, []string{"Uno.", "Due."}) {
		t.Errorf("Texts() = %q", got)
	}
	if calls := p.SynthesizeCalls(); len(calls) != 1 || calls[0].Voice.ID != "v" {
		t.Errorf("calls = %+v", calls)
	}
}
