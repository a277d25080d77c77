package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/metavoices/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server:     config.ServerConfig{ListenAddr: ":8080", LogLevel: config.LogInfo},
		Dictionary: config.DictionaryConfig{Source: config.SourceFile, Path: "words.yaml"},
		Providers: config.ProvidersConfig{TTS: config.ProviderEntry{
			Name:    "elevenlabs",
			Options: map[string]any{"stability": 0.5},
		}},
		Speech: config.SpeechConfig{VoiceID: "v1", Fallbacks: []config.ProviderEntry{{Name: "mock"}}},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	d := config.Diff(baseConfig(), baseConfig())
	if !d.Empty() {
		t.Errorf("Diff of equal configs = %+v, want empty", d)
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	three := 3
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		check   func(config.ConfigDiff) bool
		restart []string
	}{
		{
			name:   "log level",
			mutate: func(c *config.Config) { c.Server.LogLevel = config.LogDebug },
			check: func(d config.ConfigDiff) bool {
				return d.LogLevelChanged && d.NewLogLevel == config.LogDebug
			},
		},
		{
			name:   "dictionary path",
			mutate: func(c *config.Config) { c.Dictionary.Path = "other.yaml" },
			check:  func(d config.ConfigDiff) bool { return d.DictionaryChanged },
		},
		{
			name:   "watch interval",
			mutate: func(c *config.Config) { c.Dictionary.WatchInterval = time.Second },
			check:  func(d config.ConfigDiff) bool { return d.DictionaryChanged },
		},
		{
			name:   "context size set",
			mutate: func(c *config.Config) { c.Analysis.ContextSize = &three },
			check:  func(d config.ConfigDiff) bool { return d.AnalysisChanged && !d.DictionaryChanged },
		},
		{
			name:    "listen address",
			mutate:  func(c *config.Config) { c.Server.ListenAddr = ":9090" },
			check:   func(d config.ConfigDiff) bool { return !d.LogLevelChanged },
			restart: []string{"server"},
		},
		{
			name:    "session limits",
			mutate:  func(c *config.Config) { c.Sessions.IdleTTL = time.Hour },
			check:   func(d config.ConfigDiff) bool { return !d.DictionaryChanged },
			restart: []string{"sessions"},
		},
		{
			name:    "tts options",
			mutate:  func(c *config.Config) { c.Providers.TTS.Options = map[string]any{"stability": 0.9} },
			check:   func(d config.ConfigDiff) bool { return true },
			restart: []string{"speech"},
		},
		{
			name:    "fallback list",
			mutate:  func(c *config.Config) { c.Speech.Fallbacks = nil },
			check:   func(d config.ConfigDiff) bool { return true },
			restart: []string{"speech"},
		},
		{
			name: "several",
			mutate: func(c *config.Config) {
				c.Server.TLS = &config.TLSConfig{CertFile: "c", KeyFile: "k"}
				c.MCP.Enabled = true
			},
			check:   func(d config.ConfigDiff) bool { return true },
			restart: []string{"server", "mcp"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			next := baseConfig()
			tt.mutate(next)
			d := config.Diff(baseConfig(), next)

			if d.Empty() {
				t.Fatal("Diff reported no change")
			}
			if !tt.check(d) {
				t.Errorf("unexpected diff %+v", d)
			}
			if !slices.Equal(d.RestartRequired, tt.restart) {
				t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, tt.restart)
			}
		})
	}
}

func TestDiff_EqualContextSizePointers(t *testing.T) {
	t.Parallel()

	a, b := 2, 2
	old, next := baseConfig(), baseConfig()
	old.Analysis.ContextSize = &a
	next.Analysis.ContextSize = &b
	if d := config.Diff(old, next); d.AnalysisChanged {
		t.Error("equal context sizes behind different pointers reported as changed")
	}
}
