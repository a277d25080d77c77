package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"tts": {"elevenlabs", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// An empty document yields the zero [Config], which runs the builtin
// dictionary without an HTTP listener.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Dictionary
	dict := cfg.Dictionary
	if dict.Source != "" && !dict.Source.IsValid() {
		errs = append(errs, fmt.Errorf("dictionary.source %q is invalid; valid values: builtin, file, redis, postgres", dict.Source))
	}
	switch dict.Source {
	case SourceFile:
		if dict.Path == "" {
			errs = append(errs, errors.New("dictionary.path is required when source is file"))
		}
	case SourceRedis:
		if dict.Redis.Addr == "" {
			errs = append(errs, errors.New("dictionary.redis.addr is required when source is redis"))
		}
		if dict.Redis.DB < 0 {
			errs = append(errs, fmt.Errorf("dictionary.redis.db %d must not be negative", dict.Redis.DB))
		}
	case SourcePostgres:
		if dict.Postgres.DSN == "" {
			errs = append(errs, errors.New("dictionary.postgres.dsn is required when source is postgres"))
		}
	}
	if dict.Watch && dict.Source != SourceFile {
		slog.Warn("dictionary.watch only applies to the file source; ignoring", "source", dict.Source)
	}
	if dict.WatchInterval < 0 {
		errs = append(errs, fmt.Errorf("dictionary.watch_interval %s must not be negative", dict.WatchInterval))
	}

	// Analysis
	if cs := cfg.Analysis.ContextSize; cs != nil && *cs < 0 {
		errs = append(errs, fmt.Errorf("analysis.context_size %d must not be negative", *cs))
	}
	if cfg.Analysis.WordsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("analysis.words_per_minute %d must not be negative", cfg.Analysis.WordsPerMinute))
	}

	// Sessions
	if cfg.Sessions.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("sessions.max_sessions %d must not be negative", cfg.Sessions.MaxSessions))
	}
	if cfg.Sessions.IdleTTL < 0 {
		errs = append(errs, fmt.Errorf("sessions.idle_ttl %s must not be negative", cfg.Sessions.IdleTTL))
	}

	// Providers and speech
	validateProviderName("tts", cfg.Providers.TTS.Name)
	for i, fb := range cfg.Speech.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("speech.fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("tts", fb.Name)
	}
	if len(cfg.Speech.Fallbacks) > 0 && cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("speech.fallbacks requires providers.tts to be configured"))
	}
	if cfg.Speech.VoiceCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("speech.voice_cache_ttl %s must not be negative", cfg.Speech.VoiceCacheTTL))
	}
	if cfg.Speech.VoiceID != "" && cfg.Providers.TTS.Name == "" {
		slog.Warn("speech.voice_id is set but providers.tts is not configured; speech endpoints stay disabled")
	}

	if cfg.Server.ListenAddr == "" && !cfg.MCP.Enabled {
		slog.Warn("neither server.listen_addr nor mcp.enabled is set; nothing will be served")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
