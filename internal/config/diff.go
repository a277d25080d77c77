package config

import (
	"maps"
	"reflect"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// is reported through RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// DictionaryChanged is set when the dictionary source or its connection
	// settings changed, requiring a rebuild of the source and a reload.
	DictionaryChanged bool

	// AnalysisChanged is set when context size or reading speed changed.
	AnalysisChanged bool

	// RestartRequired lists top-level settings that changed but only take
	// effect after a restart.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.DictionaryChanged && !d.AnalysisChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	d.DictionaryChanged = old.Dictionary != new.Dictionary
	d.AnalysisChanged = intOrDefault(old.Analysis.ContextSize) != intOrDefault(new.Analysis.ContextSize) ||
		old.Analysis.WordsPerMinute != new.Analysis.WordsPerMinute

	if old.Server.ListenAddr != new.Server.ListenAddr || !reflect.DeepEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if old.Sessions != new.Sessions {
		d.RestartRequired = append(d.RestartRequired, "sessions")
	}
	if !providerEqual(old.Providers.TTS, new.Providers.TTS) || !speechEqual(old.Speech, new.Speech) {
		d.RestartRequired = append(d.RestartRequired, "speech")
	}
	if old.MCP != new.MCP {
		d.RestartRequired = append(d.RestartRequired, "mcp")
	}

	return d
}

// intOrDefault treats nil as -1 so that "unset" differs from every valid value.
func intOrDefault(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}

func providerEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL &&
		a.Model == b.Model && maps.EqualFunc(a.Options, b.Options, func(x, y any) bool {
		return reflect.DeepEqual(x, y)
	})
}

func speechEqual(a, b SpeechConfig) bool {
	if a.VoiceID != b.VoiceID || a.VoiceCacheTTL != b.VoiceCacheTTL || len(a.Fallbacks) != len(b.Fallbacks) {
		return false
	}
	for i := range a.Fallbacks {
		if !providerEqual(a.Fallbacks[i], b.Fallbacks[i]) {
			return false
		}
	}
	return true
}
