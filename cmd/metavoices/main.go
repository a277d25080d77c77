// Command metavoices is the main entry point for the MetaVoices text-review
// server: ambiguity analysis and correction over HTTP and MCP, with optional
// text-to-speech of the reviewed text.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/MrWong99/metavoices/internal/app"
	"github.com/MrWong99/metavoices/internal/config"
	"github.com/MrWong99/metavoices/internal/dictionary"
	"github.com/MrWong99/metavoices/internal/observe"
	"github.com/MrWong99/metavoices/pkg/provider/tts"
	"github.com/MrWong99/metavoices/pkg/provider/tts/elevenlabs"
	ttsmock "github.com/MrWong99/metavoices/pkg/provider/tts/mock"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	enableMCP := flag.Bool("mcp", false, "serve the analysis tools over MCP on stdio (overrides mcp.enabled)")
	importPath := flag.String("import", "", "upsert the YAML word list at this path into the configured redis or postgres dictionary, then exit")
	remove := flag.String("remove", "", "comma-separated words to delete from the configured redis or postgres dictionary, then exit")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "metavoices: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "metavoices: %v\n", err)
		}
		return 1
	}
	if *enableMCP {
		cfg.MCP.Enabled = true
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// Logs go to stderr so stdout stays free for the MCP stdio transport.
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.SlogLevel())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("metavoices starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"dictionary", cfg.Dictionary.Source,
		"mcp", cfg.MCP.Enabled,
	)

	if *importPath != "" || *remove != "" {
		return runAdmin(cfg, level, *importPath, *remove)
	}

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := observe.Init(ctx, observe.ProviderConfig{
		ServiceName:    "metavoices",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	application, err := app.New(ctx, cfg, providers,
		app.WithMetrics(tel.Metrics),
		app.WithMetricsHandler(tel.Handler),
		app.WithLogLevel(level),
		app.WithVersion(version),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Hot reload ────────────────────────────────────────────────────────────
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go reloadLoop(ctx, hup, *configPath, application)

	slog.Info("server ready, press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping")
	code := 0
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		code = 1
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		code = 1
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return code
}

// runAdmin applies a one-shot dictionary import and/or removal to the
// configured source and returns the exit code.
func runAdmin(cfg *config.Config, level *slog.LevelVar, importPath, remove string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var entries []dictionary.Entry
	if importPath != "" {
		wl, err := dictionary.LoadWordList(importPath)
		if err != nil {
			slog.Error("failed to read word list", "err", err)
			return 1
		}
		entries = wl.Words
	}

	// Only the dictionary is needed; speech and MCP stay off.
	cfg.MCP.Enabled = false
	application, err := app.New(ctx, cfg, nil, app.WithLogLevel(level), app.WithVersion(version))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = application.Shutdown(shutdownCtx)
	}()

	if len(entries) > 0 {
		n, err := application.ImportWords(ctx, entries)
		if err != nil {
			slog.Error("import failed", "path", importPath, "imported", n, "err", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "metavoices: imported %d words from %s\n", n, importPath)
	}
	if words := splitWords(remove); len(words) > 0 {
		if err := application.RemoveWords(ctx, words); err != nil {
			slog.Error("remove failed", "err", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "metavoices: removed %d words\n", len(words))
	}
	return 0
}

// splitWords splits a comma-separated list, dropping empty items.
func splitWords(list string) []string {
	var out []string
	for w := range strings.SplitSeq(list, ",") {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// reloadLoop re-reads the config file on every SIGHUP and applies it.
func reloadLoop(ctx context.Context, hup <-chan os.Signal, path string, a *app.App) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			next, err := config.Load(path)
			if err != nil {
				slog.Error("config reload failed", "path", path, "err", err)
				continue
			}
			if err := a.Reload(ctx, next); err != nil {
				slog.Error("config reload failed", "err", err)
				continue
			}
			slog.Info("config reloaded", "path", path)
		}
	}
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in TTS factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	// mock emits silence and offers a single voice; useful for local
	// development without an API key.
	reg.RegisterTTS("mock", func(entry config.ProviderEntry) (tts.Provider, error) {
		voice := optString(entry.Options, "voice_id")
		if voice == "" {
			voice = "mock"
		}
		return &ttsmock.Provider{
			SynthesizeChunks: [][]byte{make([]byte, 3200)},
			ListVoicesResult: []tts.VoiceProfile{{ID: voice, Name: "Mock", Provider: "mock"}},
		}, nil
	})

	names := reg.TTSNames()
	slices.Sort(names)
	slog.Debug("registered providers", "kind", "tts", "names", names)
}

// buildProviders instantiates the TTS providers named in cfg using the
// registry and returns them in an [app.Providers] struct.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	name := cfg.Providers.TTS.Name
	if name == "" {
		return ps, nil
	}
	p, err := reg.CreateTTS(cfg.Providers.TTS)
	if errors.Is(err, config.ErrProviderNotRegistered) {
		slog.Warn("tts provider not registered, speech disabled", "name", name)
		return ps, nil
	} else if err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", name, err)
	}
	ps.TTS = p
	slog.Info("provider created", "kind", "tts", "name", name)

	for _, entry := range cfg.Speech.Fallbacks {
		fb, err := reg.CreateTTS(entry)
		if err != nil {
			return nil, fmt.Errorf("create tts fallback %q: %w", entry.Name, err)
		}
		ps.TTSFallbacks = append(ps.TTSFallbacks, app.NamedTTS{Name: entry.Name, Provider: fb})
		slog.Info("provider created", "kind", "tts", "name", entry.Name, "fallback", true)
	}

	if id := cfg.Speech.VoiceID; id != "" {
		ps.FallbackVoices = []tts.VoiceProfile{{ID: id, Name: id, Provider: name}}
	}
	return ps, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}
