// Package app wires all MetaVoices subsystems into a running application.
//
// The App struct owns the full lifecycle: New selects the dictionary source
// and builds the analyzer, session store, speech chain and transports, Run
// serves HTTP and MCP until the context ends, Reload applies a changed
// config on SIGHUP, and Shutdown tears everything down in order.
//
// For testing, inject a dictionary source or metrics via functional options.
// When an option is not provided, New creates real implementations from the
// config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/metavoices/internal/analysis"
	"github.com/MrWong99/metavoices/internal/api"
	"github.com/MrWong99/metavoices/internal/config"
	"github.com/MrWong99/metavoices/internal/dictionary"
	"github.com/MrWong99/metavoices/internal/health"
	"github.com/MrWong99/metavoices/internal/mcptools"
	"github.com/MrWong99/metavoices/internal/observe"
	"github.com/MrWong99/metavoices/internal/resilience"
	"github.com/MrWong99/metavoices/internal/session"
	"github.com/MrWong99/metavoices/pkg/provider/tts"
)

// shutdownTimeout bounds the graceful HTTP shutdown inside Run.
const shutdownTimeout = 15 * time.Second

// NamedTTS is a TTS provider together with the name it was configured under.
type NamedTTS struct {
	Name     string
	Provider tts.Provider
}

// Providers holds the external providers built by main.go via the config
// registry. Nil TTS disables the speech endpoints.
type Providers struct {
	TTS tts.Provider

	// TTSFallbacks are tried in order when TTS fails.
	TTSFallbacks []NamedTTS

	// FallbackVoices are served by the voice list when every provider is
	// unreachable.
	FallbackVoices []tts.VoiceProfile
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	cfgMu     sync.Mutex
	providers *Providers
	version   string

	logLevel    *slog.LevelVar
	metrics     *observe.Metrics
	metricsHTTP http.Handler

	source   dictionary.Source
	analyzer *analysis.Analyzer
	watcher  *dictionary.Watcher
	sessions *session.Store
	speech   *tts.VoiceCache
	fallback *resilience.TTSFallback
	checkers []health.Checker
	handler  http.Handler
	mcp      *mcptools.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithSource injects a dictionary source instead of creating one from config.
func WithSource(src dictionary.Source) Option {
	return func(a *App) { a.source = src }
}

// WithMetrics records all metrics on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler serves h on GET /metrics instead of the default
// Prometheus registry.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHTTP = h }
}

// WithLogLevel lets Reload change the level of the handler built on lv.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. A dictionary that
// fails to load at startup is logged and retried lazily on first use, so a
// temporarily unreachable Redis or PostgreSQL only makes the app unready.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		version:   "dev",
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.metricsHTTP == nil {
		a.metricsHTTP = promhttp.Handler()
	}
	if a.logLevel == nil {
		a.logLevel = new(slog.LevelVar)
	}
	a.logLevel.Set(cfg.Server.LogLevel.SlogLevel())

	// ── 1. Dictionary source ─────────────────────────────────────────────
	if err := a.initSource(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init dictionary source: %w", err)
	}

	// ── 2. Analyzer ──────────────────────────────────────────────────────
	a.initAnalyzer(ctx)

	// ── 3. File watcher ──────────────────────────────────────────────────
	if err := a.initWatcher(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init watcher: %w", err)
	}

	// ── 4. Sessions ──────────────────────────────────────────────────────
	a.sessions = session.NewStore(a.analyzer,
		session.WithSessionOptions(session.WithMetrics(a.metrics)),
		session.WithMaxSessions(cfg.Sessions.MaxSessions),
		session.WithIdleTTL(cfg.Sessions.IdleTTL),
	)

	// ── 5. Speech ────────────────────────────────────────────────────────
	a.initSpeech()

	// ── 6. Transports ────────────────────────────────────────────────────
	a.initHTTP()
	if cfg.MCP.Enabled {
		a.mcp = mcptools.New(a.analyzer,
			mcptools.WithMetrics(a.metrics),
			mcptools.WithVersion(a.version),
		)
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initSource builds the configured dictionary source and registers the
// matching readiness probe.
func (a *App) initSource(ctx context.Context) error {
	if a.source != nil {
		return nil
	}

	dc := a.cfg.Dictionary
	switch dc.Source {
	case config.SourceBuiltin, "":
		a.source = dictionary.BuiltinSource{}

	case config.SourceFile:
		a.source = dictionary.NewFileSource(dc.Path)

	case config.SourceRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     dc.Redis.Addr,
			Password: dc.Redis.Password,
			DB:       dc.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		src := dictionary.NewRedisSource(client, dc.Redis.Key)
		a.source = src
		a.checkers = append(a.checkers, health.Checker{Name: "redis", Check: src.Ping, Optional: true})

	case config.SourcePostgres:
		pool, err := pgxpool.New(ctx, dc.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})
		src := dictionary.NewPostgresSource(pool)
		if dc.Postgres.Migrate {
			if err := src.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate postgres: %w", err)
			}
			slog.Info("dictionary schema migrated")
		}
		a.source = src
		a.checkers = append(a.checkers, health.Checker{Name: "postgres", Check: pool.Ping, Optional: true})

	default:
		return fmt.Errorf("unknown dictionary source %q", dc.Source)
	}

	slog.Info("dictionary source selected", "source", a.source.Name())
	return nil
}

// initAnalyzer builds the analyzer and attempts the first load.
func (a *App) initAnalyzer(ctx context.Context) {
	var opts []analysis.Option
	if cs := a.cfg.Analysis.ContextSize; cs != nil {
		opts = append(opts, analysis.WithContextSize(*cs))
	}
	opts = append(opts,
		analysis.WithWordsPerMinute(a.cfg.Analysis.WordsPerMinute),
		analysis.WithMetrics(a.metrics),
	)
	a.analyzer = analysis.New(a.source, opts...)

	if err := a.analyzer.EnsureReady(ctx); err != nil {
		slog.Warn("dictionary not loaded at startup, will retry on first use", "err", err)
	}

	a.checkers = append([]health.Checker{{
		Name:  "dictionary",
		Check: a.analyzer.EnsureReady,
	}}, a.checkers...)
}

// initWatcher prepares the word list watcher when the file source is
// watched. Run drives it.
func (a *App) initWatcher() error {
	dc := a.cfg.Dictionary
	if !dc.Watch || dc.Source != config.SourceFile {
		return nil
	}
	var opts []dictionary.WatcherOption
	if dc.WatchInterval > 0 {
		opts = append(opts, dictionary.WithInterval(dc.WatchInterval))
	}
	w, err := dictionary.NewWatcher(dc.Path, a.analyzer.Swap, opts...)
	if err != nil {
		return err
	}
	a.watcher = w
	return nil
}

// initSpeech builds the fallback chain and voice cache around the
// configured TTS providers.
func (a *App) initSpeech() {
	p := a.providers
	if p.TTS == nil {
		return
	}

	primary := a.cfg.Providers.TTS.Name
	if primary == "" {
		primary = "primary"
	}
	a.fallback = resilience.NewTTSFallback(p.TTS, primary, resilience.FallbackConfig{
		Kind:    "tts",
		Metrics: a.metrics,
	})
	for _, fb := range p.TTSFallbacks {
		a.fallback.AddFallback(fb.Name, fb.Provider)
	}

	cacheOpts := []tts.CacheOption{tts.WithFallbackVoices(p.FallbackVoices)}
	if ttl := a.cfg.Speech.VoiceCacheTTL; ttl > 0 {
		cacheOpts = append(cacheOpts, tts.WithTTL(ttl))
	}
	a.speech = tts.NewVoiceCache(a.fallback, cacheOpts...)

	a.checkers = append(a.checkers, health.Checker{
		Name:     "tts",
		Optional: true,
		Check: func(context.Context) error {
			if !a.fallback.Healthy() {
				return errors.New("every provider circuit is open")
			}
			return nil
		},
	})
	slog.Info("speech enabled", "provider", primary, "fallbacks", len(p.TTSFallbacks))
}

// initHTTP assembles the API, health and metrics routes behind the
// observability middleware.
func (a *App) initHTTP() {
	apiOpts := []api.Option{api.WithMetrics(a.metrics)}
	if a.speech != nil {
		sp := api.Speech{Voices: a.speech, DefaultVoice: a.cfg.Speech.VoiceID}
		if ct, ok := a.providers.TTS.(interface{ ContentType() string }); ok {
			sp.ContentType = ct.ContentType()
		}
		apiOpts = append(apiOpts, api.WithSpeech(sp))
	}

	mux := http.NewServeMux()
	api.New(a.analyzer, a.sessions, apiOpts...).Register(mux)
	health.New(a.checkers...).Register(mux)
	mux.Handle("GET /metrics", a.metricsHTTP)

	a.handler = observe.Middleware(a.metrics)(mux)
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Handler returns the HTTP handler serving every route.
func (a *App) Handler() http.Handler { return a.handler }

// Analyzer returns the shared analyzer.
func (a *App) Analyzer() *analysis.Analyzer { return a.analyzer }

// Sessions returns the session store.
func (a *App) Sessions() *session.Store { return a.sessions }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP (when server.listen_addr is set) and MCP over stdio (when
// mcp.enabled is set) until ctx is cancelled. The word list watcher and the
// idle session sweep run alongside them. The HTTP server is shut down
// gracefully with a [shutdownTimeout] deadline.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if addr := a.cfg.Server.ListenAddr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           a.handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			slog.Info("http server listening", "addr", addr, "tls", a.cfg.Server.TLS != nil)
			var err error
			if tls := a.cfg.Server.TLS; tls != nil {
				err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
			} else {
				err = srv.ListenAndServe()
			}
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("app: http server: %w", err)
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("app: http shutdown: %w", err)
			}
			return nil
		})
	}

	if a.mcp != nil {
		g.Go(func() error {
			err := a.mcp.Run(ctx)
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("app: mcp server: %w", err)
			}
			slog.Info("mcp session ended")
			return nil
		})
	}

	if a.watcher != nil {
		g.Go(func() error {
			slog.Info("watching word list", "path", a.cfg.Dictionary.Path)
			return a.watcher.Run(ctx)
		})
	}
	g.Go(func() error { return a.sessions.Run(ctx) })

	slog.Info("app running", "dictionary", a.source.Name(), "state", a.analyzer.State())
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})
	return g.Wait()
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// Reload applies next on top of the running config. The log level changes
// immediately and the dictionary is fetched again from its source. Settings
// that cannot change at runtime are logged and left untouched.
func (a *App) Reload(ctx context.Context, next *config.Config) error {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()

	d := config.Diff(a.cfg, next)
	if d.LogLevelChanged {
		a.logLevel.Set(d.NewLogLevel.SlogLevel())
		a.cfg.Server.LogLevel = d.NewLogLevel
		slog.Info("log level changed", "level", a.logLevel.Level())
	}

	restart := d.RestartRequired
	if d.DictionaryChanged {
		restart = append(restart, "dictionary")
	}
	if d.AnalysisChanged {
		restart = append(restart, "analysis")
	}
	if len(restart) > 0 {
		slog.Warn("config changes take effect after a restart", "sections", restart)
	}

	return a.reloadDictionary(ctx)
}

// ─── Dictionary administration ───────────────────────────────────────────────

// writable returns the dictionary source as a [dictionary.WritableSource] or
// an error wrapping [dictionary.ErrReadOnly].
func (a *App) writable() (dictionary.WritableSource, error) {
	ws, ok := a.source.(dictionary.WritableSource)
	if !ok {
		return nil, fmt.Errorf("app: %w: %s", dictionary.ErrReadOnly, a.source.Name())
	}
	return ws, nil
}

// ImportWords upserts entries into the dictionary source and reloads the
// analyzer. Only the redis and postgres sources accept writes.
func (a *App) ImportWords(ctx context.Context, entries []dictionary.Entry) (int, error) {
	ws, err := a.writable()
	if err != nil {
		return 0, err
	}
	n, err := dictionary.Import(ctx, ws, entries)
	if err != nil {
		return n, fmt.Errorf("app: import words: %w", err)
	}
	slog.Info("dictionary words imported", "source", ws.Name(), "count", n)
	return n, a.reloadDictionary(ctx)
}

// RemoveWords deletes words from the dictionary source and reloads the
// analyzer.
func (a *App) RemoveWords(ctx context.Context, words []string) error {
	ws, err := a.writable()
	if err != nil {
		return err
	}
	for _, w := range words {
		if err := ws.Delete(ctx, w); err != nil {
			return fmt.Errorf("app: remove words: %w", err)
		}
	}
	slog.Info("dictionary words removed", "source", ws.Name(), "count", len(words))
	return a.reloadDictionary(ctx)
}

func (a *App) reloadDictionary(ctx context.Context) error {
	if err := a.analyzer.Reload(ctx); err != nil {
		return fmt.Errorf("app: reload dictionary: %w", err)
	}
	return nil
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers), "sessions", a.sessions.Len())

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll runs the closers registered so far after a failed New.
func (a *App) closeAll() {
	for _, c := range a.closers {
		_ = c()
	}
}
