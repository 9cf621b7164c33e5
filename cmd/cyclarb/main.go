package main

import (
	"context"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cyclarb/internal/api/rest"
	"cyclarb/internal/config"
	"cyclarb/internal/engine"
	"cyclarb/internal/feed"
	"cyclarb/internal/guard"
	"cyclarb/internal/infra/health"
	"cyclarb/internal/infra/http/middleware"
	"cyclarb/internal/infra/log"
	"cyclarb/internal/infra/metrics"
	"cyclarb/internal/infra/netutil"
	"cyclarb/internal/infra/version"
	"cyclarb/internal/report"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = godotenv.Load()
	cfg := config.Load()
	logger := log.NewLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("ledger store init failed")
	}
	defer func() { _ = store.Close() }()

	sources := buildSources(cfg)
	if len(sources) == 0 {
		logger.Warn().Msg("no feed sources configured; ticks will be empty")
	}

	var exec engine.Executor
	if cfg.Execution.Enabled && cfg.Execution.Paper {
		exec = engine.NewPaperExecutor(logger)
	}

	eng := engine.New(cfg, sources, store, exec, logger)
	if cfg.Logging.Pretty {
		eng.OnTick(func(rep engine.TickReport) { _ = report.WriteTick(os.Stdout, rep) })
	}

	registry := metrics.Init(logger)
	mux := http.NewServeMux()
	adminCIDRs := netutil.MustParseCIDRs(cfg.Server.AdminAllowCIDRs)
	mux.Handle("/metrics", middleware.AdminGate(adminCIDRs, metrics.Handler(registry)))
	mux.HandleFunc("/healthz", health.Healthz)
	mux.HandleFunc("/readyz", health.Readyz)
	mux.HandleFunc("/version", version.Handler)
	mux.Handle("/", rest.New(eng).Handler())
	if cfg.Server.Pprof {
		mux.Handle("/debug/pprof/", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Index)))
		mux.Handle("/debug/pprof/cmdline", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Cmdline)))
		mux.Handle("/debug/pprof/profile", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Profile)))
		mux.Handle("/debug/pprof/symbol", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Symbol)))
		mux.Handle("/debug/pprof/trace", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Trace)))
	}

	handler := middleware.RequestID(middleware.Logger(logger)(mux))
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	logger.Info().
		Str("addr", cfg.Server.Addr).
		Strs("base_assets", cfg.Discovery.BaseAssets).
		Int("sources", len(sources)).
		Str("ledger", cfg.Guard.Store.Kind).
		Msg("cyclarb started")

	engineErrCh := make(chan error, 1)
	go func() { engineErrCh <- eng.Run(ctx) }()

	health.SetReady(true)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sigCh:
		logger.Info().Str("signal", s.String()).Msg("shutdown signal received")
	case err := <-engineErrCh:
		if err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("engine stopped")
		}
	}

	health.SetReady(false)
	cancel()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("shutdown complete")
}

func newStore(ctx context.Context, cfg config.Config) (guard.Store, error) {
	switch cfg.Guard.Store.Kind {
	case "sqlite":
		return guard.NewSQLiteStore(cfg.Guard.Store.Path)
	case "redis":
		return guard.NewRedisStore(ctx, guard.RedisConfig{
			Addr:      cfg.Guard.Store.Addr,
			DB:        cfg.Guard.Store.DB,
			Prefix:    cfg.Guard.Store.Prefix,
			Retention: cfg.RetentionWindow(),
		})
	default:
		return guard.NewMemoryStore(), nil
	}
}

func buildSources(cfg config.Config) []feed.Source {
	var out []feed.Source
	for _, s := range cfg.Feed.HTTPSources {
		if cfg.SourceDisabled(s.Name) {
			continue
		}
		out = append(out, feed.NewHTTPSource(s.Name, s.URL, s.FeeBps))
	}
	for _, s := range cfg.Feed.CSVSources {
		if cfg.SourceDisabled(s.Name) {
			continue
		}
		out = append(out, feed.NewCSVSource(s.Name, s.Path))
	}
	return out
}
