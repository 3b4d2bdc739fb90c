package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"forum-admission/internal/config"
	"forum-admission/internal/logger"
	"forum-admission/middleware/ratelimit"
	"forum-admission/middleware/ratelimit/infra"
)

func main() {
	// Exemplo: os handlers do fórum chamam o Guard diretamente (sem proxy)
	cfg, err := config.Load(os.Getenv("ADMISSION_CONFIG"))
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		slog.Error("logger error", "error", err)
		os.Exit(1)
	}
	defer func() { _ = log.Close() }()

	store := infra.Shared(
		infra.WithIdleTTL(cfg.RateLimit.IdleTTL),
		infra.WithCleanupEvery(cfg.RateLimit.CleanupEvery),
		infra.WithLogger(log.Logger),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	store.StartJanitor(ctx)

	opts := ratelimit.StoreOptions(store)
	opts.Stats = infra.NewMemoryStatsStore()
	opts.KeyFn = ratelimit.IdentityResolver{IgnoreForwardedFor: !cfg.RateLimit.TrustForwardedFor}.KeyFunc()
	opts.Logger = log.Logger

	forum, err := newForum(ratelimit.NewGuard(opts), log.Logger)
	if err != nil {
		log.Error("invalid admission rules", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           forum.routes(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("example forum listening", "addr", cfg.Server.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
