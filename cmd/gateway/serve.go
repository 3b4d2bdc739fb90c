package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"forum-admission/internal/config"
	"forum-admission/internal/logger"
	"forum-admission/middleware/ratelimit/domain"
	"forum-admission/middleware/ratelimit/infra"
)

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway reverse proxy",
		Long: `Sobe o proxy reverso com o controle de admissão.

SIGHUP relê a configuração e reconstrói o roteador. Com ratelimit.retain_state=true
os contadores continuam no Store do processo; com false cada reconstrução começa zerada.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

// generation é o Store em uso e o cancelamento do seu janitor.
type generation struct {
	store       *infra.Store
	stopJanitor context.CancelFunc
}

func runServe(parent context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Close() }()
	slog.SetDefault(log.Logger)

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stats, closeStats, err := buildStats(ctx, cfg.Stats, log.Logger)
	if err != nil {
		return err
	}
	defer closeStats()

	// os janitors param junto com ctx
	gen := newGeneration(ctx, cfg, log.Logger)

	h, err := buildGatewayHandler(cfg, gen.store, stats, log.Logger)
	if err != nil {
		return err
	}
	swap := newSwapHandler(h)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           swap,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				next, err := config.Load(configPath)
				if err != nil {
					log.Error("reload failed, keeping current config", "error", err)
					continue
				}
				nextGen := newGeneration(ctx, next, log.Logger)
				nh, err := buildGatewayHandler(next, nextGen.store, stats, log.Logger)
				if err != nil {
					nextGen.stopJanitor()
					log.Error("reload failed, keeping current handler", "error", err)
					continue
				}
				swap.Store(nh)
				gen.stopJanitor()
				gen = nextGen
				log.Level.Set(logger.ParseLevel(next.Logger.Level))
				log.Info("gateway reloaded", "retain_state", next.RateLimit.RetainState, "rules", len(next.RateLimit.Rules))
			}
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("gateway listening",
		"addr", cfg.Server.ListenAddr,
		"upstream", cfg.Server.UpstreamURL,
		"trust_forwarded_for", cfg.RateLimit.TrustForwardedFor,
		"retain_state", cfg.RateLimit.RetainState,
		"rules", len(cfg.RateLimit.Rules))
	log.Info("admission stats",
		"enabled", cfg.Stats.Enabled,
		"backend", cfg.Stats.Backend,
		"bucket", cfg.Stats.Bucket,
		"ttl", cfg.Stats.TTL)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// newGeneration escolhe o Store: o do processo quando o estado deve sobreviver
// a reloads, um novo caso contrário.
func newGeneration(ctx context.Context, cfg *config.Config, log *slog.Logger) *generation {
	opts := []infra.StoreOption{
		infra.WithIdleTTL(cfg.RateLimit.IdleTTL),
		infra.WithCleanupEvery(cfg.RateLimit.CleanupEvery),
		infra.WithLogger(log),
	}

	if cfg.RateLimit.RetainState {
		// o janitor do Store compartilhado vive até o fim do processo
		store := infra.Shared(opts...)
		startSharedJanitor(ctx, store)
		return &generation{store: store, stopJanitor: func() {}}
	}

	store := infra.NewStore(opts...)
	jctx, cancel := context.WithCancel(ctx)
	store.StartJanitor(jctx)
	return &generation{store: store, stopJanitor: cancel}
}

var sharedJanitor sync.Once

func startSharedJanitor(ctx context.Context, store *infra.Store) {
	sharedJanitor.Do(func() { store.StartJanitor(ctx) })
}

func buildGatewayHandler(cfg *config.Config, store *infra.Store, stats domain.StatsStore, log *slog.Logger) (http.Handler, error) {
	target, err := url.Parse(cfg.Server.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Error("proxy error", "path", r.URL.Path, "error", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	return buildHandler(cfg, store, stats, log, proxy)
}

func buildStats(ctx context.Context, cfg config.StatsConfig, log *slog.Logger) (domain.StatsStore, func(), error) {
	noop := func() {}
	if !cfg.Enabled {
		return nil, noop, nil
	}

	if cfg.Backend != "redis" {
		return infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.TrackKeys)), noop, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	_, err := rdb.Ping(pingCtx).Result()
	cancel()
	if err != nil {
		_ = rdb.Close()
		return nil, noop, fmt.Errorf("redis stats ping error: %w", err)
	}

	log.Info("admission stats stored in redis", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)

	store := infra.NewRedisStatsStore(
		rdb,
		infra.WithStatsPrefix(cfg.Prefix),
		infra.WithStatsTTL(cfg.TTL),
		infra.WithStatsBucket(cfg.Bucket),
		infra.WithStatsTrackKeys(cfg.TrackKeys),
	)
	return store, func() { _ = rdb.Close() }, nil
}
