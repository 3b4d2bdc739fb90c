package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"forum-admission/internal/config"
	"forum-admission/middleware/ratelimit"
	"forum-admission/middleware/ratelimit/domain"
	"forum-admission/middleware/ratelimit/infra"
)

const statsPath = "/_admission/stats"

// buildHandler monta o roteador do gateway: cada rota configurada passa pelo
// Guard antes do upstream; o resto vai direto ao upstream.
func buildHandler(cfg *config.Config, store *infra.Store, stats domain.StatsStore, logger *slog.Logger, upstream http.Handler) (http.Handler, error) {
	routes, err := cfg.RateLimit.Routes()
	if err != nil {
		return nil, err
	}

	opts := ratelimit.StoreOptions(store)
	opts.Stats = stats
	opts.IgnoreForwardedFor = !cfg.RateLimit.TrustForwardedFor
	opts.PrincipalHeader = cfg.RateLimit.PrincipalHeader
	opts.Logger = logger
	guard := ratelimit.NewGuard(opts)

	r := chi.NewRouter()

	if mem, ok := stats.(*infra.MemoryStatsStore); ok {
		r.Get(statsPath, statsHandler(mem))
	}

	for _, rt := range routes {
		r.With(guard.Middleware(rt.Rule, paramExtra(rt.ExtraParam))).Method(rt.Method, rt.Pattern, upstream)
		logger.Debug("admission route registered",
			"rule", rt.Rule.Name, "method", rt.Method, "pattern", rt.Pattern,
			"strategy", rt.Rule.Strategy, "limit", rt.Rule.Limit, "interval", rt.Rule.Interval)
	}

	r.NotFound(upstream.ServeHTTP)
	r.MethodNotAllowed(upstream.ServeHTTP)

	return r, nil
}

// paramExtra usa um parâmetro de rota do chi como discriminador de recurso.
func paramExtra(name string) ratelimit.ExtraFunc {
	if name == "" {
		return nil
	}
	return func(r *http.Request) []string {
		return []string{chi.URLParam(r, name)}
	}
}

func statsHandler(mem *infra.MemoryStatsStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total":   mem.Total(),
			"byRule":  mem.ByRule(),
			"byRoute": mem.ByRoute(),
		})
	}
}

// swapHandler permite trocar o roteador inteiro sem parar o servidor.
type swapHandler struct {
	current atomic.Pointer[http.Handler]
}

func newSwapHandler(h http.Handler) *swapHandler {
	s := &swapHandler{}
	s.Store(h)
	return s
}

func (s *swapHandler) Store(h http.Handler) {
	s.current.Store(&h)
}

func (s *swapHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	(*s.current.Load()).ServeHTTP(w, r)
}
