package ratelimit

import (
	"log/slog"
	"net/http"
	"time"

	"forum-admission/middleware/ratelimit/application"
	"forum-admission/middleware/ratelimit/domain"
	"forum-admission/middleware/ratelimit/infra"
)

// ExtraFunc extrai o discriminador de recurso da requisição (ex.: id do post).
type ExtraFunc func(r *http.Request) []string

type Options struct {
	TokenBucket domain.TokenBucketLimiter
	FixedWindow domain.FixedWindowLimiter
	Stats       domain.StatsStore
	KeyFn       KeyFunc
	// usados só quando KeyFn é nil
	IgnoreForwardedFor bool
	PrincipalHeader    string

	Logger *slog.Logger
	Now    func() time.Time
}

// StoreOptions liga os dois limiters ao mesmo Store. Now é o relógio do
// próprio Store: Retry-After e ResetAt saem da mesma fonte.
func StoreOptions(s *infra.Store) Options {
	return Options{
		TokenBucket: infra.NewTokenBucket(s),
		FixedWindow: infra.NewFixedWindow(s),
		Now:         s.Now,
	}
}

// Guard é o ponto de entrada dos handlers protegidos: resolve a identidade,
// decide e traduz a decisão para HTTP.
type Guard struct {
	svc    application.Service
	keyFn  KeyFunc
	logger *slog.Logger
	now    func() time.Time
}

func NewGuard(opts Options) *Guard {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.KeyFn == nil {
		opts.KeyFn = IdentityResolver{
			IgnoreForwardedFor: opts.IgnoreForwardedFor,
			PrincipalHeader:    opts.PrincipalHeader,
		}.KeyFunc()
	}

	return &Guard{
		svc: application.Service{
			TokenBucket: opts.TokenBucket,
			FixedWindow: opts.FixedWindow,
			Stats:       opts.Stats,
			Logger:      opts.Logger,
			Now:         opts.Now,
		},
		keyFn:  opts.KeyFn,
		logger: opts.Logger,
		now:    opts.Now,
	}
}

// Check avalia a regra para a requisição. Se retornar false a resposta 429 já
// foi escrita e o handler deve parar.
func (g *Guard) Check(w http.ResponseWriter, r *http.Request, rule domain.Rule, extra ...string) bool {
	identity := g.keyFn(r)
	if identity == "" {
		identity = UnknownIdentity
	}

	dec, err := g.svc.Decide(r.Context(), application.Request{
		Rule:     rule,
		Identity: identity,
		Extra:    extra,
		Method:   r.Method,
		Path:     r.URL.Path,
	})
	if err != nil {
		g.logger.Error("admission check failed closed",
			"rule", rule.Name, "identity", identity, "path", r.URL.Path, "error", err)
	}

	return Apply(w, dec, g.now())
}

// Middleware protege todas as rotas do handler com a mesma regra.
func (g *Guard) Middleware(rule domain.Rule, extra ExtraFunc) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var parts []string
			if extra != nil {
				parts = extra(r)
			}
			if !g.Check(w, r, rule, parts...) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Middleware é o atalho para uma regra só, sem Guard compartilhado.
func Middleware(opts Options, rule domain.Rule, extra ExtraFunc) func(next http.Handler) http.Handler {
	return NewGuard(opts).Middleware(rule, extra)
}
