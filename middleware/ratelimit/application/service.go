package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"forum-admission/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do controle de admissão.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// Sem decisão possível (limiter ausente, regra inválida) ele nega: fail-closed.
type Service struct {
	TokenBucket domain.TokenBucketLimiter
	FixedWindow domain.FixedWindowLimiter
	Stats       domain.StatsStore
	Logger      *slog.Logger
	Now         func() time.Time
}

// Request é uma verificação de admissão já com a identidade resolvida.
type Request struct {
	Rule     domain.Rule
	Identity string
	// Extra restringe a regra a um recurso (ex.: o post votado).
	Extra []string

	Method string
	Path   string
}

func (r Request) Key() domain.Key {
	return domain.MakeKey(r.Rule.Name, r.Identity, r.Extra...)
}

// Decide avalia a requisição. O erro só é não nulo junto de uma decisão negada
// e explica por que nenhum limiter foi consultado.
func (s Service) Decide(ctx context.Context, req Request) (domain.Decision, error) {
	log := s.logger()
	now := s.now()

	if !req.Rule.Valid() {
		log.Warn("admission rule rejected", "rule", req.Rule.Name, "limit", req.Rule.Limit, "interval", req.Rule.Interval)
		return domain.Deny(req.Rule.Limit, now), fmt.Errorf("rule %q: %w", req.Rule.Name, domain.ErrInvalidRule)
	}

	key := req.Key()

	var dec domain.Decision
	switch {
	case req.Rule.Strategy == domain.StrategyTokenBucket && s.TokenBucket != nil:
		dec = s.TokenBucket.Take(key, req.Rule.Limit, req.Rule.Interval)
	case req.Rule.Strategy == domain.StrategyFixedWindow && s.FixedWindow != nil:
		dec = s.FixedWindow.Hit(key, req.Rule.Limit, req.Rule.Interval)
	default:
		log.Warn("no limiter for admission rule", "rule", req.Rule.Name, "strategy", req.Rule.Strategy)
		return domain.Deny(req.Rule.Limit, now), fmt.Errorf("rule %q strategy %q: %w", req.Rule.Name, req.Rule.Strategy, domain.ErrNoDecision)
	}

	if dec.Remaining < 0 {
		dec.Remaining = 0
	}

	if !dec.Allowed {
		log.Debug("admission denied", "rule", req.Rule.Name, "identity", req.Identity, "reset_at", dec.ResetAt)
	}

	if s.Stats != nil {
		ev := domain.StatsEvent{
			Key:      key,
			Rule:     req.Rule.Name,
			Strategy: req.Rule.Strategy,
			Allowed:  dec.Allowed,
			Method:   req.Method,
			Path:     req.Path,
			At:       now,
		}
		if err := s.Stats.Record(ctx, ev); err != nil {
			log.Warn("failed to record admission stats", "rule", req.Rule.Name, "error", err)
		}
	}

	return dec, nil
}

func (s Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
