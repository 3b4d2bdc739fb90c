package application

import (
	"fmt"
	"strings"
	"time"

	"forum-admission/middleware/ratelimit/domain"
)

const (
	defaultTokenBucketMax        = 10
	defaultTokenBucketIntervalMs = 60_000
)

// RuleSource é qualquer formato de opções que sabe virar uma domain.Rule.
type RuleSource interface {
	Rule(name string) (domain.Rule, error)
}

// TokenBucketOptions é o formato {max?, intervalMs?} usado pelos pontos de
// chamada. Campos zerados usam os padrões (10 tokens por minuto).
type TokenBucketOptions struct {
	Max        int
	IntervalMs int
}

func (o TokenBucketOptions) Rule(name string) (domain.Rule, error) {
	if o.Max == 0 {
		o.Max = defaultTokenBucketMax
	}
	if o.IntervalMs == 0 {
		o.IntervalMs = defaultTokenBucketIntervalMs
	}
	return build(name, domain.StrategyTokenBucket, o.Max, o.IntervalMs)
}

// FixedWindowOptions é o formato {limit, windowMs}; os dois campos são obrigatórios.
type FixedWindowOptions struct {
	Limit    int
	WindowMs int
}

func (o FixedWindowOptions) Rule(name string) (domain.Rule, error) {
	return build(name, domain.StrategyFixedWindow, o.Limit, o.WindowMs)
}

// Normalize converte as opções de um ponto de chamada na regra canônica.
// Nenhum outro formato chega aos algoritmos.
func Normalize(name string, src RuleSource) (domain.Rule, error) {
	if src == nil {
		return domain.Rule{}, fmt.Errorf("rule %q has no options: %w", name, domain.ErrInvalidRule)
	}
	return src.Rule(name)
}

func build(name string, strategy domain.Strategy, limit, intervalMs int) (domain.Rule, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Rule{}, fmt.Errorf("rule name is required: %w", domain.ErrInvalidRule)
	}
	rule := domain.Rule{
		Name:     name,
		Strategy: strategy,
		Limit:    limit,
		Interval: time.Duration(intervalMs) * time.Millisecond,
	}
	if !rule.Valid() {
		return domain.Rule{}, fmt.Errorf("rule %q: limit=%d intervalMs=%d: %w", name, limit, intervalMs, domain.ErrInvalidRule)
	}
	return rule, nil
}
