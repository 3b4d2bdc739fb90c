package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

type Key string

// Strategy identifica o algoritmo de contagem usado por uma regra.
type Strategy string

const (
	StrategyTokenBucket Strategy = "token_bucket"
	StrategyFixedWindow Strategy = "fixed_window"
)

// Rule é a forma canônica de uma regra de admissão, já normalizada.
//
// Limit é a capacidade do bucket (token bucket) ou o máximo de hits por
// janela (fixed window). Interval é o período de refill completo ou a duração
// da janela.
type Rule struct {
	Name     string
	Strategy Strategy
	Limit    int
	Interval time.Duration
}

// Valid informa se a regra pode ser avaliada por algum limiter.
func (r Rule) Valid() bool {
	if r.Limit <= 0 || r.Interval <= 0 {
		return false
	}
	return r.Strategy == StrategyTokenBucket || r.Strategy == StrategyFixedWindow
}

// TokenBucketLimiter consome um token por chamada, com refill contínuo.
type TokenBucketLimiter interface {
	Take(key Key, capacity int, interval time.Duration) Decision
}

// FixedWindowLimiter conta hits em janelas discretas que expiram de forma lazy.
type FixedWindowLimiter interface {
	Hit(key Key, limit int, window time.Duration) Decision
}

// Decision é o resultado numérico de uma verificação de admissão.
//
// Negar é um resultado normal, não um erro.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt é o instante em que o contador volta a admitir (janela nova,
	// próximo token ou bucket cheio, conforme o algoritmo).
	ResetAt time.Time
}

// RetryAfterSeconds devolve o Retry-After em segundos inteiros, nunca menor que 1.
func (d Decision) RetryAfterSeconds(now time.Time) int {
	wait := d.ResetAt.Sub(now)
	secs := int(wait / time.Second)
	if wait%time.Second > 0 {
		secs++
	}
	if secs < 1 {
		return 1
	}
	return secs
}

// Deny é a decisão usada quando não foi possível avaliar a regra (fail-closed).
func Deny(limit int, now time.Time) Decision {
	if limit < 0 {
		limit = 0
	}
	return Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: now.Add(time.Second)}
}

// WindowState é o estado de uma janela fixa para uma chave.
type WindowState struct {
	Count int
	Reset time.Time
}
