package infra

import (
	"math"
	"time"

	"forum-admission/middleware/ratelimit/domain"
)

// TokenBucket é o limiter de refill contínuo sobre o Store.
//
// O bucket de uma chave nasce cheio (capacity tokens) e recebe
// capacity tokens a cada interval, proporcionalmente ao tempo decorrido,
// sem nunca passar de capacity.
type TokenBucket struct {
	store *Store
}

var _ domain.TokenBucketLimiter = (*TokenBucket)(nil)

func NewTokenBucket(s *Store) *TokenBucket {
	return &TokenBucket{store: s}
}

// TryConsume consome um token da chave e informa se a ação foi admitida.
func (b *TokenBucket) TryConsume(key domain.Key, capacity int, interval time.Duration) bool {
	return b.Take(key, capacity, interval).Allowed
}

// Take é o TryConsume com os números da decisão.
//
// Remaining é a parte inteira dos tokens após a decisão. ResetAt é o instante
// em que o bucket volta a ficar cheio (admitido) ou em que o próximo token
// inteiro estará disponível (negado).
func (b *TokenBucket) Take(key domain.Key, capacity int, interval time.Duration) domain.Decision {
	now := b.store.now()
	if capacity <= 0 || interval <= 0 {
		return domain.Deny(capacity, now)
	}

	ent := b.store.lockBucket(string(key), capacity, interval)
	defer ent.mu.Unlock()

	// relógio voltou: elapsed = 0 e lastRefill não anda para trás
	if now.Before(ent.last) {
		now = ent.last
	}
	ent.last = now

	if r := refillRate(capacity, interval); ent.lim.Limit() != r || ent.lim.Burst() != capacity {
		ent.lim.SetLimitAt(now, r)
		ent.lim.SetBurstAt(now, capacity)
	}

	// a decisão é tokens >= 1; AllowN sozinho admite quando a espera que
	// falta arredonda para 0ns, o que acontece com refill muito rápido
	tokens := ent.lim.TokensAt(now)
	allowed := tokens >= 1
	if allowed {
		ent.lim.AllowN(now, 1)
		tokens = ent.lim.TokensAt(now)
	}
	if tokens < 0 {
		tokens = 0
	}
	if tokens > float64(capacity) {
		tokens = float64(capacity)
	}

	missing := float64(capacity) - tokens
	if !allowed {
		missing = 1 - tokens
	}

	return domain.Decision{
		Allowed:   allowed,
		Limit:     capacity,
		Remaining: int(math.Floor(tokens)),
		ResetAt:   now.Add(tokensToDuration(missing, capacity, interval)),
	}
}

// Tokens devolve o saldo atual da chave sem consumir. Chaves nunca vistas
// estão cheias.
func (b *TokenBucket) Tokens(key domain.Key, capacity int, interval time.Duration) float64 {
	if capacity <= 0 || interval <= 0 {
		return 0
	}
	now := b.store.now()

	b.store.mu.Lock()
	ent, ok := b.store.buckets[string(key)]
	b.store.mu.Unlock()
	if !ok {
		return float64(capacity)
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()
	if ent.dead {
		return float64(capacity)
	}
	if now.Before(ent.last) {
		now = ent.last
	}
	return math.Min(ent.lim.TokensAt(now), float64(capacity))
}

func tokensToDuration(tokens float64, capacity int, interval time.Duration) time.Duration {
	if tokens <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(tokens * float64(interval) / float64(capacity)))
}
