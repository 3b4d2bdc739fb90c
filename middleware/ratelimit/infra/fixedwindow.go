package infra

import (
	"time"

	"forum-admission/middleware/ratelimit/domain"
)

// FixedWindow conta hits por chave em janelas discretas de duração fixa.
//
// Não há timer: a expiração é avaliada no próximo hit da chave.
type FixedWindow struct {
	store *Store
}

var _ domain.FixedWindowLimiter = (*FixedWindow)(nil)

func NewFixedWindow(s *Store) *FixedWindow {
	return &FixedWindow{store: s}
}

// Hit registra um hit na chave.
//
// Uma janela cujo reset é <= now está expirada (comparação inclusiva), então o
// hit exatamente na fronteira já abre a janela nova.
func (f *FixedWindow) Hit(key domain.Key, limit int, window time.Duration) domain.Decision {
	now := f.store.now()
	if limit <= 0 || window <= 0 {
		return domain.Deny(limit, now)
	}

	ent := f.store.lockWindow(string(key))
	defer ent.mu.Unlock()

	if !ent.reset.After(now) {
		ent.count = 1
		ent.reset = now.Add(window)
		return domain.Decision{Allowed: true, Limit: limit, Remaining: limit - 1, ResetAt: ent.reset}
	}

	if ent.count < 0 {
		ent.count = 0
	}
	if ent.count < limit {
		ent.count++
		return domain.Decision{Allowed: true, Limit: limit, Remaining: limit - ent.count, ResetAt: ent.reset}
	}
	return domain.Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: ent.reset}
}

// State devolve uma cópia do estado da janela da chave, se existir.
func (f *FixedWindow) State(key domain.Key) (domain.WindowState, bool) {
	f.store.mu.Lock()
	ent, ok := f.store.windows[string(key)]
	f.store.mu.Unlock()
	if !ok {
		return domain.WindowState{}, false
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()
	if ent.dead {
		return domain.WindowState{}, false
	}
	return domain.WindowState{Count: ent.count, Reset: ent.reset}, true
}
