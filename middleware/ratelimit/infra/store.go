package infra

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Store guarda o estado de admissão do processo, particionado por tipo de
// limiter (token bucket / janela fixa).
//
// O mapa é protegido por um mutex; cada entrada tem o próprio mutex, então a
// mutação de uma chave é serializada sem bloquear as demais.
type Store struct {
	mu      sync.Mutex
	buckets map[string]*bucketEntry
	windows map[string]*windowEntry

	now          func() time.Time
	idleTTL      time.Duration
	cleanupEvery time.Duration
	logger       *slog.Logger
}

type bucketEntry struct {
	mu   sync.Mutex
	lim  *rate.Limiter
	last time.Time
	dead bool
}

type windowEntry struct {
	mu    sync.Mutex
	count int
	reset time.Time
	dead  bool
}

type StoreOption func(*Store)

func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.cleanupEvery = d }
}

// WithClock troca o relógio usado pelos limiters (testes).
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		buckets:      make(map[string]*bucketEntry),
		windows:      make(map[string]*windowEntry),
		now:          time.Now,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) CleanupEvery() time.Duration { return s.cleanupEvery }

// Now é o relógio usado pelos limiters deste Store.
func (s *Store) Now() time.Time { return s.now() }

// Len devolve a quantidade de buckets e de janelas vivas.
func (s *Store) Len() (buckets, windows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets), len(s.windows)
}

// lockBucket devolve a entrada da chave já travada. A entrada nasce com o
// bucket cheio.
func (s *Store) lockBucket(key string, capacity int, interval time.Duration) *bucketEntry {
	for {
		s.mu.Lock()
		ent, ok := s.buckets[key]
		if !ok {
			ent = &bucketEntry{lim: rate.NewLimiter(refillRate(capacity, interval), capacity)}
			s.buckets[key] = ent
		}
		s.mu.Unlock()

		ent.mu.Lock()
		if !ent.dead {
			return ent
		}
		// removida pelo Sweep entre o lookup e o lock
		ent.mu.Unlock()
	}
}

func (s *Store) lockWindow(key string) *windowEntry {
	for {
		s.mu.Lock()
		ent, ok := s.windows[key]
		if !ok {
			ent = &windowEntry{}
			s.windows[key] = ent
		}
		s.mu.Unlock()

		ent.mu.Lock()
		if !ent.dead {
			return ent
		}
		ent.mu.Unlock()
	}
}

// Sweep remove janelas já expiradas e buckets ociosos há mais de idleTTL que
// já voltaram à capacidade máxima. Nos dois casos o próximo hit recria a
// entrada no mesmo estado, então a remoção não altera decisões.
func (s *Store) Sweep() (removed int) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.windows {
		ent.mu.Lock()
		if !ent.reset.After(now) {
			ent.dead = true
			delete(s.windows, k)
			removed++
		}
		ent.mu.Unlock()
	}

	for k, ent := range s.buckets {
		ent.mu.Lock()
		at := now
		if at.Before(ent.last) {
			at = ent.last
		}
		if at.Sub(ent.last) >= s.idleTTL && ent.lim.TokensAt(at) >= float64(ent.lim.Burst()) {
			ent.dead = true
			delete(s.buckets, k)
			removed++
		}
		ent.mu.Unlock()
	}

	return removed
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *Store) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := s.Sweep(); n > 0 {
					buckets, windows := s.Len()
					s.logger.Debug("ratelimit store swept",
						"removed", n, "buckets", buckets, "windows", windows)
				}
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
type DoneContext interface {
	Done() <-chan struct{}
}

func refillRate(capacity int, interval time.Duration) rate.Limit {
	return rate.Limit(float64(capacity) / interval.Seconds())
}
