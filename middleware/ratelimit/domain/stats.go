package domain

import (
	"context"
	"time"
)

// StatsEvent representa um evento de decisão do rate limit.
//
// Ele é propositalmente "agnóstico de HTTP": Method/Path são strings genéricas.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key/Path sem controle pode
// explodir o número de chaves no Redis).
type StatsEvent struct {
	Key      Key
	Rule     string
	Strategy Strategy
	Allowed  bool

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas de admissão.
//
// O serviço trata erro como best-effort: uma falha aqui nunca muda a decisão.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
