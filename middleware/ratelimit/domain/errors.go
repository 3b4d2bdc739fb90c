package domain

import "errors"

var (
	// ErrInvalidRule indica limite ou intervalo não positivo, ou estratégia desconhecida.
	ErrInvalidRule = errors.New("invalid admission rule")
	// ErrNoDecision indica que nenhum limiter pôde avaliar a requisição.
	ErrNoDecision = errors.New("admission decision not obtained")
)

func IsInvalidRule(err error) bool {
	return errors.Is(err, ErrInvalidRule)
}
