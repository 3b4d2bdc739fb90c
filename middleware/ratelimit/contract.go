package ratelimit

import (
	"encoding/json"
	"net/http"
	"time"

	"forum-admission/middleware/ratelimit/domain"
)

const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

type tooManyRequestsBody struct {
	OK                bool   `json:"ok"`
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retryAfterSeconds"`
}

// Apply escreve a decisão na resposta e informa se o chamador pode continuar.
//
// Os headers X-RateLimit-* são sempre escritos. Na negação, Apply também
// escreve Retry-After, status 429 e o corpo JSON; o chamador não deve escrever
// mais nada depois de um false. Na admissão o status não é tocado.
func Apply(w http.ResponseWriter, dec domain.Decision, now time.Time) bool {
	remaining := dec.Remaining
	if remaining < 0 {
		remaining = 0
	}
	reset := dec.ResetAt
	if reset.IsZero() {
		reset = now
	}

	h := w.Header()
	h.Set(HeaderLimit, formatInt(dec.Limit))
	h.Set(HeaderRemaining, formatInt(remaining))
	h.Set(HeaderReset, formatInt64(epochSeconds(reset)))

	if dec.Allowed {
		return true
	}

	retryAfter := dec.RetryAfterSeconds(now)
	h.Set(HeaderRetryAfter, formatInt(retryAfter))
	h.Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(tooManyRequestsBody{
		OK:                false,
		Error:             http.StatusText(http.StatusTooManyRequests),
		RetryAfterSeconds: retryAfter,
	})
	return false
}
