package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// UnknownIdentity é usada quando nada identifica o cliente.
const UnknownIdentity = "ip:unknown"

type KeyFunc func(r *http.Request) string

type principalKey struct{}

// WithPrincipal anexa o usuário autenticado ao contexto. Quem autentica faz
// isso antes de chamar o limiter.
func WithPrincipal(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, principalKey{}, id)
}

func PrincipalFrom(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(principalKey{}).(string)
	id = strings.TrimSpace(id)
	return id, ok && id != ""
}

// IdentityResolver deriva uma identidade estável do cliente.
//
// Ordem: principal do contexto, PrincipalHeader (header confiável posto pela
// camada de auth), primeiro IP do X-Forwarded-For, host do RemoteAddr e por
// fim UnknownIdentity. O valor zero já segue essa ordem; IgnoreForwardedFor
// serve para quem não está atrás de um proxy confiável.
type IdentityResolver struct {
	IgnoreForwardedFor bool
	PrincipalHeader    string
}

func DefaultIdentityResolver() IdentityResolver {
	return IdentityResolver{}
}

func (ir IdentityResolver) Resolve(r *http.Request) string {
	if r == nil {
		return UnknownIdentity
	}

	if id, ok := PrincipalFrom(r.Context()); ok {
		return "user:" + id
	}

	if ir.PrincipalHeader != "" {
		if v := strings.TrimSpace(r.Header.Get(ir.PrincipalHeader)); v != "" {
			return "user:" + v
		}
	}

	if !ir.IgnoreForwardedFor {
		// pega o primeiro IP do X-Forwarded-For (cliente original)
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return "ip:" + ip
			}
		}
	}

	// fallback: RemoteAddr
	remote := strings.TrimSpace(r.RemoteAddr)
	host, _, err := net.SplitHostPort(remote)
	if err == nil && host != "" {
		return "ip:" + host
	}
	if remote != "" {
		return "ip:" + remote
	}
	return UnknownIdentity
}

// KeyFunc adapta o resolver para quem só precisa de uma função.
func (ir IdentityResolver) KeyFunc() KeyFunc {
	return ir.Resolve
}
