package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
)

// Upstream de teste para o gateway: responde às rotas de escrita do fórum e
// mostra qual identidade chegou.
func main() {
	r := chi.NewRouter()

	r.Get("/posts/{postID}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<h1>Post %s</h1><p>Requisição recebida com sucesso!</p>", chi.URLParam(r, "postID"))
	})
	r.Post("/posts/{postID}/comments", accepted("comentário"))
	r.Post("/posts/{postID}/votes", accepted("voto"))
	r.Post("/auth/password/reset", accepted("reset de senha"))

	addr := ":9000"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	slog.Info("forum stub running", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		slog.Error("forum stub stopped", "error", err)
		os.Exit(1)
	}
}

func accepted(what string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("forum stub hit",
			"what", what,
			"path", r.URL.Path,
			"post", chi.URLParam(r, "postID"),
			"xff", r.Header.Get("X-Forwarded-For"),
			"remaining", r.Header.Get("X-RateLimit-Remaining"))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, "%s aceito\n", what)
	}
}
