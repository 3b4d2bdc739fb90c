package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"forum-admission/middleware/ratelimit"
	"forum-admission/middleware/ratelimit/application"
	"forum-admission/middleware/ratelimit/domain"
)

// forum é um fórum mínimo em memória; cada ação de escrita consulta o Guard
// antes de mudar qualquer estado.
type forum struct {
	guard  *ratelimit.Guard
	logger *slog.Logger

	comments domain.Rule
	votes    domain.Rule
	reset    domain.Rule

	mu    sync.Mutex
	posts map[string]*post
}

type post struct {
	Comments []string `json:"comments"`
	Score    int      `json:"score"`
}

func newForum(guard *ratelimit.Guard, logger *slog.Logger) (*forum, error) {
	comments, err := application.Normalize("comments:create", application.TokenBucketOptions{})
	if err != nil {
		return nil, err
	}
	votes, err := application.Normalize("votes:create", application.FixedWindowOptions{Limit: 30, WindowMs: 60_000})
	if err != nil {
		return nil, err
	}
	reset, err := application.Normalize("password:reset", application.FixedWindowOptions{Limit: 5, WindowMs: 15 * 60_000})
	if err != nil {
		return nil, err
	}

	return &forum{
		guard:    guard,
		logger:   logger,
		comments: comments,
		votes:    votes,
		reset:    reset,
		posts:    make(map[string]*post),
	}, nil
}

func (f *forum) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(demoAuth)

	r.Get("/posts/{postID}", f.getPost)
	r.Post("/posts/{postID}/comments", f.createComment)
	r.Post("/posts/{postID}/votes", f.vote)
	r.Post("/auth/password/reset", f.passwordReset)
	return r
}

// demoAuth faz o papel da camada de autenticação: X-Demo-User vira o
// principal da requisição.
func demoAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := strings.TrimSpace(r.Header.Get("X-Demo-User")); user != "" {
			r = r.WithContext(ratelimit.WithPrincipal(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

func (f *forum) getPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "postID")

	f.mu.Lock()
	p := f.postLocked(id)
	out := post{Comments: append([]string(nil), p.Comments...), Score: p.Score}
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (f *forum) createComment(w http.ResponseWriter, r *http.Request) {
	if !f.guard.Check(w, r, f.comments) {
		return
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "text is required"})
		return
	}

	id := chi.URLParam(r, "postID")
	f.mu.Lock()
	p := f.postLocked(id)
	p.Comments = append(p.Comments, body.Text)
	n := len(p.Comments)
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "comments": n})
}

func (f *forum) vote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "postID")
	if !f.guard.Check(w, r, f.votes, id) {
		return
	}

	delta := 1
	if r.URL.Query().Get("dir") == "down" {
		delta = -1
	}

	f.mu.Lock()
	p := f.postLocked(id)
	p.Score += delta
	score := p.Score
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "score": score})
}

func (f *forum) passwordReset(w http.ResponseWriter, r *http.Request) {
	// sempre por IP: quem pede reset ainda não está autenticado
	byIP := r.WithContext(ratelimit.WithPrincipal(r.Context(), ""))
	if !f.guard.Check(w, byIP, f.reset) {
		return
	}
	f.logger.Info("password reset requested")
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (f *forum) postLocked(id string) *post {
	p, ok := f.posts[id]
	if !ok {
		p = &post{}
		f.posts[id] = p
	}
	return p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
