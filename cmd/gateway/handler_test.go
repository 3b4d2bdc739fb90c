package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forum-admission/internal/config"
	"forum-admission/middleware/ratelimit/infra"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: ":0", UpstreamURL: "http://upstream"},
		RateLimit: config.RateLimitConfig{
			TrustForwardedFor: true,
			IdleTTL:           time.Minute,
			CleanupEvery:      time.Minute,
			Rules: []config.RuleConfig{
				{Name: "votes:create", Method: "POST", Pattern: "/posts/{postID}/votes", Strategy: "fixed_window", Limit: 1, WindowMs: 60_000, ExtraParam: "postID"},
				{Name: "comments:create", Method: "POST", Pattern: "/posts/{postID}/comments", Strategy: "token_bucket", Max: 2, IntervalMs: 60_000},
			},
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func upstreamStub(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusOK)
	})
}

func do(h http.Handler, method, path, ip string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, "http://gateway"+path, nil)
	r.RemoteAddr = ip + ":5000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestBuildHandler_VotesArePerPost(t *testing.T) {
	calls := 0
	h, err := buildHandler(testConfig(), infra.NewStore(), nil, discardLogger(), upstreamStub(&calls))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/posts/1/votes", "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodPost, "/posts/1/votes", "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/posts/2/votes", "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/posts/1/votes", "10.0.0.2").Code)
	assert.Equal(t, 3, calls)
}

func TestBuildHandler_CommentsTokenBucket(t *testing.T) {
	calls := 0
	h, err := buildHandler(testConfig(), infra.NewStore(), nil, discardLogger(), upstreamStub(&calls))
	require.NoError(t, err)

	// o bucket de comentários não depende do post
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/posts/1/comments", "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/posts/2/comments", "10.0.0.1").Code)

	w := do(h, http.MethodPost, "/posts/3/comments", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, 2, calls)
}

func TestBuildHandler_UnguardedRoutesPassThrough(t *testing.T) {
	calls := 0
	h, err := buildHandler(testConfig(), infra.NewStore(), nil, discardLogger(), upstreamStub(&calls))
	require.NoError(t, err)

	for range 5 {
		w := do(h, http.MethodGet, "/posts/1/votes", "10.0.0.1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))

		assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/posts", "10.0.0.1").Code)
	}
	assert.Equal(t, 10, calls)
}

func TestBuildHandler_SharedStoreKeepsCountersAcrossRebuilds(t *testing.T) {
	calls := 0
	store := infra.NewStore()

	h1, err := buildHandler(testConfig(), store, nil, discardLogger(), upstreamStub(&calls))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, do(h1, http.MethodPost, "/posts/1/votes", "10.0.0.1").Code)

	h2, err := buildHandler(testConfig(), store, nil, discardLogger(), upstreamStub(&calls))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, do(h2, http.MethodPost, "/posts/1/votes", "10.0.0.1").Code)

	h3, err := buildHandler(testConfig(), infra.NewStore(), nil, discardLogger(), upstreamStub(&calls))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, do(h3, http.MethodPost, "/posts/1/votes", "10.0.0.1").Code)
}

func TestBuildHandler_MemoryStatsEndpoint(t *testing.T) {
	calls := 0
	stats := infra.NewMemoryStatsStore()
	h, err := buildHandler(testConfig(), infra.NewStore(), stats, discardLogger(), upstreamStub(&calls))
	require.NoError(t, err)

	do(h, http.MethodPost, "/posts/1/votes", "10.0.0.1")
	do(h, http.MethodPost, "/posts/1/votes", "10.0.0.1")

	w := do(h, http.MethodGet, statsPath, "10.0.0.1")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Total  infra.Counters            `json:"total"`
		ByRule map[string]infra.Counters `json:"byRule"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Total.Allowed)
	assert.Equal(t, int64(1), body.Total.Denied)
	assert.Equal(t, int64(1), body.ByRule["votes:create"].Denied)
}

func TestBuildHandler_InvalidRule(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Rules[0].Limit = 0

	_, err := buildHandler(cfg, infra.NewStore(), nil, discardLogger(), http.NotFoundHandler())
	require.Error(t, err)
}

func TestSwapHandler(t *testing.T) {
	s := newSwapHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	assert.Equal(t, http.StatusTeapot, do(s, http.MethodGet, "/", "10.0.0.1").Code)

	s.Store(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	assert.Equal(t, http.StatusNoContent, do(s, http.MethodGet, "/", "10.0.0.1").Code)
}

func TestNewGeneration_RetainStateUsesSharedStore(t *testing.T) {
	ctx := t.Context()

	cfg := testConfig()
	cfg.RateLimit.RetainState = true
	a := newGeneration(ctx, cfg, discardLogger())
	b := newGeneration(ctx, cfg, discardLogger())
	assert.Same(t, a.store, b.store)
	assert.Same(t, infra.Shared(), a.store)

	cfg.RateLimit.RetainState = false
	c := newGeneration(ctx, cfg, discardLogger())
	defer c.stopJanitor()
	assert.NotSame(t, a.store, c.store)
}
