package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap/zaptest"

	"codestream-gateway/internal/cache"
	"codestream-gateway/internal/handlers"
	"codestream-gateway/internal/health"
	"codestream-gateway/internal/llm"
	"codestream-gateway/internal/problems"
	"codestream-gateway/internal/relay"
)

type stubUpstream struct{}

func (stubUpstream) Open(ctx context.Context, req *llm.GenerateRequest) (<-chan llm.ChunkResult, error) {
	out := make(chan llm.ChunkResult, 1)
	out <- llm.ChunkResult{Data: []byte(`{"response":"print(1)","done":true}` + "\n")}
	close(out)
	return out, nil
}

func (stubUpstream) Ping(context.Context) error { return nil }

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	logger := zaptest.NewLogger(t)

	store := cache.NewMemoryStore(time.Hour, nil)
	bank := problems.NewBank([]problems.Problem{{Title: "One", Statement: "Print 1."}})
	engine, err := relay.NewEngine(relay.Config{
		Specs:  relay.DefaultSpecs(bank),
		Store:  store,
		Client: stubUpstream{},
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	monitor := health.NewMonitor(logger)

	r := chi.NewRouter()
	SetupRouter(r, logger, Deps{
		Relay:          handlers.NewRelayHandler(engine, monitor, false),
		Health:         handlers.NewHealthHandler(monitor),
		Cache:          handlers.NewCacheHandler(store),
		RequestTimeout: time.Second,
		MaxBodyBytes:   1 << 10,
	})
	return r
}

func TestRoutes(t *testing.T) {
	r := newTestRouter(t)

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/v1/cache/stats", http.StatusOK},
		{http.MethodDelete, "/v1/cache", http.StatusOK},
		{http.MethodGet, "/v1/generate?index=0", http.StatusOK},
		{http.MethodGet, "/v1/generate-stream?index=0", http.StatusOK},
		{http.MethodPost, "/v1/generate-stream?index=0", http.StatusMethodNotAllowed},
		{http.MethodGet, "/v1/chat/completions", http.StatusNotFound},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		if rr.Code != tc.want {
			t.Errorf("%s %s: expected %d, got %d", tc.method, tc.path, tc.want, rr.Code)
		}
	}
}

func TestStreamRouteSpeaksSSE(t *testing.T) {
	r := newTestRouter(t)

	body := `{"code":"print(1)","language":"python","index":0}`
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/correct-stream", strings.NewReader(body)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID on streamed responses")
	}
	if !strings.Contains(rr.Body.String(), "event: complete\n") {
		t.Fatalf("stream did not complete: %q", rr.Body.String())
	}
}

func TestBodyLimitAppliesToStreams(t *testing.T) {
	r := newTestRouter(t)

	body := `{"code":"` + strings.Repeat("x", 4<<10) + `","language":"python"}`
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/correct-stream", strings.NewReader(body)))

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
}
