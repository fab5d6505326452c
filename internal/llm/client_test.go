package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{}, zaptest.NewLogger(t))
	if err == nil {
		t.Fatalf("expected validation error, got nil")
	}

	_, err = NewClient(Config{BaseURL: "http://127.0.0.1:11434"}, zaptest.NewLogger(t))
	if err == nil {
		t.Fatalf("expected missing model error, got nil")
	}
}

func TestOpenStreamsRawBytes(t *testing.T) {
	t.Parallel()

	var gotReq providerGenerateRequest
	lines := []string{
		`{"model":"codestral","response":"def ","done":false}`,
		`{"model":"codestral","response":"f():","done":false}`,
		`{"model":"codestral","response":"","done":true}`,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Errorf("unmarshal body: %v", err)
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintln(w, line)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, Model: "codestral"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer closeClient(client)

	temp := 0.1
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.Open(ctx, &GenerateRequest{
		Prompt:  "write f",
		Options: Options{Temperature: &temp, TopP: 0.9, NumPredict: -1},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var got strings.Builder
	for res := range stream {
		if res.Err != nil {
			t.Fatalf("received stream error: %v", res.Err)
		}
		got.Write(res.Data)
	}

	want := strings.Join(lines, "\n") + "\n"
	if got.String() != want {
		t.Fatalf("bytes not relayed verbatim:\n got %q\nwant %q", got.String(), want)
	}
	if !gotReq.Stream {
		t.Fatalf("generate requests must set stream=true")
	}
	if gotReq.Model != "codestral" {
		t.Fatalf("expected default model, got %q", gotReq.Model)
	}
	if gotReq.Options.NumPredict != -1 || gotReq.Options.TopP != 0.9 {
		t.Fatalf("options not forwarded: %#v", gotReq.Options)
	}
	if gotReq.Options.Temperature == nil || *gotReq.Options.Temperature != 0.1 {
		t.Fatalf("temperature not forwarded: %#v", gotReq.Options.Temperature)
	}
}

func TestOpenValidationError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("server should not be called for invalid request")
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, Model: "m"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer closeClient(client)

	_, err = client.Open(context.Background(), &GenerateRequest{})
	if err == nil || !strings.Contains(err.Error(), "invalid request") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestOpenUnreachable(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{
		BaseURL:    "http://127.0.0.1:1",
		Model:      "m",
		MaxRetries: -1,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer closeClient(client)

	_, err = client.Open(context.Background(), &GenerateRequest{Prompt: "p"})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestOpenRejectedWithErrorBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model 'nope' not found"}`)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, Model: "nope"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer closeClient(client)

	_, err = client.Open(context.Background(), &GenerateRequest{Prompt: "p"})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	var uerr *UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected *UpstreamError, got %T", err)
	}
	if uerr.Status != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", uerr.Status)
	}
	if uerr.Message != "model 'nope' not found" {
		t.Fatalf("unexpected message: %q", uerr.Message)
	}
}

func TestOpenRetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, `{"response":"ok","done":true}`)
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL:     srv.URL,
		Model:       "m",
		BaseBackoff: time.Millisecond,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer closeClient(client)

	stream, err := client.Open(context.Background(), &GenerateRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for res := range stream {
		if res.Err != nil {
			t.Fatalf("received stream error: %v", res.Err)
		}
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestOpenConnectTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, Model: "m"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer closeClient(client)

	start := time.Now()
	_, err = client.Open(context.Background(), &GenerateRequest{
		Prompt:         "p",
		ConnectTimeout: 50 * time.Millisecond,
	})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("connect budget not enforced, took %s", elapsed)
	}
}

func TestOpenMidStreamDrop(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"par","done":false}`)
		w.(http.Flusher).Flush()

		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, Model: "m"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer closeClient(client)

	stream, err := client.Open(context.Background(), &GenerateRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var gotData, gotErr bool
	for res := range stream {
		if res.Err != nil {
			if !errors.Is(res.Err, ErrUpstreamStream) {
				t.Fatalf("expected ErrUpstreamStream, got %v", res.Err)
			}
			gotErr = true
			continue
		}
		gotData = true
	}
	if !gotData {
		t.Fatalf("expected bytes before the drop")
	}
	if !gotErr {
		t.Fatalf("expected a stream error after the drop")
	}
}

func TestOpenIdleTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"a","done":false}`)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL:     srv.URL,
		Model:       "m",
		IdleTimeout: 100 * time.Millisecond,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer closeClient(client)

	stream, err := client.Open(context.Background(), &GenerateRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var last error
	timeout := time.After(3 * time.Second)
	for done := false; !done; {
		select {
		case res, ok := <-stream:
			if !ok {
				done = true
				break
			}
			if res.Err != nil {
				last = res.Err
			}
		case <-timeout:
			t.Fatalf("stream did not end after idle timeout")
		}
	}
	if !errors.Is(last, ErrUpstreamStream) {
		t.Fatalf("expected ErrUpstreamStream, got %v", last)
	}
}

func TestOpenCallerCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"a","done":false}`)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, Model: "m"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer closeClient(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := client.Open(ctx, &GenerateRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	first := <-stream
	if first.Err != nil || len(first.Data) == 0 {
		t.Fatalf("expected first chunk, got %#v", first)
	}
	cancel()

	timeout := time.After(3 * time.Second)
	for {
		select {
		case res, ok := <-stream:
			if !ok {
				return
			}
			if res.Err != nil {
				t.Fatalf("cancellation must not surface as a stream error: %v", res.Err)
			}
		case <-timeout:
			t.Fatalf("stream channel not closed after cancellation")
		}
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/version" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"version":"0.5.1"}`)
	}))
	defer healthy.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	ok, err := NewClient(Config{BaseURL: healthy.URL, Model: "m"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer closeClient(ok)
	if err := ok.Ping(context.Background()); err != nil {
		t.Fatalf("Ping healthy: %v", err)
	}

	bad, err := NewClient(Config{BaseURL: broken.URL, Model: "m"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer closeClient(bad)
	if err := bad.Ping(context.Background()); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestComputeBackoffBounds(t *testing.T) {
	t.Parallel()

	for attempt := 0; attempt < 15; attempt++ {
		d := computeBackoff(10*time.Millisecond, attempt)
		if d < 0 || d > 60*time.Second {
			t.Fatalf("attempt %d: backoff %s out of range", attempt, d)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "3")
	if got := parseRetryAfter(resp); got != 3*time.Second {
		t.Fatalf("expected 3s, got %s", got)
	}
	resp.Header.Set("Retry-After", "100000")
	if got := parseRetryAfter(resp); got != maxRetryAfter {
		t.Fatalf("expected cap %s, got %s", maxRetryAfter, got)
	}
	resp.Header.Set("Retry-After", "soon")
	if got := parseRetryAfter(resp); got != 0 {
		t.Fatalf("expected 0 for garbage, got %s", got)
	}
}

func closeClient(c Client) {
	if closer, ok := c.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}
