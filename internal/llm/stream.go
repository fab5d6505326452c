package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"codestream-gateway/internal/observability"
)

const (
	maxPromptSize    = 2 * 1024 * 1024 // 2MB prompt text
	maxErrorBodySize = 4 * 1024
)

func (c *client) Open(parentCtx context.Context, req *GenerateRequest) (<-chan ChunkResult, error) {
	if req == nil {
		return nil, fmt.Errorf("llmclient: request is nil")
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("llmclient: invalid request: %w", err)
	}
	if len(req.Prompt) > maxPromptSize {
		return nil, fmt.Errorf("llmclient: prompt too large (%d bytes, max %d)", len(req.Prompt), maxPromptSize)
	}

	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	connectTimeout := req.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = c.cfg.ConnectTimeout
	}

	bodyBytes, err := json.Marshal(providerGenerateRequest{
		Model:   model,
		Prompt:  req.Prompt,
		Stream:  true,
		Options: req.Options,
	})
	if err != nil {
		return nil, fmt.Errorf("llmclient: marshal generate request: %w", err)
	}

	_, span := observability.StartSpan(parentCtx, "upstream.connect",
		attribute.String("upstream.model", model),
		attribute.Int("upstream.prompt_bytes", len(req.Prompt)),
	)
	defer span.End()

	// The connect budget covers dialing, retries and waiting for headers.
	// Once headers arrive the timer is stopped and the stream may run
	// as long as bytes keep coming.
	ctx, cancel := context.WithCancel(parentCtx)
	var connectExpired atomic.Bool
	connectTimer := time.AfterFunc(connectTimeout, func() {
		connectExpired.Store(true)
		cancel()
	})

	url := c.cfg.BaseURL + "/api/generate"
	doOnce := func(ctx context.Context, body []byte) (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("llmclient: build HTTP request: %w", err)
		}
		c.setHeaders(httpReq)
		return c.httpClient.Do(httpReq)
	}

	start := time.Now()
	resp, err := c.doWithRetry(ctx, bodyBytes, doOnce)
	stopped := connectTimer.Stop()

	if err == nil && !stopped && connectExpired.Load() {
		// headers raced the timer; the request context is already cancelled
		resp.Body.Close()
		err = context.DeadlineExceeded
	}

	if err != nil {
		cancel()
		switch {
		case connectExpired.Load():
			err = unavailable(0, fmt.Sprintf("no response within %s", connectTimeout), err)
		case parentCtx.Err() != nil:
			err = parentCtx.Err()
		case !errors.Is(err, ErrUpstreamUnavailable):
			err = unavailable(0, "connect failed", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "connect failed")
		c.logger.Error("upstream connect failed",
			zap.String("model", model),
			zap.Duration("connect_timeout", connectTimeout),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		resp.Body.Close()
		cancel()

		msg := truncate(string(body), 200)
		var perr providerErrorResponse
		if json.Unmarshal(body, &perr) == nil && perr.Error != "" {
			msg = perr.Error
		}

		c.logger.Error("upstream rejected generation",
			zap.String("model", model),
			zap.Int("status", resp.StatusCode),
			zap.String("error_message", msg),
		)
		err := unavailable(resp.StatusCode, msg, nil)
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream rejected request")
		return nil, err
	}

	span.SetAttributes(attribute.Int64("upstream.connect_ms", time.Since(start).Milliseconds()))
	c.logger.Debug("upstream stream established",
		zap.String("model", model),
		zap.Duration("connect", time.Since(start)),
	)

	results := make(chan ChunkResult, 16)
	go c.pump(parentCtx, cancel, resp, results, model)
	return results, nil
}

// pump copies raw body reads onto out until EOF, failure or cancellation.
// It never interprets the bytes.
func (c *client) pump(
	parentCtx context.Context,
	cancel context.CancelFunc,
	resp *http.Response,
	out chan<- ChunkResult,
	model string,
) {
	defer close(out)
	defer cancel()
	defer resp.Body.Close()

	idleTimeout := c.cfg.IdleTimeout
	var idleExpired atomic.Bool
	var idle *time.Timer
	if idleTimeout > 0 {
		idle = time.AfterFunc(idleTimeout, func() {
			idleExpired.Store(true)
			cancel()
		})
		defer idle.Stop()
	}

	// send delivers a result unless the caller has gone away.
	send := func(r ChunkResult) bool {
		select {
		case out <- r:
			return true
		case <-parentCtx.Done():
			return false
		}
	}

	buf := make([]byte, c.cfg.ReadBufferSize)
	chunks, total := 0, 0

	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			chunks++
			total += n

			// a slow downstream must not count as upstream silence
			if idle != nil {
				idle.Stop()
			}
			if !send(ChunkResult{Data: data}) {
				c.logger.Info("upstream stream cancelled by caller",
					zap.String("model", model),
					zap.Int("chunks", chunks),
				)
				return
			}
			if idle != nil && !idleExpired.Load() {
				idle.Reset(idleTimeout)
			}
		}

		if err == nil {
			continue
		}

		switch {
		case errors.Is(err, io.EOF):
			c.logger.Info("upstream stream completed",
				zap.String("model", model),
				zap.Int("chunks", chunks),
				zap.Int("bytes", total),
			)
		case idleExpired.Load():
			c.logger.Warn("upstream stream went silent",
				zap.String("model", model),
				zap.Duration("idle_timeout", idleTimeout),
			)
			send(ChunkResult{Err: streamBroken(fmt.Sprintf("no data for %s", idleTimeout), err)})
		case parentCtx.Err() != nil:
			c.logger.Info("upstream stream cancelled by caller",
				zap.String("model", model),
				zap.Int("chunks", chunks),
				zap.Error(parentCtx.Err()),
			)
		default:
			c.logger.Error("upstream stream broke",
				zap.String("model", model),
				zap.Int("chunks", chunks),
				zap.Error(err),
			)
			send(ChunkResult{Err: streamBroken("read failed", err)})
		}
		return
	}
}

// truncate limits string length for logging
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
