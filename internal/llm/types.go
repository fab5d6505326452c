package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUpstreamUnavailable: the generator could not be reached, did not
	// answer within the connect budget, or refused the request.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamStream: the stream broke after it had been established.
	ErrUpstreamStream = errors.New("upstream stream error")
)

// UpstreamError carries the failure class plus whatever detail the upstream
// gave. errors.Is matches it against its Kind sentinel.
type UpstreamError struct {
	Kind    error
	Status  int
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	msg := e.Kind.Error()
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Is(target error) bool { return target == e.Kind }

func (e *UpstreamError) Unwrap() error { return e.Err }

func unavailable(status int, msg string, err error) error {
	return &UpstreamError{Kind: ErrUpstreamUnavailable, Status: status, Message: msg, Err: err}
}

func streamBroken(msg string, err error) error {
	return &UpstreamError{Kind: ErrUpstreamStream, Message: msg, Err: err}
}

// Options are generation parameters forwarded to the backend.
type Options struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

// GenerateRequest is one streaming generation.
type GenerateRequest struct {
	Model   string // empty = Config.Model
	Prompt  string
	Options Options
	// ConnectTimeout overrides Config.ConnectTimeout for this request. It
	// bounds everything up to the response headers, retries included.
	ConnectTimeout time.Duration
}

func (r *GenerateRequest) Validate() error {
	if r.Prompt == "" {
		return errors.New("prompt is required")
	}
	if r.Options.TopP < 0 || r.Options.TopP > 1 {
		return errors.New("top_p must be between 0 and 1")
	}
	if t := r.Options.Temperature; t != nil && (*t < 0 || *t > 2) {
		return errors.New("temperature must be between 0 and 2")
	}
	return nil
}

// ChunkResult is one raw read from the upstream body, or the error that
// ended the stream. The channel closing without an error means the upstream
// finished normally.
type ChunkResult struct {
	Data []byte
	Err  error
}

type Client interface {
	// Open establishes a generation stream. It returns once the upstream has
	// answered with headers; the bytes then arrive on the channel. Cancelling
	// ctx aborts the upstream request and closes the channel.
	Open(ctx context.Context, req *GenerateRequest) (<-chan ChunkResult, error)
	// Ping checks that the generator answers at all.
	Ping(ctx context.Context) error
}
