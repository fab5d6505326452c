// Package health probes the generation backends. Probes are on demand; there
// is no background polling.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds one probe.
const DefaultTimeout = 3 * time.Second

type Status int

const (
	// Unknown means the target was never probed.
	Unknown Status = iota
	Online
	Offline
)

func (s Status) String() string {
	switch s {
	case Online:
		return "online"
	case Offline:
		return "offline"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the outcome of one probe. Info holds whatever metadata the
// backend returned; only Status is acted on.
type Result struct {
	Status    Status         `json:"status"`
	Latency   time.Duration  `json:"latency"`
	Info      map[string]any `json:"info,omitempty"`
	Err       error          `json:"-"`
	CheckedAt time.Time      `json:"checkedAt"`
}

// Probe issues GET endpoint and reports Online on any 2xx within timeout.
func Probe(ctx context.Context, client *http.Client, endpoint string, timeout time.Duration) Result {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res := Result{Status: Offline, CheckedAt: start}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		res.Err = fmt.Errorf("health: build request: %w", err)
		return res
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	res.Latency = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.Err = fmt.Errorf("health: %s answered %d", endpoint, resp.StatusCode)
		return res
	}

	res.Status = Online
	var info map[string]any
	if json.Unmarshal(body, &info) == nil {
		res.Info = info
	}
	return res
}

// Checker probes one target.
type Checker interface {
	Check(ctx context.Context) Result
}

// CheckFunc adapts a function to Checker.
type CheckFunc func(ctx context.Context) Result

func (f CheckFunc) Check(ctx context.Context) Result { return f(ctx) }

// HTTPChecker probes endpoint with GET.
func HTTPChecker(client *http.Client, endpoint string, timeout time.Duration) Checker {
	return CheckFunc(func(ctx context.Context) Result {
		return Probe(ctx, client, endpoint, timeout)
	})
}

// Pinger is anything with a liveness call, such as the upstream client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker turns a Pinger into a Checker bounded by timeout.
func PingChecker(p Pinger, timeout time.Duration) Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return CheckFunc(func(ctx context.Context) Result {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()
		err := p.Ping(ctx)
		res := Result{Status: Online, Latency: time.Since(start), CheckedAt: start}
		if err != nil {
			res.Status = Offline
			res.Err = err
			if errors.Is(err, context.DeadlineExceeded) {
				res.Err = fmt.Errorf("health: no answer within %s: %w", timeout, err)
			}
		}
		return res
	})
}
