package health

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"codestream-gateway/internal/metrics"
)

// Monitor keeps the last probe result per named target.
type Monitor struct {
	mu      sync.RWMutex
	targets map[string]Checker
	last    map[string]Result
	logger  *zap.Logger
}

func NewMonitor(logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		targets: make(map[string]Checker),
		last:    make(map[string]Result),
		logger:  logger.Named("health"),
	}
}

// Register adds or replaces a target.
func (m *Monitor) Register(name string, c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets[name] = c
	delete(m.last, name)
}

// Targets returns the registered names in sorted order.
func (m *Monitor) Targets() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.targets))
	for name := range m.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProbeAll probes every target concurrently and returns the fresh results.
func (m *Monitor) ProbeAll(ctx context.Context) map[string]Result {
	names := m.Targets()
	results := make([]Result, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			results[i] = m.probe(gctx, name)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]Result, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out
}

// Status returns the last known status of name. A target that was never
// probed or was offline last time is probed again first, so a recovered
// backend is picked up on the next request.
func (m *Monitor) Status(ctx context.Context, name string) Status {
	m.mu.RLock()
	last, seen := m.last[name]
	_, registered := m.targets[name]
	m.mu.RUnlock()

	if !registered {
		return Unknown
	}
	if seen && last.Status == Online {
		return Online
	}
	return m.probe(ctx, name).Status
}

// Last returns the cached result for name without probing.
func (m *Monitor) Last(name string) (Result, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.last[name]
	return r, ok
}

func (m *Monitor) probe(ctx context.Context, name string) Result {
	m.mu.RLock()
	c, ok := m.targets[name]
	m.mu.RUnlock()
	if !ok {
		return Result{Status: Unknown}
	}

	res := c.Check(ctx)

	m.mu.Lock()
	m.last[name] = res
	m.mu.Unlock()

	up := 0.0
	if res.Status == Online {
		up = 1
	}
	metrics.BackendUp.WithLabelValues(name).Set(up)

	if res.Status != Online {
		m.logger.Warn("health probe failed",
			zap.String("target", name),
			zap.Duration("latency", res.Latency),
			zap.Error(res.Err),
		)
	} else {
		m.logger.Debug("health probe ok",
			zap.String("target", name),
			zap.Duration("latency", res.Latency),
		)
	}
	return res
}
