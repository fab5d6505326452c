package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"codestream-gateway/internal/cache"
	"codestream-gateway/internal/events"
	"codestream-gateway/internal/frame"
	"codestream-gateway/internal/health"
	"codestream-gateway/internal/llm"
	"codestream-gateway/internal/metrics"
	"codestream-gateway/internal/observability"
	"codestream-gateway/internal/prompt"
	"codestream-gateway/pkg/logging/logging"
)

// ErrClientGone is returned when the sink stops accepting events.
var ErrClientGone = errors.New("relay: client disconnected")

// Relay outcomes, used for metrics and the decision log line.
const (
	outcomeCached    = "cached"
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeAborted   = "aborted"
	outcomeRejected  = "rejected"
)

type Config struct {
	Specs  map[TaskKind]TaskSpec
	Store  cache.Store
	Client llm.Client
	// Options are the base generation options; each TaskSpec may adjust them.
	Options llm.Options
	// CacheVersion is mixed into every key. Bump it to orphan old entries.
	CacheVersion string
	Clock        func() time.Time
}

// Invocation is one call to Run. Upstream is the caller's view of generator
// health; Offline refuses uncached work up front, Unknown does not.
type Invocation struct {
	Request  TaskRequest
	Upstream health.Status
}

// Engine drives relays. It holds no per-request state and is safe for
// concurrent use; relays share only the cache store.
type Engine struct {
	specs   map[TaskKind]TaskSpec
	store   cache.Store
	client  llm.Client
	options llm.Options
	version string
	now     func() time.Time
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Client == nil {
		return nil, errors.New("relay: upstream client is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("relay: cache store is required")
	}
	if len(cfg.Specs) == 0 {
		return nil, errors.New("relay: no task specs")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Engine{
		specs:   cfg.Specs,
		store:   cfg.Store,
		client:  cfg.Client,
		options: cfg.Options,
		version: cfg.CacheVersion,
		now:     cfg.Clock,
	}, nil
}

// Spec returns the registered spec for kind.
func (e *Engine) Spec(kind TaskKind) (TaskSpec, bool) {
	s, ok := e.specs[kind]
	return s, ok
}

// run is the per-relay state.
type run struct {
	e         *Engine
	spec      TaskSpec
	req       TaskRequest
	lang      prompt.Language
	sink      events.Sink
	log       *zap.Logger
	start     time.Time
	id        string
	key       string
	title     string
	fromCache bool

	fragments int
	bytes     int
	malformed int
}

// Run executes one relay. Errors returned before the first event are
// *ValidationError or llm.ErrUpstreamUnavailable and the caller answers
// them as plain HTTP errors. Once Metadata is out, every failure is reported
// as a single Error event and the error is also returned for logging.
// ErrClientGone means the sink failed and nothing more was emitted.
func (e *Engine) Run(ctx context.Context, inv Invocation, sink events.Sink) (err error) {
	req := inv.Request
	r := &run{
		e:     e,
		req:   req,
		lang:  prompt.NormalizeLanguage(req.Language),
		sink:  sink,
		start: e.now(),
		id:    uuid.NewString(),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, "relay."+string(req.Kind),
		attribute.String("relay.id", r.id),
		attribute.String("relay.language", string(r.lang)),
	)
	defer span.End()

	r.log = logging.FromContext(ctx).Named("relay").With(
		zap.String("relay_id", r.id),
		zap.String("task", string(req.Kind)),
	)

	outcome := outcomeFailed
	defer func() {
		r.decide(outcome, err)
		span.SetAttributes(
			attribute.String("relay.outcome", outcome),
			attribute.Bool("relay.from_cache", r.fromCache),
			attribute.Int("relay.fragments", r.fragments),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
	}()

	spec, ok := e.specs[req.Kind]
	if !ok {
		outcome = outcomeRejected
		return &ValidationError{Field: "task", Reason: fmt.Sprintf("unsupported task %q", req.Kind)}
	}
	r.spec = spec

	if err := spec.Validate(req); err != nil {
		outcome = outcomeRejected
		return err
	}
	pctx, err := spec.Context(req)
	if err != nil {
		outcome = outcomeRejected
		return err
	}
	r.title = pctx.Title

	r.key = cache.BuildKey(cache.KeyParams{
		Task:     string(req.Kind),
		Language: string(r.lang),
		Problem:  req.ProblemRef,
		Version:  e.version,
		Source:   req.SourceCode,
	}).String()

	if req.Refresh {
		metrics.CacheLookupsTotal.WithLabelValues(string(req.Kind), "bypass").Inc()
	} else {
		entry, hit, err := e.store.Get(ctx, r.key)
		if err != nil {
			r.log.Warn("cache lookup failed, treating as miss", zap.Error(err))
		} else if hit {
			r.fromCache = true
			if err := r.replay(entry.Payload); err != nil {
				outcome = outcomeAborted
				return err
			}
			outcome = outcomeCached
			return nil
		}
	}

	if inv.Upstream == health.Offline {
		outcome = outcomeRejected
		return fmt.Errorf("relay: %w: health probe failed", llm.ErrUpstreamUnavailable)
	}

	if err := r.emit(r.metadata()); err != nil {
		outcome = outcomeAborted
		return err
	}

	text, err := r.stream(ctx, pctx)
	if err != nil {
		if errors.Is(err, ErrClientGone) || ctx.Err() != nil {
			outcome = outcomeAborted
			return err
		}
		if emitErr := r.emit(events.Error{Message: clientMessage(err)}); emitErr != nil {
			outcome = outcomeAborted
			return errors.Join(err, emitErr)
		}
		return err
	}

	cleaned := spec.Clean(text, r.lang)
	if cleaned != "" {
		if err := e.store.Put(ctx, r.key, cleaned); err != nil {
			r.log.Warn("cache write failed", zap.Error(err))
		}
	}

	if err := r.emit(events.Complete{ElapsedMs: r.elapsed().Milliseconds()}); err != nil {
		outcome = outcomeAborted
		return err
	}
	outcome = outcomeCompleted
	return nil
}

func (r *run) metadata() events.Metadata {
	return events.Metadata{
		FromCache: r.fromCache,
		Task:      string(r.req.Kind),
		Language:  string(r.lang),
		Title:     r.title,
		RelayID:   r.id,
	}
}

// replay serves a cached payload as a one-fragment stream.
func (r *run) replay(payload string) error {
	if err := r.emit(r.metadata()); err != nil {
		return err
	}
	if err := r.emitData(payload); err != nil {
		return err
	}
	return r.emit(events.Complete{ElapsedMs: r.elapsed().Milliseconds()})
}

// stream opens the upstream, forwards fragments and returns the raw text.
func (r *run) stream(ctx context.Context, pctx prompt.Context) (string, error) {
	text, err := r.spec.Prompt(pctx, r.lang)
	if err != nil {
		return "", err
	}

	connectStart := time.Now()
	chunks, err := r.e.client.Open(ctx, &llm.GenerateRequest{
		Prompt:         text,
		Options:        r.spec.Options(r.e.options),
		ConnectTimeout: r.lang.Info().ConnectTimeout,
	})
	if err != nil {
		return "", err
	}
	metrics.UpstreamConnectSeconds.WithLabelValues(string(r.req.Kind)).Observe(time.Since(connectStart).Seconds())

	ra := frame.New(r.spec.RecordField)
	defer func() {
		r.malformed = ra.Malformed()
		if r.malformed > 0 {
			metrics.MalformedRecordsTotal.Add(float64(r.malformed))
		}
	}()

	for {
		// checked first so a cancelled relay never races a ready chunk
		if err := ctx.Err(); err != nil {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-chunks:
			if !ok {
				if err := r.forward(ra.Finish()); err != nil {
					return "", err
				}
				return ra.Text(), nil
			}
			if res.Err != nil {
				return "", res.Err
			}
			if err := r.forward(ra.Write(res.Data)); err != nil {
				return "", err
			}
		}
	}
}

func (r *run) forward(records []frame.Record) error {
	for _, rec := range records {
		if rec.Err != "" {
			return &upstreamRecordError{msg: rec.Err}
		}
		if rec.HasFragment && rec.Fragment != "" {
			if err := r.emitData(rec.Fragment); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *run) emitData(fragment string) error {
	if err := r.emit(events.Data{Field: r.spec.Field, Fragment: fragment}); err != nil {
		return err
	}
	r.fragments++
	r.bytes += len(fragment)
	return nil
}

func (r *run) emit(ev events.Event) error {
	if err := r.sink.Emit(ev); err != nil {
		return fmt.Errorf("%w: %v", ErrClientGone, err)
	}
	return nil
}

func (r *run) elapsed() time.Duration { return r.e.now().Sub(r.start) }

// decide writes the single per-relay decision line and the relay metrics.
func (r *run) decide(outcome string, err error) {
	task := string(r.req.Kind)
	elapsed := r.elapsed()

	metrics.RelaysTotal.WithLabelValues(task, outcome).Inc()
	metrics.RelayDurationSeconds.WithLabelValues(task, outcome).Observe(elapsed.Seconds())
	if r.fragments > 0 {
		metrics.RelayFragmentsTotal.WithLabelValues(task).Add(float64(r.fragments))
	}

	fields := []zap.Field{
		zap.String("outcome", outcome),
		zap.String("language", string(r.lang)),
		zap.Bool("from_cache", r.fromCache),
		zap.Bool("refresh", r.req.Refresh),
		zap.Int("fragments", r.fragments),
		zap.Int("bytes", r.bytes),
		zap.Int("malformed_records", r.malformed),
		zap.Int64("latency_ms", elapsed.Milliseconds()),
	}
	if r.req.ProblemRef != nil {
		fields = append(fields, zap.Int("problem", *r.req.ProblemRef))
	}
	if r.key != "" {
		fields = append(fields, zap.String("cache_key", r.key))
	}

	switch outcome {
	case outcomeFailed:
		r.log.Error("relay_decision", append(fields, zap.Error(err))...)
	case outcomeAborted, outcomeRejected:
		r.log.Info("relay_decision", append(fields, zap.Error(err))...)
	default:
		r.log.Info("relay_decision", fields...)
	}
}

// upstreamRecordError is an error the generator reported inside the stream.
type upstreamRecordError struct {
	msg string
}

func (e *upstreamRecordError) Error() string { return "upstream reported: " + e.msg }

func (e *upstreamRecordError) Unwrap() error { return llm.ErrUpstreamStream }

// clientMessage is the text of the Error event. It names the failure class
// without leaking addresses or internal wrapping.
func clientMessage(err error) string {
	var rec *upstreamRecordError
	var up *llm.UpstreamError
	switch {
	case errors.As(err, &rec):
		return "generation failed: " + rec.msg
	case errors.As(err, &up):
		if up.Message != "" {
			return up.Kind.Error() + ": " + up.Message
		}
		return up.Kind.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "generation timed out"
	default:
		return "generation failed"
	}
}
