package handlers

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"codestream-gateway/internal/events"
	"codestream-gateway/internal/health"
	"codestream-gateway/internal/prompt"
	"codestream-gateway/internal/relay"
	"codestream-gateway/pkg/logging/logging"
)

// UpstreamTarget is the monitor name of the generation backend.
const UpstreamTarget = "upstream"

// RelayHandler serves the three streaming tasks and the non-streaming
// generate endpoint.
type RelayHandler struct {
	Engine  *relay.Engine
	Monitor *health.Monitor
	// GateOnUpstream refuses uncached work with 503 while the upstream
	// probe fails, instead of letting each request hit the connect timeout.
	GateOnUpstream bool
}

func NewRelayHandler(engine *relay.Engine, monitor *health.Monitor, gate bool) *RelayHandler {
	return &RelayHandler{Engine: engine, Monitor: monitor, GateOnUpstream: gate}
}

// GenerateStream handles GET /v1/generate-stream?index=&language=&refresh=.
func (h *RelayHandler) GenerateStream(w http.ResponseWriter, r *http.Request) {
	req, err := generateRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.stream(w, r, req)
}

// ExplainStream handles POST /v1/explain-stream.
func (h *RelayHandler) ExplainStream(w http.ResponseWriter, r *http.Request) {
	var body explainBody
	if err := decodeBody(r, &body); err != nil {
		logging.L(r.Context()).Warn("invalid request", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.stream(w, r, relay.TaskRequest{
		Kind:              relay.TaskExplain,
		SourceCode:        body.Code,
		Language:          body.Language,
		ProblemRef:        body.Index.v,
		Refresh:           body.Refresh,
		ExecutionAttested: body.Executed,
	})
}

// CorrectStream handles POST /v1/correct-stream.
func (h *RelayHandler) CorrectStream(w http.ResponseWriter, r *http.Request) {
	var body correctBody
	if err := decodeBody(r, &body); err != nil {
		logging.L(r.Context()).Warn("invalid request", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.stream(w, r, relay.TaskRequest{
		Kind:       relay.TaskCorrect,
		SourceCode: body.Code,
		Language:   body.Language,
		ProblemRef: body.Index.v,
		Refresh:    body.Refresh,
	})
}

type generateResponse struct {
	Code           string `json:"code"`
	FromCache      bool   `json:"fromCache"`
	Language       string `json:"language"`
	Title          string `json:"title,omitempty"`
	ProcessingTime int64  `json:"processingTime"`
}

// Generate handles GET /v1/generate: the same relay, collected into one
// JSON answer.
func (h *RelayHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	req, err := generateRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var c events.Collector
	err = h.Engine.Run(ctx, h.invocation(r, req), &c)
	meta, started := c.Metadata()
	if !started {
		writeRunError(w, logger, err)
		return
	}

	if e, ok := c.Terminal().(events.Error); ok {
		writeError(w, http.StatusBadGateway, e.Message)
		return
	}
	if err != nil {
		// aborted mid-way, the client is most likely gone
		logger.Info("generate aborted", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "generation aborted")
		return
	}

	code := c.Text()
	if !meta.FromCache {
		spec, _ := h.Engine.Spec(relay.TaskGenerate)
		code = spec.Clean(code, prompt.Language(meta.Language))
	}
	writeJSON(w, http.StatusOK, generateResponse{
		Code:           code,
		FromCache:      meta.FromCache,
		Language:       meta.Language,
		Title:          meta.Title,
		ProcessingTime: time.Since(start).Milliseconds(),
	})
}

func generateRequest(r *http.Request) (relay.TaskRequest, error) {
	q := r.URL.Query()
	idx, err := queryIndex(q)
	if err != nil {
		return relay.TaskRequest{}, err
	}
	if idx == nil {
		// no index means the first problem
		idx = new(int)
	}
	return relay.TaskRequest{
		Kind:       relay.TaskGenerate,
		Language:   q.Get("language"),
		ProblemRef: idx,
		Refresh:    queryBool(q, "refresh"),
		Assistance: q.Get("assistance"),
	}, nil
}

func (h *RelayHandler) invocation(r *http.Request, req relay.TaskRequest) relay.Invocation {
	inv := relay.Invocation{Request: req, Upstream: health.Unknown}
	if h.GateOnUpstream && h.Monitor != nil {
		inv.Upstream = h.Monitor.Status(r.Context(), UpstreamTarget)
	}
	return inv
}

// stream runs req with the response as an SSE sink. Failures before the
// first event are plain HTTP errors; later ones were already reported to
// the client as an error event.
func (h *RelayHandler) stream(w http.ResponseWriter, r *http.Request, req relay.TaskRequest) {
	ctx := r.Context()
	logger := logging.L(ctx)

	enc := events.NewEncoder(w)
	err := h.Engine.Run(ctx, h.invocation(r, req), enc)
	if err == nil {
		return
	}
	if !enc.Started() {
		writeRunError(w, logger, err)
		return
	}

	if errors.Is(err, relay.ErrClientGone) || ctx.Err() != nil {
		logger.Info("client left mid-stream", zap.String("task", string(req.Kind)), zap.Error(err))
		return
	}
	logger.Warn("stream ended with error event", zap.String("task", string(req.Kind)), zap.Error(err))
}
