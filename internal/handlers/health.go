package handlers

import (
	"net/http"
	"time"

	"codestream-gateway/internal/health"
	"codestream-gateway/internal/prompt"
)

// HealthHandler reports gateway liveness plus a fresh probe of every
// registered backend.
type HealthHandler struct {
	Monitor *health.Monitor
	Now     func() time.Time
}

func NewHealthHandler(m *health.Monitor) *HealthHandler {
	return &HealthHandler{Monitor: m, Now: time.Now}
}

type targetStatus struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

type healthResponse struct {
	Status             string                  `json:"status"`
	Timestamp          time.Time               `json:"timestamp"`
	SupportedLanguages []prompt.Language       `json:"supportedLanguages"`
	Backends           map[string]targetStatus `json:"backends,omitempty"`
}

// Health handles GET /health. The gateway itself is up whenever it answers,
// so the status code is always 200; a failing backend only turns the body
// status to "degraded".
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:             "ok",
		Timestamp:          h.Now().UTC(),
		SupportedLanguages: prompt.SupportedLanguages(),
	}

	if h.Monitor != nil {
		results := h.Monitor.ProbeAll(r.Context())
		resp.Backends = make(map[string]targetStatus, len(results))
		for name, res := range results {
			ts := targetStatus{Status: res.Status.String(), LatencyMs: res.Latency.Milliseconds()}
			if res.Err != nil {
				ts.Error = res.Err.Error()
			}
			if res.Status != health.Online {
				resp.Status = "degraded"
			}
			resp.Backends[name] = ts
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
