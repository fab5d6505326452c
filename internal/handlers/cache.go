package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"codestream-gateway/internal/cache"
	"codestream-gateway/pkg/logging/logging"
)

// CacheHandler exposes cache statistics and a manual purge.
type CacheHandler struct {
	Store cache.Store
}

func NewCacheHandler(s cache.Store) *CacheHandler {
	return &CacheHandler{Store: s}
}

// Stats handles GET /v1/cache/stats.
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Store.Stats(r.Context())
	if err != nil {
		logging.L(r.Context()).Error("cache stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read cache stats")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type clearResponse struct {
	Message string `json:"message"`
	Cleared int    `json:"cleared"`
}

// Clear handles DELETE /v1/cache.
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.Store.Clear(r.Context())
	if err != nil {
		logging.L(r.Context()).Error("cache clear failed", zap.Int("cleared", n), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to clear cache")
		return
	}
	logging.L(r.Context()).Info("cache cleared", zap.Int("cleared", n))
	writeJSON(w, http.StatusOK, clearResponse{Message: "cache cleared", Cleared: n})
}
