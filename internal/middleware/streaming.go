package middleware

import (
	"errors"
	"net/http"
	"time"

	"codestream-gateway/pkg/logging/logging"

	"go.uber.org/zap"
)

// NoWriteDeadline lifts the server WriteTimeout for the request so a long
// generation can keep streaming. Idle upstreams are bounded elsewhere.
func NoWriteDeadline() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := http.NewResponseController(w)
			if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
				logging.L(r.Context()).Warn("could not clear write deadline", zap.Error(err))
			}
			next.ServeHTTP(w, r)
		})
	}
}
