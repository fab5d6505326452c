package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"

	"codestream-gateway/pkg/logging/logging"

	"go.uber.org/zap"
)

// Recoverer turns a panic into a logged 500. When the handler had already
// started an event stream the status line is gone, so the connection is
// just left to close.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger := logging.L(r.Context())
				logger.Error("panic recovered",
					zap.Any("error", rec),
					zap.ByteString("stack", debug.Stack()),
				)

				if strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream") {
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal_server_error"}`))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
