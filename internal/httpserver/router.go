package httpserver

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"codestream-gateway/internal/handlers"
	"codestream-gateway/internal/metrics"
	"codestream-gateway/internal/middleware"
)

// Deps are the handlers and limits the router mounts.
type Deps struct {
	Relay  *handlers.RelayHandler
	Health *handlers.HealthHandler
	Cache  *handlers.CacheHandler

	RequestTimeout time.Duration // non-streaming routes only
	MaxBodyBytes   int64
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, deps Deps) {

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer()) // panic recovery
	r.Use(middleware.MaxBodySize(deps.MaxBodyBytes))

	// plain request/response routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(deps.RequestTimeout))

		r.Get("/health", deps.Health.Health)
		r.Get("/v1/generate", deps.Relay.Generate)
		r.Get("/v1/cache/stats", deps.Cache.Stats)
		r.Delete("/v1/cache", deps.Cache.Clear)
	})

	// SSE routes live as long as the upstream keeps talking
	r.Group(func(r chi.Router) {
		r.Use(middleware.NoWriteDeadline())

		r.Get("/v1/generate-stream", deps.Relay.GenerateStream)
		r.Post("/v1/explain-stream", deps.Relay.ExplainStream)
		r.Post("/v1/correct-stream", deps.Relay.CorrectStream)
	})

	r.Handle("/metrics", metrics.Handler())
}
