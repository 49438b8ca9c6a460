package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mtben82-coder/voicebubble-backend/internal/handlers"
	"github.com/mtben82-coder/voicebubble-backend/internal/metrics"
	"github.com/mtben82-coder/voicebubble-backend/internal/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Transcribe *handlers.TranscribeHandler
	Rewrite    *handlers.RewriteHandler
	Transform  *handlers.TransformHandler
	Actions    *handlers.ActionsHandler
	Health     *handlers.HealthHandler
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, h Handlers) {

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer()) // panic recovery

	// routes
	r.Route("/api", func(r chi.Router) {
		// Transcription uploads carry multipart audio; the handler
		// enforces its own size ceiling via MaxBytesReader.
		r.Post("/transcribe", h.Transcribe.Transcribe)

		// The streaming rewrite endpoint keeps the connection open for
		// the life of the upstream completion, so no Timeout here.
		r.Post("/rewrite", h.Rewrite.Stream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second)) // request timeout
			r.Use(middleware.MaxBodySize(512 * 1024))   // 512 KB max body

			r.Post("/rewrite/batch", h.Rewrite.Batch)

			r.Route("/transform", func(r chi.Router) {
				r.Post("/transform-text", h.Transform.Transform)
				r.Post("/translate-text", h.Transform.Translate)
				r.Get("/languages", h.Transform.Languages)
			})

			r.Post("/actions/extract", h.Actions.Extract)
		})
	})

	r.Get("/", h.Health.Root)
	r.Get("/health", h.Health.Health)
	r.Get("/stats", h.Health.Stats)

	r.Handle("/metrics", metrics.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Not found","message":"The requested endpoint does not exist"}`))
	})
}
