package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

const defaultRateLimit = 120

// NewRouter builds and returns the Chi router with all routes configured.
// The weather routes are rate limited per client IP; health endpoints are
// not. A non-positive requestsPerMinute falls back to the default.
func NewRouter(handlers *Handlers, requestsPerMinute int, db, redis Pinger, log *slog.Logger) *chi.Mux {
	if requestsPerMinute <= 0 {
		requestsPerMinute = defaultRateLimit
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(Recoverer(log))

	r.Get("/health", Health)
	r.Get("/health/ready", ReadinessHandlerFunc(db, redis, log))

	r.Route("/weather", func(r chi.Router) {
		r.Use(httprate.LimitByIP(requestsPerMinute, time.Minute))
		r.Post("/", handlers.CreateWeather)
		r.Get("/{city}", handlers.GetWeather)
		r.Get("/{city}/history", handlers.GetHistory)
		r.Patch("/{recordID}", handlers.UpdateWeather)
		r.Delete("/{recordID}", handlers.DeleteWeather)
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
