package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"bananaforge/internal/http/handlers"
	"bananaforge/internal/infra"
	"bananaforge/internal/middleware"
)

func NewRouter(cfg *infra.Config, app *handlers.App) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimiddleware.RealIP, chimiddleware.Recoverer)
	r.Use(middleware.Logger(app.Logger))
	r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/runs", func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.APIToken))
		r.Post("/", app.CreateRun)
		r.Get("/{id}", app.GetRun)
	})

	r.Route("/v1/tokens", func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.APIToken))
		r.Post("/", app.SetToken)
	})

	return r
}
