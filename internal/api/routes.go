package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all routes. hc may be nil, in which case /health
// only reports liveness.
func SetupRoutes(h *Handlers, hc *HealthChecker, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(instrument)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if hc == nil {
		hc = NewHealthChecker(nil, nil, nil, "")
	}
	r.Get("/health", hc.HandleHealth)
	r.Get("/health/live", hc.HandleLiveness)
	r.Get("/health/ready", hc.HandleReadiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/accounts", h.GetAccounts)
		r.Get("/overview", h.GetOverview)

		r.Route("/revenue", func(r chi.Router) {
			r.Get("/", h.GetRevenue)
			r.Post("/", h.AddRevenue)
			r.Get("/summary", h.GetRevenueSummary)
			r.Get("/export", h.ExportRevenue)
		})

		r.Route("/imports", func(r chi.Router) {
			r.Get("/", h.ListImports)
			r.Post("/", h.SubmitImport)
			r.Get("/template", h.DownloadTemplate)
			r.Post("/preview", h.PreviewImport)
			r.Get("/{id}", h.GetImport)
		})

		r.Post("/sync", h.TriggerSync)
	})

	return r
}
