package api

import (
	"log/slog"
	"net/http"

	"github.com/bcnelson/activation-key-server/internal/api/handler"
	"github.com/bcnelson/activation-key-server/internal/api/middleware"
	"github.com/bcnelson/activation-key-server/internal/metrics"
	"github.com/bcnelson/activation-key-server/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services bundles the application services the router exposes.
type Services struct {
	Keys    *service.KeyService
	Auth    *service.AuthService
	Reports *service.ReportService
	Catalog *service.CatalogService
	Admins  *service.AdminService
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(svc Services, defaults handler.KeyDefaults, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(m))

	r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	keyHandler := handler.NewKeyHandler(svc.Keys, svc.Reports, defaults, logger)
	keyTypeHandler := handler.NewKeyTypeHandler(svc.Catalog, svc.Reports, logger)
	reportHandler := handler.NewReportHandler(svc.Reports)
	exportHandler := handler.NewExportHandler(svc.Reports, logger)
	activationHandler := handler.NewActivationHandler(svc.Keys, logger)
	authHandler := handler.NewAuthHandler(svc.Auth, logger)
	adminHandler := handler.NewAdminHandler(svc.Admins, logger)
	healthHandler := handler.NewHealthHandler(svc.Reports)

	r.Route("/api", func(r chi.Router) {
		// Public
		r.Get("/health", healthHandler.Health)
		r.Get("/key-types", keyTypeHandler.List)
		r.Get("/key-types/{name}", keyTypeHandler.Get)
		r.Get("/keys/{value}", keyHandler.Get)
		r.Post("/activate", activationHandler.Activate)
		r.Post("/auth/login", authHandler.Login)

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(svc.Auth))

			r.Get("/keys", keyHandler.List)
			r.Post("/keys/generate", keyHandler.Generate)
			r.Post("/keys/{value}/ban", keyHandler.Ban)
			r.Post("/keys/{value}/unban", keyHandler.Unban)

			r.Get("/statistics", reportHandler.Statistics)
			r.Get("/customers", reportHandler.Customers)
			r.Get("/products", reportHandler.Products)

			r.Get("/export/keys", exportHandler.CSV)
			r.Get("/export/keys.xlsx", exportHandler.XLSX)
		})

		// Superadmin
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSuperadmin(svc.Auth))

			r.Get("/admins", adminHandler.List)
			r.Post("/admins", adminHandler.Create)
			r.Post("/key-types", keyTypeHandler.Create)
			r.Put("/key-types/{name}", keyTypeHandler.Update)
		})
	})

	return r
}
