package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/cattlebreed/server/internal/config"
	"github.com/cattlebreed/server/internal/middleware"
	"github.com/cattlebreed/server/internal/observability"
	"github.com/cattlebreed/server/internal/services"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Deps is everything the HTTP layer needs
type Deps struct {
	Config      *config.Config
	Auth        *services.AuthService
	Records     *services.RecordService
	Analytics   *services.AnalyticsService
	Exports     *services.ExportService
	Dashboard   *services.DashboardService
	Hub         *services.WebSocketHub
	Maintenance *services.MaintenanceService
	HTTPMetrics *observability.HTTPMetrics
	// RequestLogging enables chi's request logger
	RequestLogging bool
}

// NewRouter builds the chi router with all API routes
func NewRouter(d Deps) http.Handler {
	authHandler := NewAuthHandler(d.Auth)
	recordHandler := NewRecordHandler(d.Records, d.Analytics, d.Config.ImageStorage.MaxFileSizeMB*1024*1024)
	exportHandler := NewExportHandler(d.Exports)
	dashboardHandler := NewDashboardHandler(d.Dashboard)
	healthHandler := NewHealthHandler(d.Records)
	wsHandler := NewWebSocketHandler(d.Hub, d.Config.Security.AllowedOrigins)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	if d.RequestLogging {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(observability.TracingMiddleware())
	if d.HTTPMetrics != nil {
		r.Use(observability.MetricsMiddleware(d.HTTPMetrics))
	}
	r.Use(middleware.APIKeyAuth(d.Config.Security.APIKey, d.Config.Security.APIKeyHeader))

	r.Get("/health", healthHandler.HealthCheck)
	r.Get("/api/health", healthHandler.HealthCheck)
	r.Get("/api/version", VersionHandler)
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	r.Get("/api/ws", wsHandler.HandleConnection)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/otp/send", authHandler.SendOTP)
		r.Post("/otp/verify", authHandler.VerifyOTP)
		r.Post("/guest", authHandler.Guest)
		r.Post("/signout", authHandler.SignOut)
		r.Get("/state", authHandler.State)

		r.Group(func(r chi.Router) {
			r.Use(middleware.SessionAuth(d.Auth))
			r.Get("/me", authHandler.Me)
			r.Put("/me", authHandler.UpdateMe)
		})
	})

	r.Get("/api/languages", authHandler.Languages)
	r.Put("/api/settings/language", authHandler.SetLanguage)

	r.Route("/api/records", func(r chi.Router) {
		r.Post("/capture", recordHandler.Capture)
		r.Post("/", recordHandler.Create)
		r.Get("/", recordHandler.List)
		r.Delete("/", recordHandler.DeleteAll)
		r.Get("/unsynced", recordHandler.Unsynced)
		r.Post("/synced", recordHandler.MarkSynced)
		r.Get("/{id}", recordHandler.Get)
		r.Put("/{id}", recordHandler.Update)
		r.Delete("/{id}", recordHandler.Delete)
		r.Post("/{id}/synced", recordHandler.MarkOneSynced)
		r.Get("/{id}/image", recordHandler.Image)
		r.Get("/{id}/thumbnail", recordHandler.Thumbnail)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalSessionAuth(d.Auth))
		r.Get("/api/sync/pending", recordHandler.PendingSync)
		r.Get("/api/analytics", recordHandler.Analytics)
	})

	r.Route("/api/exports", func(r chi.Router) {
		r.Get("/", exportHandler.List)
		r.Post("/{format}", exportHandler.Export)
		r.Get("/{name}", exportHandler.Download)
	})

	r.Route("/api/dashboard", func(r chi.Router) {
		r.Get("/", dashboardHandler.View)
		r.Get("/states", dashboardHandler.States)
		r.Get("/states/{state}", dashboardHandler.State)
		r.Get("/color", dashboardHandler.Color)
	})

	if d.Maintenance != nil {
		maintenanceHandler := NewMaintenanceHandler(d.Maintenance)
		r.Get("/api/maintenance", maintenanceHandler.Status)
		r.Post("/api/maintenance/run", maintenanceHandler.Run)
	}

	return r
}
