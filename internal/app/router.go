package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/alkesia/alkesia/internal/audit"
	"github.com/alkesia/alkesia/internal/auth"
	"github.com/alkesia/alkesia/internal/equipment"
	"github.com/alkesia/alkesia/internal/functions"
	"github.com/alkesia/alkesia/internal/observability"
	"github.com/alkesia/alkesia/internal/profiles"
	"github.com/alkesia/alkesia/internal/rbac"
	"github.com/alkesia/alkesia/internal/shared"
	"github.com/alkesia/alkesia/internal/tenants"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	Guard            *rbac.Guard
	AuthHandler      *auth.Handler
	UsersHandler     *profiles.Handler
	TenantsHandler   *tenants.Handler
	EquipmentHandler *equipment.Handler
	AuditHandler     *audit.Handler
	FunctionsHandler *functions.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router serving the dashboard API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(api chi.Router) {
		params.AuthHandler.MountRoutes(api)
		api.Route("/users", params.UsersHandler.MountRoutes)
		api.Route("/tenants", params.TenantsHandler.MountRoutes)
		api.Route("/equipment", params.EquipmentHandler.MountRoutes)
		api.Route("/audit", params.AuditHandler.MountRoutes)
	})

	r.Route("/functions/v1", func(fn chi.Router) {
		params.FunctionsHandler.MountRoutes(fn, params.Guard.RequireAuth())
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
