package app

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cleancity/wastetrack/internal/api"
	"github.com/cleancity/wastetrack/internal/auth"
	"github.com/cleancity/wastetrack/internal/observability"
	"github.com/cleancity/wastetrack/internal/platform/httpx"
	"github.com/cleancity/wastetrack/internal/portal"
	"github.com/cleancity/wastetrack/internal/rbac"
	"github.com/cleancity/wastetrack/internal/shared"
	"github.com/cleancity/wastetrack/jobs"
	"github.com/cleancity/wastetrack/web"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Gate           rbac.Gate
	AuthHandler    *auth.Handler
	PortalHandler  *portal.Handler
	APIHandler     *api.Handler
	JobHandler     *jobs.Handler
	HealthChecks   map[string]HealthCheck
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
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

	r.Get("/healthz", healthHandler(params.HealthChecks))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.APIHandler != nil {
		params.APIHandler.MountRoutes(r)
	}

	// Public pages and sign-in forms know about a signed-in visitor but never
	// require one.
	r.Group(func(r chi.Router) {
		r.Use(params.Gate.Identify)
		params.PortalHandler.MountPublic(r)
		params.AuthHandler.MountRoutes(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(params.Gate.RequireIdentity(rbac.Role("").LoginPath()))
		params.PortalHandler.MountCitizen(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(params.Gate.Require(rbac.RoleAdmin, rbac.RoleAdmin.LoginPath()))
		params.PortalHandler.MountAdmin(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(params.Gate.Require(rbac.RoleDriver, rbac.RoleDriver.LoginPath()))
		params.PortalHandler.MountDriver(r)
	})

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		report := healthReport{Status: "ok", Checks: map[string]string{}}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				report.Status = "degraded"
				report.Checks[name] = err.Error()
				continue
			}
			report.Checks[name] = "ok"
		}
		status := http.StatusOK
		if report.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		httpx.JSON(w, status, report)
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
// Static assets are cached for 1 hour in browser.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
