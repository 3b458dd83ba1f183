package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cairnhq/cairn/internal/auth"
	"github.com/cairnhq/cairn/internal/dependency"
	"github.com/cairnhq/cairn/internal/permissions"
	"github.com/cairnhq/cairn/internal/tasks"
	"github.com/cairnhq/cairn/internal/workflow"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthService *auth.Service

	AuthHandler        *auth.Handler
	PermissionsHandler *permissions.Handler
	WorkflowHandler    *workflow.Handler
	DependencyHandler  *dependency.Handler
	TasksHandler       *tasks.Handler
}

// NewRouter constructs the chi.Router with Cairn defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(params.AuthService, params.Logger))

		params.PermissionsHandler.MountRoutes(r)
		params.WorkflowHandler.MountRoutes(r)
		params.DependencyHandler.MountRoutes(r)
		params.TasksHandler.MountRoutes(r)
	})

	return r
}
