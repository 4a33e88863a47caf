// Package api serves the hearth HTTP API.
//
// Compute routes are scoped to the project bound to the caller's token and
// never accept a project id from the client.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jbweber/hearth/internal/reconcile"
	"github.com/jbweber/hearth/internal/session"
	"github.com/jbweber/hearth/internal/store"
	"github.com/jbweber/hearth/internal/vm"
)

// TokenHeader carries the session token on authenticated requests.
const TokenHeader = "X-Auth-Token"

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Compute is the VM lifecycle surface.
//
// In production, this is satisfied by *vm.Orchestrator.
type Compute interface {
	CreateVM(ctx context.Context, req vm.CreateRequest) (*vm.CreateResult, error)
	ListVMs(ctx context.Context, projectID uint) ([]vm.VMView, error)
	DestroyVM(ctx context.Context, projectID uint, name string) (*vm.DestroyResult, error)
	ReconcileVMs(ctx context.Context) ([]reconcile.GhostVM, error)
}

// Authenticator issues and checks session tokens.
//
// In production, this is satisfied by *identity.AuthGate.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password, projectName string) (string, time.Time, error)
	ValidateToken(ctx context.Context, token string) (session.Session, error)
	InvalidateToken(ctx context.Context, token string) error
}

// Directory manages projects, users and role bindings.
//
// In production, this is satisfied by *identity.Directory.
type Directory interface {
	CreateProject(ctx context.Context, name string) (*store.Project, error)
	ListProjects(ctx context.Context) ([]store.Project, error)
	GetProject(ctx context.Context, id uint) (*store.Project, error)
	DeleteProject(ctx context.Context, id uint) error
	CreateUser(ctx context.Context, username, password string) (*store.User, error)
	ListUsers(ctx context.Context) ([]store.User, error)
	GetUser(ctx context.Context, id uint) (*store.User, error)
	DeleteUser(ctx context.Context, id uint) error
	AssignRole(ctx context.Context, userID, projectID uint, roleName string) error
	RevokeRole(ctx context.Context, userID, projectID uint, roleName string) error
	ListProjectMembers(ctx context.Context, projectID uint) ([]store.Member, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Config wires the API to its dependencies.
type Config struct {
	Compute   Compute
	Auth      Authenticator
	Directory Directory
	Logger    *slog.Logger

	// Gatherer is exposed at /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer

	// HealthChecks run on every /healthz request, keyed by name.
	HealthChecks map[string]HealthCheck
}

// API holds the handler dependencies.
type API struct {
	compute Compute
	auth    Authenticator
	dir     Directory
	logger  *slog.Logger
	gather  prometheus.Gatherer
	checks  map[string]HealthCheck
}

// New creates an API from cfg.
func New(cfg Config) *API {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		compute: cfg.Compute,
		auth:    cfg.Auth,
		dir:     cfg.Directory,
		logger:  logger,
		gather:  cfg.Gatherer,
		checks:  cfg.HealthChecks,
	}
}

// Handler returns the root router with all routes and middleware registered.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all API endpoints to the given chi router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", a.healthHandler)
	if a.gather != nil {
		r.Handle("/metrics", promhttp.HandlerFor(a.gather, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		// Auth endpoints group
		r.Post("/auth/tokens", a.issueTokenHandler)
		r.With(a.requireToken).Delete("/auth/tokens", a.revokeTokenHandler)

		// Compute endpoints group
		r.Group(func(r chi.Router) {
			r.Use(a.requireToken)
			r.Get("/vms", a.listVMsHandler)
			r.Post("/vms", a.createVMHandler)
			r.Delete("/vms/{name}", a.destroyVMHandler)
			r.With(requireRole(store.RoleAdmin)).Post("/actions/reconcile", a.reconcileHandler)
		})

		// Projects endpoints group
		r.Route("/projects", func(r chi.Router) {
			r.Post("/", a.createProjectHandler)
			r.Get("/", a.listProjectsHandler)
			r.Get("/{id}", a.getProjectHandler)
			r.Delete("/{id}", a.deleteProjectHandler)

			r.Group(func(r chi.Router) {
				r.Use(a.requireToken)
				r.Use(a.requireProjectScope)
				r.Get("/{id}/members", a.listMembersHandler)

				r.With(requireRole(store.RoleAdmin)).Put("/{id}/users/{uid}/roles/{role}", a.assignRoleHandler)
				r.With(requireRole(store.RoleAdmin)).Delete("/{id}/users/{uid}/roles/{role}", a.revokeRoleHandler)
			})
		})

		// Users endpoints group
		r.Route("/users", func(r chi.Router) {
			r.Post("/", a.createUserHandler)
			r.Get("/", a.listUsersHandler)
			r.Get("/{id}", a.getUserHandler)
			r.Delete("/{id}", a.deleteUserHandler)
		})
	})
}

func (a *API) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(a.checks))
	for name, check := range a.checks {
		if err := check(ctx); err != nil {
			a.logger.Warn("health check failed", "check", name, "error", err)
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	writeJSON(w, status, HealthResponse{Status: http.StatusText(status), Checks: results})
}
