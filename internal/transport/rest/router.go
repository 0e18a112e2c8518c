package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/miyuou/smartticket/internal/auth"
	"github.com/miyuou/smartticket/internal/lookup"
	"github.com/miyuou/smartticket/internal/metrics"
	"github.com/miyuou/smartticket/internal/policy"
	"github.com/miyuou/smartticket/internal/stats"
	"github.com/miyuou/smartticket/internal/ticket"
	"github.com/miyuou/smartticket/internal/transfer"
	"github.com/miyuou/smartticket/internal/transport"
	"github.com/miyuou/smartticket/internal/transport/middleware"
	"github.com/miyuou/smartticket/internal/transport/swagger"
	"github.com/miyuou/smartticket/internal/user"
)

// Routes bundles everything the router mounts. Nil handlers are skipped,
// which lets specs mount a partial API.
type Routes struct {
	DB     *sqlx.DB
	Logger *slog.Logger

	Auth     *auth.Handler
	RBAC     *auth.RBACAuthorization
	Users    *user.Handler
	Tickets  *ticket.Handler
	Lookups  *lookup.Handler
	Stats    *stats.Handler
	Transfer *transfer.Handler

	LoginLimiter   *middleware.RateLimiter
	AllowedOrigins []string

	Metrics     *metrics.Collector
	MetricsPath string
	Gatherer    prometheus.Gatherer

	OpenAPISpec []byte
}

func RegisterAllRoutes(router *chi.Mux, routes Routes) {
	logger := routes.Logger
	if logger == nil {
		logger = slog.Default()
	}
	healthHandler := NewHealthHandler(routes.DB)
	base := transport.NewBaseHandler(logger)

	rbac := routes.RBAC
	if rbac == nil {
		rbac = auth.NewRBACAuthorization(logger)
	}

	// Apply global middleware
	router.Use(middleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.CORS(routes.AllowedOrigins))
	router.Use(middleware.LoggingMiddleware(logger))
	if routes.Metrics != nil {
		router.Use(routes.Metrics.Middleware)
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		base.WriteError(w, http.StatusNotFound, "Route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		base.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Public endpoints
	router.Get("/health", healthHandler.healthCheckHandler)
	router.Get("/ping", healthHandler.pingHandler)

	if routes.Metrics != nil && routes.Gatherer != nil {
		path := routes.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Method(http.MethodGet, path, metrics.Handler(routes.Gatherer))
	}

	if len(routes.OpenAPISpec) > 0 {
		router.Get(swagger.SpecPath, swagger.SpecHandler(routes.OpenAPISpec))
		router.Handle("/swagger/*", swagger.Handler())
	}

	if routes.Auth == nil {
		return
	}

	router.Route("/auth", func(ar chi.Router) {
		if routes.LoginLimiter != nil {
			ar.With(routes.LoginLimiter.Middleware).Post("/login", routes.Auth.Login)
			return
		}
		ar.Post("/login", routes.Auth.Login)
	})

	// Everything below needs a bearer token
	router.Group(func(pr chi.Router) {
		pr.Use(routes.Auth.AuthMiddleware)

		if routes.Tickets != nil {
			pr.Route("/tickets", func(tr chi.Router) {
				tr.Get("/", routes.Tickets.ListTickets)
				tr.With(rbac.RequireOperation(policy.OpCreateTicket)).Post("/", routes.Tickets.CreateTicket)
				tr.Get("/{id}", routes.Tickets.GetTicket)
				tr.With(rbac.RequireOperation(policy.OpUpdateTicket)).Put("/{id}", routes.Tickets.UpdateTicket)
				tr.With(rbac.RequireOperation(policy.OpDeleteTicket)).Delete("/{id}", routes.Tickets.DeleteTicket)
			})
		}

		if routes.Stats != nil {
			pr.Get("/stats", routes.Stats.GetStats)
		}

		if routes.Transfer != nil {
			pr.Route("/import_export", func(ir chi.Router) {
				ir.With(rbac.RequireOperation(policy.OpImport)).Post("/import", routes.Transfer.Import)
				ir.With(rbac.RequireOperation(policy.OpExport)).Get("/export", routes.Transfer.Export)
			})
		}

		if routes.Lookups != nil {
			pr.Get("/categories", routes.Lookups.GetCategories)
			pr.Get("/statuts", routes.Lookups.GetStatuts)
			pr.Get("/types", routes.Lookups.GetTypes)
		}

		if routes.Users != nil {
			pr.Route("/users", func(ur chi.Router) {
				ur.Get("/me", routes.Users.GetCurrentUser)

				ur.Group(func(mr chi.Router) {
					mr.Use(rbac.RequireOperation(policy.OpManageUsers))
					mr.Get("/", routes.Users.ListUsers)
					mr.Post("/", routes.Users.CreateUser)
					mr.Put("/{id}", routes.Users.UpdateUser)
					mr.Delete("/{id}", routes.Users.DeleteUser)
				})
			})
		}
	})
}
