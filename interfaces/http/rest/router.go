// Package rest is the HTTP surface of the relationship service
package rest

import (
	"net/http"

	"github.com/LoadingLlama/relation/application/services"
	"github.com/LoadingLlama/relation/interfaces/http/rest/handlers"
	"github.com/LoadingLlama/relation/interfaces/http/rest/middleware"
	"github.com/LoadingLlama/relation/pkg/auth"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"
	"github.com/LoadingLlama/relation/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Options toggles optional router features
type Options struct {
	EnableCORS     bool
	AllowedOrigins []string
	// Debug exposes internal error messages in responses
	Debug bool
	// RateLimits for /api/v1; unset fields use middleware.DefaultRateLimits
	RateLimits middleware.RateLimits
}

// ReadinessCheck reports whether downstream stores can serve requests
type ReadinessCheck func() error

// Router creates and configures the HTTP router
type Router struct {
	workspaces *services.WorkspaceFactory
	identities *services.IdentityService
	verifier   auth.Verifier
	collector  *observability.Collector
	ready      ReadinessCheck
	options    Options
	logger     *zap.Logger
}

// NewRouter creates a new router instance. collector and ready may be nil.
func NewRouter(
	workspaces *services.WorkspaceFactory,
	identities *services.IdentityService,
	verifier auth.Verifier,
	collector *observability.Collector,
	ready ReadinessCheck,
	options Options,
	logger *zap.Logger,
) *Router {
	return &Router{
		workspaces: workspaces,
		identities: identities,
		verifier:   verifier,
		collector:  collector,
		ready:      ready,
		options:    options,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger, rt.collector))

	if rt.options.EnableCORS {
		origins := rt.options.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000"}
		}
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.collector != nil {
		router.Method(http.MethodGet, "/metrics", rt.collector.Handler())
	}

	errs := pkgerrors.NewErrorHandler(rt.logger, rt.options.Debug)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.verifier, rt.options.RateLimits, rt.logger))

		identityHandler := handlers.NewIdentityHandler(rt.workspaces, rt.identities, errs, rt.logger)
		r.Get("/me", identityHandler.GetMe)
		r.Post("/me", identityHandler.Register)

		r.Route("/requests", func(r chi.Router) {
			requestHandler := handlers.NewRequestHandler(rt.workspaces, errs, rt.logger)
			r.Post("/", requestHandler.CreateRequest)
			r.Get("/", requestHandler.ListRequests)
			r.Post("/{requestID}/accept", requestHandler.AcceptRequest)
			r.Post("/{requestID}/decline", requestHandler.DeclineRequest)
			r.Delete("/{requestID}", requestHandler.WithdrawRequest)
		})

		r.Route("/relationships", func(r chi.Router) {
			relationshipHandler := handlers.NewRelationshipHandler(rt.workspaces, errs, rt.logger)
			r.Get("/", relationshipHandler.ListRelationships)
			r.Patch("/{relationshipID}", relationshipHandler.UpdateRelationship)
			r.Delete("/{relationshipID}", relationshipHandler.DeleteRelationship)
		})

		graphHandler := handlers.NewGraphHandler(rt.workspaces, errs, rt.logger)
		r.Get("/graph", graphHandler.GetGraph)
		r.Get("/insights", graphHandler.GetInsights)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if rt.ready != nil {
		if err := rt.ready(); err != nil {
			rt.logger.Warn("Readiness check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
