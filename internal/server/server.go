// Package server exposes plans over HTTP: a JSON API for reading and
// mutating plans and an SSE stream of change events.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/planweave/planweave/internal/config"
	"github.com/planweave/planweave/internal/event"
	"github.com/planweave/planweave/internal/plan"
	"github.com/planweave/planweave/pkg/cerr"
	"github.com/planweave/planweave/pkg/clog"
)

type Server struct {
	server *http.Server
	env    *config.Env
	plans  *plan.Service
	bus    *event.Bus
}

func NewServer(env *config.Env, plans *plan.Service, bus *event.Bus) *Server {
	return &Server{
		env:   env,
		plans: plans,
		bus:   bus,
	}
}

// ListenAndServe starts the HTTP server. The provided context is used as the
// base context for all incoming requests via http.Server.BaseContext, so
// canceling it also tears down open SSE streams.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr: addr,
		Handler: h2c.NewHandler(cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}).Handler(s.apiKeyMiddleware(s.routes())), &http2.Server{}),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	return s.server.ListenAndServe()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(clog.SlogChiMiddleware())
		r.Get("/events", s.handleEvents)
		r.Group(func(r chi.Router) {
			r.Use(cerr.NewJSONResponseChiMiddleware())
			r.Get("/plans", s.handleListPlans)
			r.Post("/plans", s.handleOpenPlan)
			r.Get("/plans/{id}", s.handleGetPlan)
			r.Delete("/plans/{id}", s.handleRemovePlan)
			r.Post("/plans/{id}/actions", s.handleApplyAction)
			r.Get("/plans/{id}/unblocked", s.handleUnblockedTasks)
			r.Get("/plans/{id}/outcomes", s.handleOutcomes)
			r.Get("/plans/{id}/export", s.handleExport)
			r.NotFound(func(w http.ResponseWriter, r *http.Request) {
				cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
			})
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/api/", r)
	return mux
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.env.APIKey == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey = r.Header.Get("Authorization")
			if len(apiKey) > 7 && apiKey[:7] == "Bearer " {
				apiKey = apiKey[7:]
			}
		}
		if apiKey != s.env.APIKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
