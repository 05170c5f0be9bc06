// Package server exposes connection planning over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gridlink/internal/boundary"
	"github.com/sells-group/gridlink/internal/config"
	"github.com/sells-group/gridlink/internal/metrics"
	"github.com/sells-group/gridlink/internal/model"
	"github.com/sells-group/gridlink/internal/planner"
	"github.com/sells-group/gridlink/internal/store"
)

const shutdownTimeout = 15 * time.Second

// Planner solves plans and loads map inputs.
type Planner interface {
	Plan(ctx context.Context, req planner.Request) (*model.Plan, error)
	LoadInputs(ctx context.Context, opts planner.InputOptions) (*planner.Inputs, error)
	Counties(ctx context.Context) ([]boundary.County, error)
}

// Server serves the plan API, plan maps and metrics.
type Server struct {
	cfg     *config.Config
	planner Planner
	store   store.Store
}

// New creates a Server. A nil store disables the stored-plan routes.
func New(cfg *config.Config, p Planner, st store.Store) *Server {
	return &Server{cfg: cfg, planner: p, store: st}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger)

	origins := s.cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/map", s.handleInfrastructureMap)

	r.Route("/api/plans", func(r chi.Router) {
		r.With(rateLimit(s.cfg.Server.RateLimitPerMin, time.Minute)).Post("/", s.handleCreatePlan)
		r.Get("/", s.handleListPlans)
		r.Get("/{id}", s.handleGetPlan)
		r.Get("/{id}/geojson", s.handleGetPlanGeoJSON)
		r.Get("/{id}/map", s.handleGetPlanMap)
	})
	return r
}

// Run listens on port until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return eris.Wrap(err, "server listen")
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	return nil
}
