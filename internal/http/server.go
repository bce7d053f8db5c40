package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Clark-Hu/sdqa/internal/catalog"
	"github.com/Clark-Hu/sdqa/internal/config"
	"github.com/Clark-Hu/sdqa/internal/domain"
	"github.com/Clark-Hu/sdqa/internal/formatter"
	"github.com/Clark-Hu/sdqa/internal/metrics"
)

// Backend is the relational store behind the handlers. Both the Postgres
// repository and sqlstore.Store satisfy it.
type Backend interface {
	formatter.RelationalStore
	CountRatings(ctx context.Context, route formatter.Route, parentID int64) (int64, error)
	GetMetricByName(ctx context.Context, name string) (domain.Metric, error)
	ListMetrics(ctx context.Context) ([]domain.Metric, error)
	ListThresholds(ctx context.Context) ([]domain.Threshold, error)
	ListImageStatuses(ctx context.Context) ([]domain.ImageStatus, error)
}

// HealthChecker reports database reachability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps bundles the collaborators of a Server.
type Deps struct {
	Backend Backend
	Health  HealthChecker
	// Catalog overrides the catalog source; nil means Backend.
	Catalog catalog.Loader
	Metrics *metrics.Manager
	Logger  logrus.FieldLogger
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg       config.Config
	backend   Backend
	health    HealthChecker
	catalog   catalog.Loader
	formatter *formatter.Formatter
	metrics   *metrics.Manager
	logger    logrus.FieldLogger
	router    chi.Router
	httpSrv   *http.Server

	// encoder serializes downloads. It has no recorder, so exports are not
	// counted as writes.
	encoder *formatter.Formatter
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	loader := deps.Catalog
	if loader == nil {
		loader = deps.Backend
	}

	opts := []formatter.Option{formatter.WithLogger(logger), formatter.WithCatalog(loader)}
	if deps.Metrics != nil {
		opts = append(opts, formatter.WithRecorder(deps.Metrics))
	}

	s := &Server{
		cfg:       cfg,
		backend:   deps.Backend,
		health:    deps.Health,
		catalog:   loader,
		formatter: formatter.New(opts...),
		encoder:   formatter.New(formatter.WithLogger(logger)),
		metrics:   deps.Metrics,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	s.router = r
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	s.router.Route("/catalog", func(r chi.Router) {
		r.Get("/metrics", s.handleListMetrics)
		r.Get("/metrics/{name}", s.handleGetMetric)
		r.Get("/thresholds", s.handleListThresholds)
		r.Get("/image-statuses", s.handleListImageStatuses)
	})
	s.router.Route("/ratings/{scope}/{parentId}", func(r chi.Router) {
		r.Post("/", s.handleSubmitRatings)
		r.Get("/", s.handleGetRatings)
		r.Get("/archive", s.handleGetArchive)
		r.Get("/count", s.handleCountRatings)
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start boots the HTTP server and blocks until ctx ends or serving fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// requestLogger logs one line per request and feeds the HTTP metrics.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if s.metrics != nil {
			s.metrics.ObserveHTTP(route, r.Method, status, elapsed)
		}
		s.logger.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"route":      route,
			"status":     status,
			"bytes":      ww.BytesWritten(),
			"elapsed":    elapsed,
		}).Info("http: request served")
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.health != nil {
		if err := s.health.HealthCheck(ctx); err != nil {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
