package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/fezdelivery/pkg/commerce"
	"github.com/tournevent/fezdelivery/pkg/delivery"
	"github.com/tournevent/fezdelivery/pkg/session"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Server is the HTTP server for the delivery service.
type Server struct {
	config Config
	deps   Deps
	logger *otelzap.Logger
	router chi.Router
}

// Config holds server configuration.
type Config struct {
	Port              int
	PickupState       string  // default pickup state for quotes
	DefaultItemWeight float64 // kg per unit for items without a weight
}

// Deps are the workflow components the handlers call.
type Deps struct {
	Engine     *delivery.QuoteEngine
	Submitter  *delivery.Submitter
	Dispatcher *delivery.Dispatcher
	Status     *delivery.StatusReader
	Rates      *delivery.RateCalculator
	Sessions   session.Store
	Orders     commerce.OrderStore
	Gatherer   prometheus.Gatherer // nil uses the default registry
}

// New creates a new server instance.
func New(cfg Config, deps Deps, logger *otelzap.Logger) *Server {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.DefaultItemWeight <= 0 {
		cfg.DefaultItemWeight = delivery.DefaultItemWeight
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: logger,
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Route("/quote", func(r chi.Router) {
			r.Get("/", s.handleGetQuote)
			r.Post("/", s.handleQuote)
			r.Delete("/", s.handleResetQuote)
			r.Post("/export", s.handleExportQuote)
		})
		r.Post("/shipping-rate", s.handleShippingRate)
		r.Get("/lockers/{state}", s.handleLockers)

		r.Post("/orders/status", s.handleBulkStatus)
		r.Route("/orders/{id}", func(r chi.Router) {
			r.Post("/events", s.handleOrderEvent)
			r.Post("/sync", s.handleSync)
			r.Get("/status", s.handleOrderStatus)
			r.Get("/label", s.handleLabel)
		})
	})
	return r
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.config.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Ctx(r.Context()).Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
