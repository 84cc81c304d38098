// Package api exposes the scan engine over HTTP: scan lifecycle endpoints,
// topology layout computation, schedule management, a websocket event
// stream, and Prometheus metrics. The API is a thin boundary; all scan
// semantics live in the core packages.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/api/middleware"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/config"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/events"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/logging"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/metrics"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/scanning"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/scheduler"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/topology"
)

// Server timeout constants.
const (
	serverShutdownTimeout = 30 * time.Second
	readHeaderTimeout     = 10 * time.Second
	idleTimeout           = 60 * time.Second
)

// Server is the HTTP front end over the orchestrator, scheduler, and
// layout engine.
type Server struct {
	httpServer   *http.Server
	router       *mux.Router
	config       *config.Config
	orchestrator *scanning.Orchestrator
	scheduler    *scheduler.Scheduler
	layout       *topology.LayoutEngine
	bus          events.Publisher
	stream       *EventStream
	logger       *logging.Logger
	validate     *validator.Validate
	startTime    time.Time
}

// New creates an API server wired to the given scan components.
func New(cfg *config.Config, orch *scanning.Orchestrator, sched *scheduler.Scheduler, bus events.Publisher) *Server {
	logger := logging.Default().WithComponent("api")

	server := &Server{
		router:       mux.NewRouter(),
		config:       cfg,
		orchestrator: orch,
		scheduler:    sched,
		layout:       topology.NewLayoutEngine(cfg.Topology),
		bus:          bus,
		stream:       NewEventStream(bus, logger),
		logger:       logger,
		validate:     validator.New(),
		startTime:    time.Now(),
	}

	server.setupMiddleware()
	server.setupRoutes()

	// Read/write timeouts stay unset: scan requests run for up to the
	// scan timeout and the websocket stream is long-lived. The header
	// and idle timeouts still bound misbehaving connections.
	server.httpServer = &http.Server{
		Addr:              cfg.GetAPIAddress(),
		Handler:           server.router,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	return server
}

// Start runs the server until the context is cancelled or the listener
// fails.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting API server", "address", s.httpServer.Addr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("api server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully shuts down the server and the event stream.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	s.stream.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown failed: %w", err)
	}
	return nil
}

// Router returns the configured router, mainly for httptest.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Address returns the listen address.
func (s *Server) Address() string {
	return s.httpServer.Addr
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.logger.Logger))
	s.router.Use(middleware.Logging(s.logger.Logger))
	s.router.Use(middleware.Metrics(metrics.GetGlobalMetrics()))
	s.router.Use(middleware.SecurityHeaders())

	corsOrigins := handlers.AllowedOrigins([]string{"*"})
	corsHeaders := handlers.AllowedHeaders([]string{"Content-Type"})
	corsMethods := handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"})
	s.router.Use(handlers.CORS(corsOrigins, corsHeaders, corsMethods))
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.healthHandler).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(
		metrics.GetGlobalMetrics().GetRegistry(),
		promhttp.HandlerOpts{},
	)).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/scans", s.createScanHandler).Methods("POST")
	api.HandleFunc("/scans", s.listScansHandler).Methods("GET")
	api.HandleFunc("/scans/{id}", s.scanProgressHandler).Methods("GET")
	api.HandleFunc("/scans/{id}", s.cancelScanHandler).Methods("DELETE")

	api.HandleFunc("/topology/layout", s.topologyLayoutHandler).Methods("POST")

	api.HandleFunc("/schedules", s.createScheduleHandler).Methods("POST")
	api.HandleFunc("/schedules", s.listSchedulesHandler).Methods("GET")
	api.HandleFunc("/schedules/{id}", s.removeScheduleHandler).Methods("DELETE")

	api.HandleFunc("/events/ws", s.stream.Serve).Methods("GET")
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	s.logger.Error("API error",
		"method", r.Method,
		"path", r.URL.Path,
		"status", statusCode,
		"error", err)

	s.writeJSON(w, statusCode, ErrorResponse{
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r),
	})
}
