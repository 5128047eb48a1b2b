package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ioc-registry/pkg/threat"
)

// Server exposes the threat registry over HTTP.
type Server struct {
	threats *threat.Service
	logger  *slog.Logger
	router  *mux.Router
}

func New(threats *threat.Service, logger *slog.Logger) *Server {
	s := &Server{threats: threats, logger: logger, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.requestID, s.observe)

	// Unmatched paths and mismatched methods keep the JSON error shape.
	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api", s.handleAPIRoot).Methods(http.MethodGet)
	s.router.HandleFunc("/api/threats", s.handleListThreats).Methods(http.MethodGet)
	s.router.HandleFunc("/api/threats", s.handleCreateThreat).Methods(http.MethodPost)
	s.router.HandleFunc("/api/threats/stats/summary", s.handleStatistics).Methods(http.MethodGet)
	s.router.HandleFunc("/api/threats/{id:[0-9]+}", s.handleGetThreat).Methods(http.MethodGet)
	s.router.HandleFunc("/api/threats/{id:[0-9]+}", s.handleDeleteThreat).Methods(http.MethodDelete)
}

func (s *Server) Router() http.Handler { return s.router }

// StartMetrics serves the Prometheus endpoint on its own listener.
func (s *Server) StartMetrics(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "err", err)
		}
	}()
}
