package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/qrlink/pkg/qrlink/api"
	"github.com/tendant/qrlink/pkg/qrlink/config"
)

// HTTPServer wires the gateway handler, middleware and metrics endpoint
type HTTPServer struct {
	gateway  *config.Gateway
	config   *config.ServerConfig
	gatherer prometheus.Gatherer
	metrics  *api.RequestMetrics
}

// NewHTTPServer creates a new HTTP server wrapper
func NewHTTPServer(gateway *config.Gateway, serverConfig *config.ServerConfig, registry *prometheus.Registry) (*HTTPServer, error) {
	metrics, err := api.NewRequestMetrics(serverConfig.MetricsNamespace, registry)
	if err != nil {
		return nil, err
	}
	return &HTTPServer{
		gateway:  gateway,
		config:   serverConfig,
		gatherer: registry,
		metrics:  metrics,
	}, nil
}

// Routes sets up the HTTP routes
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(s.metrics.Middleware)

	// CORS for development
	if s.config.Environment == "development" {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

				if r.Method == "OPTIONS" {
					w.WriteHeader(http.StatusOK)
					return
				}

				next.ServeHTTP(w, r)
			})
		})
	}

	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Mount("/", s.gateway.Handler().Routes())

	return r
}
