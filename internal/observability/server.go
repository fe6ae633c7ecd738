// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberfall Contributors

// Package observability provides HTTP endpoints for metrics and health checks.
package observability

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessChecker returns whether the service is ready to accept connections.
type ReadinessChecker func() bool

// GaugeSource supplies a live value for a gauge, sampled at scrape time.
type GaugeSource func() float64

// Status labels for the identity counters.
const (
	StatusSuccess = "success"
	StatusDenied  = "denied"
	StatusValid   = "valid"
	StatusInvalid = "invalid"
)

// Metrics contains custom Prometheus metrics for the identity core. It
// satisfies identity.MetricsRecorder so the composition root can inject it
// into the service layer.
type Metrics struct {
	LoginsTotal       *prometheus.CounterVec
	LogoutsTotal      *prometheus.CounterVec
	TokenChecksTotal  *prometheus.CounterVec
	ForcedLogoutsRuns prometheus.Counter
}

// NewMetrics creates and registers the identity metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emberfall_logins_total",
				Help: "Total number of login attempts by status",
			},
			[]string{"status"},
		),
		LogoutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emberfall_logouts_total",
				Help: "Total number of logout attempts by status",
			},
			[]string{"status"},
		),
		TokenChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emberfall_token_checks_total",
				Help: "Total number of session token verifications by status",
			},
			[]string{"status"},
		),
		ForcedLogoutsRuns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "emberfall_forced_logout_runs_total",
				Help: "Total number of administrative force-logout sweeps",
			},
		),
	}

	reg.MustRegister(m.LoginsTotal)
	reg.MustRegister(m.LogoutsTotal)
	reg.MustRegister(m.TokenChecksTotal)
	reg.MustRegister(m.ForcedLogoutsRuns)

	return m
}

// RecordLogin counts one login attempt.
func (m *Metrics) RecordLogin(success bool) {
	m.LoginsTotal.WithLabelValues(outcomeStatus(success)).Inc()
}

// RecordLogout counts one logout attempt.
func (m *Metrics) RecordLogout(success bool) {
	m.LogoutsTotal.WithLabelValues(outcomeStatus(success)).Inc()
}

// RecordTokenCheck counts one session token verification.
func (m *Metrics) RecordTokenCheck(valid bool) {
	if valid {
		m.TokenChecksTotal.WithLabelValues(StatusValid).Inc()
		return
	}
	m.TokenChecksTotal.WithLabelValues(StatusInvalid).Inc()
}

// RecordForcedLogoutRun counts one administrative force-logout sweep.
func (m *Metrics) RecordForcedLogoutRun() {
	m.ForcedLogoutsRuns.Inc()
}

func outcomeStatus(success bool) string {
	if success {
		return StatusSuccess
	}
	return StatusDenied
}

// Server provides HTTP endpoints for observability (metrics and health probes).
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *Metrics
	isReady    ReadinessChecker
	running    atomic.Bool
}

// NewServer creates a new observability server.
// addr: listen address in "host:port" format (":9100" for all interfaces).
func NewServer(addr string, readinessChecker ReadinessChecker) *Server {
	// Private registry to avoid polluting the global one
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics := NewMetrics(registry)

	return &Server{
		addr:     addr,
		registry: registry,
		metrics:  metrics,
		isReady:  readinessChecker,
	}
}

// Metrics returns the custom metrics for recording application events.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// RegisterOnlineGauge registers a scrape-time gauge for currently online
// players.
func (s *Server) RegisterOnlineGauge(source GaugeSource) {
	s.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "emberfall_players_online",
			Help: "Number of players currently online",
		},
		source,
	))
}

// RegisterSessionGauge registers a scrape-time gauge for live sessions.
func (s *Server) RegisterSessionGauge(source GaugeSource) {
	s.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "emberfall_sessions_active",
			Help: "Number of live sessions across all players",
		},
		source,
	))
}

// Start begins serving observability endpoints. It returns an error channel
// that receives any error from the HTTP server after it starts; the channel
// is closed on graceful stop.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	// Kubernetes-style health probes
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the observability server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			// Restore running state on failure so the server can be stopped again
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	slog.Info("observability server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// handleLiveness returns 200 if the process is running.
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok\n"))
}

// handleReadiness returns 200 if the service is ready, or 503 if not.
func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady == nil || s.isReady() {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // health check write error is acceptable, client may disconnect
		w.Write([]byte("ok\n"))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("not ready\n"))
}
