// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/AccelByte/extend-drop-farmer/pkg/farm"
	"github.com/AccelByte/extend-drop-farmer/pkg/gateway"
	"github.com/AccelByte/extend-drop-farmer/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// Farm is the orchestrator surface exposed over HTTP.
type Farm interface {
	Status() farm.Status
	Refresh(ctx context.Context) error
	Watch(target gateway.WatchingTarget) error
	StopWatching(hard bool)
}

// HealthCheck is a dependency probed by /healthz.
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HTTPServer serves metrics, health and the orchestrator status/control routes.
type HTTPServer struct {
	server *http.Server
	port   int
	farm   Farm
	checks []HealthCheck
}

// NewHTTPServer creates a new HTTP server instance.
func NewHTTPServer(port int, f Farm, checks ...HealthCheck) *HTTPServer {
	return &HTTPServer{
		port:   port,
		farm:   f,
		checks: checks,
	}
}

// Setup registers the Prometheus collectors and builds the router.
func (s *HTTPServer) Setup() error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.Register(registry)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Router(registry),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Router returns the route table. Exposed for tests.
func (s *HTTPServer) Router(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", s.handleHealth)

	r.Get("/status", s.handleStatus)
	r.Post("/refresh", s.handleRefresh)
	r.Post("/watch", s.handleWatch)
	r.Post("/stop", s.handleStop)
	return r
}

// Start begins serving on the configured port.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		logrus.Infof("http server listening on port %d", s.port)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("http server failed: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	logrus.Info("shutting down http server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	logrus.Info("http server stopped")
	return nil
}

type healthResponse struct {
	Status        string            `json:"status"`
	Authenticated bool              `json:"authenticated"`
	Checks        map[string]string `json:"checks,omitempty"`
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Authenticated: s.farm.Status().Authenticated}
	code := http.StatusOK

	for _, c := range s.checks {
		if resp.Checks == nil {
			resp.Checks = make(map[string]string)
		}
		if err := c.Check(r.Context()); err != nil {
			resp.Checks[c.Name()] = err.Error()
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.Name()] = "ok"
	}

	writeJSON(w, code, resp)
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.farm.Status())
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.farm.Refresh(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.farm.Status().Inventory)
}

func (s *HTTPServer) handleWatch(w http.ResponseWriter, r *http.Request) {
	var target gateway.WatchingTarget
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&target); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "invalid JSON body"})
		return
	}
	if target.ChannelID == "" {
		target.ChannelID = target.ID
	}
	if target.ChannelID == "" || target.Login == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "channelId and login are required"})
		return
	}
	if target.ID == "" {
		target.ID = target.ChannelID
	}

	if err := s.farm.Watch(target); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.farm.Status().Watching)
}

func (s *HTTPServer) handleStop(w http.ResponseWriter, r *http.Request) {
	s.farm.StopWatching(true)
	w.WriteHeader(http.StatusNoContent)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, farm.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, errorBody{Code: gateway.CodeAuthInvalid, Message: err.Error()})
	case errors.Is(err, farm.ErrNotStarted):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Code: "not_started", Message: err.Error()})
	default:
		re := gateway.AsRemoteError(err)
		writeJSON(w, http.StatusBadGateway, errorBody{Code: re.Code, Message: re.Message})
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("failed to write response: %v", err)
	}
}
