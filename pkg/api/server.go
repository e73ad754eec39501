/*
 * Copyright 2025 Storegrid, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package api exposes the discovery control surface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/storegrid/fleetwatch/pkg/discovery"
	"github.com/storegrid/fleetwatch/pkg/logger"
	"github.com/storegrid/fleetwatch/pkg/models"
	"github.com/storegrid/fleetwatch/pkg/scan"
	"github.com/storegrid/fleetwatch/pkg/session"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
	maxRequestBody    = 1 << 20
)

// Server serves the scan control API.
type Server struct {
	engine *discovery.Engine
	router *mux.Router
	srv    *http.Server
	logger logger.Logger
}

func NewServer(engine *discovery.Engine, listenAddr string, log logger.Logger) *Server {
	s := &Server{
		engine: engine,
		router: mux.NewRouter(),
		logger: log.WithComponent("api"),
	}

	s.routes()

	s.srv = &http.Server{
		Addr:              listenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

func (s *Server) routes() {
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/discover/{kind}/scan", s.handleStartScan).Methods(http.MethodPost)
	s.router.HandleFunc("/discover/{kind}/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/discover/{kind}/results", s.handleResults).Methods(http.MethodGet)
}

// Start blocks serving HTTP until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.srv.Addr).Msg("API server listening")

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	return s.srv.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	kind := models.DeviceKind(mux.Vars(r)["kind"])

	var req models.ScanRequest

	// An empty body is a scan with all defaults.
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body")

		return
	}

	sess, err := s.engine.StartScan(r.Context(), kind, req)
	if err != nil {
		s.writeScanError(w, err)

		return
	}

	s.writeJSON(w, http.StatusAccepted, sess)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	kind := models.DeviceKind(mux.Vars(r)["kind"])

	sess, err := s.engine.Status(r.Context(), kind)
	if err != nil {
		s.writeScanError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	kind := models.DeviceKind(mux.Vars(r)["kind"])

	results, err := s.engine.Results(r.Context(), kind)
	if err != nil {
		s.writeScanError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, results)
}

// writeScanError maps engine errors onto the API contract: a conflicting
// scan is 409, bad input is 400, everything else is 500.
func (s *Server) writeScanError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrScanInProgress):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, discovery.ErrUnknownKind),
		errors.Is(err, scan.ErrSubnetLimitExceeded),
		errors.Is(err, scan.ErrNoValidHosts),
		errors.Is(err, scan.ErrNoValidPorts):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("request failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}
