/*
 * Copyright (c) 2021. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package metrics exposes a campaign's coverage counters and run
// throughput over HTTP, both as Prometheus metrics and as a small JSON
// status document for a human or dashboard to poll.
package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/containerd/log"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nydus-tracefuzz/tracefuzz/pkg/coverage"
	"github.com/nydus-tracefuzz/tracefuzz/pkg/metrics/registry"
)

const (
	endpointPromMetrics = "/v1/metrics"
	endpointStatus      = "/v1/status"
)

// ServerOpt configures a Server at construction time.
type ServerOpt func(*Server) error

// Server serves a campaign's live status over HTTP: Prometheus metrics at
// /v1/metrics and a JSON summary at /v1/status.
type Server struct {
	addr      string
	counters  *coverage.Counters
	runs      func() uint64
	startedAt time.Time
	srv       *http.Server
}

// WithListenAddr sets the TCP address the server listens on, e.g. ":9469".
func WithListenAddr(addr string) ServerOpt {
	return func(s *Server) error {
		if addr == "" {
			return errors.New("metrics listen address must not be empty")
		}
		s.addr = addr
		return nil
	}
}

// WithCounters attaches the campaign's live coverage counters.
func WithCounters(c *coverage.Counters) ServerOpt {
	return func(s *Server) error {
		if c == nil {
			return errors.New("coverage counters must not be nil")
		}
		s.counters = c
		return nil
	}
}

// WithRunsCounter supplies a callback returning the number of runs
// completed so far, for the status document.
func WithRunsCounter(runs func() uint64) ServerOpt {
	return func(s *Server) error {
		s.runs = runs
		return nil
	}
}

// status is the JSON body served at /v1/status.
type status struct {
	Hit           int     `json:"hit"`
	TotalOriginal int     `json:"total_original"`
	Percent       float64 `json:"percent"`
	Runs          uint64  `json:"runs"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// NewServer builds a Server but does not start listening; call Serve to do
// that.
func NewServer(opts ...ServerOpt) (*Server, error) {
	s := &Server{startedAt: time.Now(), runs: func() uint64 { return 0 }}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}
	if s.addr == "" {
		return nil, errors.New("metrics server: WithListenAddr is required")
	}
	if s.counters == nil {
		return nil, errors.New("metrics server: WithCounters is required")
	}

	router := mux.NewRouter()
	router.Handle(endpointPromMetrics, promhttp.HandlerFor(registry.Registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
	router.HandleFunc(endpointStatus, s.handleStatus)

	s.srv = &http.Server{Addr: s.addr, Handler: router}
	return s, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	hit, total, percent := s.counters.Snapshot()
	doc := status{
		Hit:           hit,
		TotalOriginal: total,
		Percent:       percent,
		Runs:          s.runs(),
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Serve starts the HTTP server and blocks until ctx is canceled, at which
// point it shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.G(ctx).Infof("Start metrics HTTP server on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- errors.Wrapf(err, "serve metrics on %s", s.addr)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Wrap(s.srv.Shutdown(shutdownCtx), "shut down metrics server")
	case err := <-errCh:
		return err
	}
}
