// Package server exposes the recorder job manager over the JSON-over-HTTP
// API consumed by the polling web client. All endpoints live under /api/;
// TLS termination and static assets belong to the reverse proxy in front.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kiwatt/recorderd/am"
	"github.com/kiwatt/recorderd/errors"
	"github.com/kiwatt/recorderd/recorder"
)

// Server wires the job store and scheduler to the HTTP API
type Server struct {
	cfg       *am.Config
	store     *recorder.Store
	scheduler *recorder.Scheduler
	logger    *zap.SugaredLogger

	httpServer *http.Server
}

// New creates the API server around an already-constructed store and
// scheduler; Run starts listening
func New(cfg *am.Config, store *recorder.Store, scheduler *recorder.Scheduler, logger *zap.SugaredLogger) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		scheduler: scheduler,
		logger:    logger,
	}

	mux := http.NewServeMux()
	s.setupHTTPRoutes(mux)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Run starts the scheduler and serves HTTP until the listener fails or
// Shutdown is called
func (s *Server) Run() error {
	s.scheduler.Start()
	s.logger.Infow("Recorder API listening", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "HTTP server failed")
	}
	return nil
}

// Shutdown drains HTTP, stops the scheduler, and terminates every live
// capture process
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("Shutting down")

	err := s.httpServer.Shutdown(ctx)
	s.scheduler.Shutdown(ctx)

	if err != nil {
		return errors.Wrap(err, "HTTP shutdown failed")
	}
	return nil
}
