// Package server runs the HTTP handler with graceful shutdown.
package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/stevemurr/docstore-api/handler"
)

// ShutdownTimeout bounds how long in-flight requests may take to drain.
const ShutdownTimeout = 10 * time.Second

// Server wraps the HTTP server with lifecycle management.
type Server struct {
	addr    string
	handler *handler.Handler
	logger  *zap.SugaredLogger

	server       *http.Server
	shuttingDown atomic.Bool

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// New creates a Server listening on addr. Readiness turns false as soon as
// shutdown begins.
func New(addr string, h *handler.Handler, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		addr:    addr,
		handler: h,
		logger:  logger,
		ready:   make(chan struct{}),
	}
	h.Health().AddReadinessCheck("shutdown", func() error {
		if s.shuttingDown.Load() {
			return errors.New("server is shutting down")
		}
		return nil
	})
	return s
}

// Addr returns the bound address once the server is listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.addr)
	}

	s.mu.Lock()
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()
	close(s.ready)

	s.logger.Infow("Starting HTTP server", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.logger.Errorw("HTTP server failed", "error", err)
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}

	s.shuttingDown.Store(true)
	s.logger.Info("Stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve")
	}
	return nil
}
