package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const ShutdownTimeout = 5 * time.Second

type Server struct {
	addr    string
	handler http.Handler

	mu        sync.Mutex
	server    *http.Server
	listener  net.Listener
	done      chan struct{}
	isRunning bool
}

func New(addr string, handler http.Handler) *Server {
	return &Server{addr: addr, handler: handler}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return errors.New("server is already running")
	}

	ln, err := listen(context.Background(), s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.done = make(chan struct{})
	s.isRunning = true

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}(s.server, s.done)

	log.Info().Str("addr", ln.Addr().String()).Msg("theta panel listening")
	return nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Stop drains in-flight requests for up to ShutdownTimeout, then closes what
// is left. Long-lived preview streams are cut at that point.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return errors.New("server is not running")
	}

	log.Info().Msg("stopping server")
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	err := s.server.Shutdown(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("graceful shutdown incomplete, closing connections")
		err = s.server.Close()
	}
	<-s.done
	s.isRunning = false
	return err
}
