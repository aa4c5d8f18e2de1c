// Package server exposes the runner over HTTP: an NDJSON streaming endpoint,
// a websocket endpoint, thread inspection, health and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/metrics"
	"github.com/hupe1980/agentloop/runner"
)

// Info describes the service on GET /info.
type Info struct {
	Name        string `json:"project_name"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// Options configures a Server.
type Options struct {
	Addr            string
	ShutdownTimeout time.Duration
	Info            Info
	Logger          logging.Logger
	Metrics         *metrics.Metrics
	CheckOrigin     func(r *http.Request) bool
}

// Server is the HTTP front end of a Runner.
type Server struct {
	runner   *runner.Runner
	opts     Options
	logger   logging.Logger
	upgrader websocket.Upgrader
	handler  http.Handler

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates a Server. Routes are registered immediately so Handler can be
// used without Start.
func New(r *runner.Runner, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:            ":8000",
		ShutdownTimeout: 10 * time.Second,
		Info:            Info{Name: "agentloop", Version: "0.1.0"},
		Logger:          logging.NoOpLogger{},
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		runner: r,
		opts:   opts,
		logger: opts.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: opts.CheckOrigin,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /info", s.handleInfo)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /chat/stream", s.handleStream)
	mux.HandleFunc("POST /stream", s.handleStream)
	mux.HandleFunc("GET /chat/ws", s.handleWebSocket)
	mux.HandleFunc("GET /threads/{id}", s.handleThread)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	s.handler = requestLogger(s.logger, mux)

	return s
}

// Handler returns the root handler including request logging.
func (s *Server) Handler() http.Handler { return s.handler }

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.New("server already started")
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server.serve.error", "error", err)
		}
	}()

	s.logger.Info("server.started", "addr", ln.Addr().String())

	return nil
}

// Addr returns the bound listener address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Shutdown stops accepting connections and waits for in-flight requests up to
// the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("server.stopped")
	return nil
}
