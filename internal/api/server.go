package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/mqttconnect/internal/history"
	"github.com/nerrad567/mqttconnect/internal/infrastructure/config"
	"github.com/nerrad567/mqttconnect/internal/infrastructure/logging"
	"github.com/nerrad567/mqttconnect/internal/infrastructure/mqtt"
)

// drainTimeout bounds how long Close waits for open requests.
const drainTimeout = 10 * time.Second

// Deps wires the server to the rest of the process.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Factory *mqtt.Factory
	History history.Repository // optional; attempt routes answer 503 without it
	Version string
}

// Server exposes client and connect-attempt status over HTTP.
// Its methods may be called from any goroutine.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	factory   *mqtt.Factory
	history   history.Repository
	version   string
	startTime time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New validates deps and returns an unstarted server.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Factory == nil {
		return nil, fmt.Errorf("mqtt factory is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		factory:   deps.Factory,
		history:   deps.History,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Handler returns the routed handler without binding a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in a background goroutine.
// Binding happens before Start returns, so a port in use is reported here.
//
// Parameters:
//   - ctx: Context for the bind; the listener outlives it
//
// Returns:
//   - error: If the server is already started or the address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("binding API listener on %s: %w", addr, err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	server := s.server
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server stopped unexpectedly", "error", err)
		}
	}()

	s.logger.Info("api listening",
		"address", listener.Addr().String(),
		"auth", s.cfg.Auth.JWTSecret != "",
	)
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops accepting connections and drains open requests for up to
// drainTimeout. Calling it on an unstarted or closed server is a no-op.
func (s *Server) Close() error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	s.logger.Info("api shutting down")
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
