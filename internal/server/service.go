package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/genricoloni/eddy/internal/config"
	"github.com/genricoloni/eddy/internal/domain"
	"github.com/genricoloni/eddy/internal/frontend"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const readHeaderTimeout = 10 * time.Second

// ErrNotRunning is returned by Stop when no instance is running
var ErrNotRunning = errors.New("server not running")

// State is the lifecycle state of the HTTP server
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	default:
		return "stopped"
	}
}

// Populator builds the frontend cache
type Populator interface {
	Populate(ctx context.Context, baseURL string) (*frontend.Cache, error)
}

// Service owns the single HTTP server instance and its frontend cache.
// Start and Stop are serialized; at most one listener exists at a time.
type Service struct {
	logger *zap.Logger
	store  domain.PlaybackStore
	loader Populator
	art    http.Handler

	lifecycle sync.Mutex

	mu        sync.RWMutex
	state     State
	cfg       config.ServerConfig
	srv       *http.Server
	ln        net.Listener
	serveDone chan struct{}
}

// NewService creates a stopped service
func NewService(logger *zap.Logger, store domain.PlaybackStore, loader Populator, art *ArtHandler) *Service {
	s := &Service{
		logger: logger,
		store:  store,
		loader: loader,
	}
	if art != nil {
		s.art = art
	}
	return s
}

// Start brings up a server for cfg. A running instance is stopped first.
// On any failure the service is left Stopped.
func (s *Service) Start(ctx context.Context, cfg config.ServerConfig) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() == StateRunning {
		s.logger.Info("Restarting server", zap.String("addr", s.Addr()))
		if err := s.stop(ctx); err != nil {
			return fmt.Errorf("failed to stop previous instance: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	s.setState(StateStarting)

	var cache *frontend.Cache
	if cfg.Frontend.Enabled {
		populateCtx := ctx
		if cfg.Frontend.Timeout > 0 {
			var cancel context.CancelFunc
			populateCtx, cancel = context.WithTimeout(ctx, cfg.Frontend.Timeout)
			defer cancel()
		}

		var err error
		cache, err = s.loader.Populate(populateCtx, cfg.Frontend.BaseURL)
		if err != nil {
			s.setState(StateStopped)
			s.logger.Error("Frontend population failed", zap.Error(err))
			return fmt.Errorf("frontend population failed: %w", err)
		}
	}

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		s.setState(StateStopped)
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
	}

	srv := &http.Server{
		Handler:           logMiddleware(s.logger, NewRouter(s.logger, cfg, s.store, cache, s.art)),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          zap.NewStdLog(s.logger),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	s.mu.Lock()
	s.cfg = cfg
	s.srv = srv
	s.ln = ln
	s.serveDone = done
	s.state = StateRunning
	s.mu.Unlock()

	s.logger.Info("Server started",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("secure", cfg.Secure),
		zap.Bool("frontend", cfg.Frontend.Enabled))
	return nil
}

// Stop shuts the running instance down and releases its port.
// It returns ErrNotRunning when nothing is running.
func (s *Service) Stop(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() != StateRunning {
		return ErrNotRunning
	}
	return s.stop(ctx)
}

func (s *Service) stop(ctx context.Context) error {
	s.mu.RLock()
	srv, done, timeout := s.srv, s.serveDone, s.cfg.ShutdownTimeout
	s.mu.RUnlock()

	shutdownCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// In-flight responses past the deadline are dropped
	var err error
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		err = multierr.Append(serr, srv.Close())
	}
	<-done

	s.mu.Lock()
	s.srv = nil
	s.ln = nil
	s.serveDone = nil
	s.state = StateStopped
	s.mu.Unlock()

	s.logger.Info("Server stopped")
	return err
}

// State returns the current lifecycle state
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Addr returns the bound address of the running instance, or "" when stopped
func (s *Service) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Service) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
