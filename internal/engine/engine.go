package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/genricoloni/eddy/internal/config"
	"github.com/genricoloni/eddy/internal/domain"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Engine feeds playback updates from the event source into the state store.
// Updates are applied one at a time, in arrival order.
type Engine struct {
	logger  *zap.Logger
	cfg     config.MonitorConfig
	monitor domain.Monitor
	store   domain.PlaybackStore

	cancel context.CancelFunc
	loop   sync.WaitGroup
}

// NewEngine creates a new engine
func NewEngine(
	logger *zap.Logger,
	cfg *config.AppConfig,
	mon domain.Monitor,
	store domain.PlaybackStore,
) *Engine {
	return &Engine{
		logger:  logger,
		cfg:     cfg.Monitor,
		monitor: mon,
		store:   store,
	}
}

// Start launches the monitor and the event loop in goroutines.
// It returns immediately (non-blocking). The start context only bounds startup,
// so both goroutines run on a context owned by the engine.
func (e *Engine) Start(_ context.Context) error {
	if !e.cfg.Enabled {
		e.logger.Info("Playback monitor disabled, state stays at defaults")
		return nil
	}

	e.logger.Info("Engine starting...")

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	// A monitor that cannot start leaves the state at its defaults; HTTP keeps serving
	go func() {
		if err := e.monitor.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Warn("Playback monitor unavailable", zap.Error(err))
		}
	}()

	e.loop.Add(1)
	go e.runLoop(runCtx)
	return nil
}

// runLoop applies every update to the store until the monitor closes its channel
// or the engine stops
func (e *Engine) runLoop(ctx context.Context) {
	defer e.loop.Done()

	events := e.monitor.Events()
	for {
		select {
		case <-ctx.Done():
			e.logger.Debug("Engine loop stopped")
			return

		case update, ok := <-events:
			if !ok {
				e.logger.Info("Monitor events channel closed")
				return
			}
			e.apply(update)
		}
	}
}

func (e *Engine) apply(update domain.PlaybackUpdate) {
	if update.IsEmpty() {
		return
	}
	e.store.Apply(update)

	if track, ok := update.Track.Get(); ok {
		e.logger.Info("Now playing",
			zap.String("track", track.Title),
			zap.String("id", track.ID))
	}
	if paused, ok := update.Paused.Get(); ok {
		e.logger.Debug("Playback state", zap.Bool("paused", paused))
	}
}

// Stop stops the event loop and the monitor
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.logger.Info("Engine stopping...")

	e.cancel()
	err := e.monitor.Stop(ctx)

	done := make(chan struct{})
	go func() {
		e.loop.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = multierr.Append(err, ctx.Err())
	}

	e.cancel = nil
	return err
}
