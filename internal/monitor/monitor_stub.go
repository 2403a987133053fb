//go:build !linux

package monitor

import (
	"context"
	"errors"

	"github.com/genricoloni/eddy/internal/config"
	"github.com/genricoloni/eddy/internal/domain"
	"go.uber.org/zap"
)

// ErrUnsupported is returned by Start on platforms without a session bus
var ErrUnsupported = errors.New("MPRIS monitoring is only supported on Linux systems")

// MprisMonitor stub for non-Linux platforms
type MprisMonitor struct {
	logger *zap.Logger
	events chan domain.PlaybackUpdate
}

// NewMprisMonitor creates a stub monitor whose Start always fails
func NewMprisMonitor(logger *zap.Logger, _ *config.AppConfig) *MprisMonitor {
	events := make(chan domain.PlaybackUpdate)
	close(events)
	return &MprisMonitor{logger: logger, events: events}
}

// Start returns ErrUnsupported
func (m *MprisMonitor) Start(ctx context.Context) error {
	return ErrUnsupported
}

// Events returns a closed channel since monitoring is not available
func (m *MprisMonitor) Events() <-chan domain.PlaybackUpdate {
	return m.events
}

// Stop is a no-op on non-Linux platforms
func (m *MprisMonitor) Stop(ctx context.Context) error {
	return nil
}
