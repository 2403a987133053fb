//go:build linux

package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/genricoloni/eddy/internal/config"
	"github.com/genricoloni/eddy/internal/domain"
	"github.com/godbus/dbus/v5"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

const (
	mprisPrefix     = "org.mpris.MediaPlayer2."
	mprisPath       = "/org/mpris/MediaPlayer2"
	playerInterface = "org.mpris.MediaPlayer2.Player"

	propMetadata = playerInterface + ".Metadata"
	propStatus   = playerInterface + ".PlaybackStatus"
	propPosition = playerInterface + ".Position"

	signalPropertiesChanged = "org.freedesktop.DBus.Properties.PropertiesChanged"
	signalSeeked            = playerInterface + ".Seeked"
	signalNameOwnerChanged  = "org.freedesktop.DBus.NameOwnerChanged"

	eventBuffer = 16
)

// ErrMonitorClosed is returned when Start is called on a monitor that was stopped
var ErrMonitorClosed = errors.New("monitor already stopped")

// MprisMonitor turns MPRIS D-Bus signals into partial playback updates
type MprisMonitor struct {
	logger *zap.Logger
	cfg    config.MonitorConfig
	dial   func() (DBusClient, error)

	events chan domain.PlaybackUpdate
	done   chan struct{} // closed by Stop, unblocks pending sends
	wg     sync.WaitGroup

	mu          sync.RWMutex
	running     bool
	stopped     bool
	cancel      context.CancelFunc
	conn        DBusClient
	playerNames map[string]string // unique bus name (:1.45) -> well-known name
	lastTrack   map[string]string // bus name -> key of the last track seen
	active      string            // bus name of the player that last reported Playing
}

// NewMprisMonitor creates a new MPRIS monitor instance
func NewMprisMonitor(logger *zap.Logger, cfg *config.AppConfig) *MprisMonitor {
	return &MprisMonitor{
		logger:      logger,
		cfg:         cfg.Monitor,
		dial:        NewStdDBusClient,
		events:      make(chan domain.PlaybackUpdate, eventBuffer),
		done:        make(chan struct{}),
		playerNames: make(map[string]string),
		lastTrack:   make(map[string]string),
	}
}

// Start connects to the session bus and emits updates until ctx is cancelled or Stop is called
func (m *MprisMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrMonitorClosed
	}
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true

	monitorCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	conn, err := m.dial()
	if err != nil {
		m.mu.Lock()
		m.running = false
		m.cancel = nil
		m.mu.Unlock()
		cancel()
		return fmt.Errorf("session bus connection failed: %w", err)
	}

	// Stopped while connecting
	if err := monitorCtx.Err(); err != nil {
		if cerr := conn.Close(); cerr != nil {
			m.logger.Warn("Failed to close D-Bus connection", zap.Error(cerr))
		}
		return err
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		if cerr := conn.Close(); cerr != nil {
			m.logger.Warn("Failed to close D-Bus connection", zap.Error(cerr))
		}
		return ErrMonitorClosed
	}
	m.conn = conn
	m.mu.Unlock()

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(mprisPath),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		cancel()
		return fmt.Errorf("failed to add match signal: %w", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(mprisPath),
		dbus.WithMatchInterface(playerInterface),
		dbus.WithMatchMember("Seeked"),
	); err != nil {
		m.logger.Warn("Failed to add Seeked match signal", zap.Error(err))
	}

	// Non-fatal, continue without dynamic tracking
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		m.logger.Warn("Failed to add NameOwnerChanged match signal", zap.Error(err))
	}

	signals := make(chan *dbus.Signal, eventBuffer)
	conn.Signal(signals)

	m.spawn(func() { m.monitorSignals(monitorCtx, signals) })
	if m.cfg.PollInterval > 0 {
		m.spawn(func() { m.pollPosition(monitorCtx, m.cfg.PollInterval) })
	}
	m.spawn(func() {
		if err := m.detectExistingPlayers(); err != nil {
			m.logger.Warn("Failed to detect existing players", zap.Error(err))
		}
	})

	m.logger.Info("MPRIS monitor started", zap.String("filter", m.cfg.Player))

	<-monitorCtx.Done()

	m.logger.Info("MPRIS monitor stopped")
	return monitorCtx.Err()
}

// spawn runs f on a producer goroutine tracked by Stop.
// Nothing is started once Stop has begun.
func (m *MprisMonitor) spawn(f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		f()
	}()
}

// Stop cancels monitoring, waits for producers and closes the events channel.
// A stopped monitor cannot be started again.
func (m *MprisMonitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	wasRunning := m.running
	m.running = false
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()

	close(m.done)

	waited := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-ctx.Done():
		return fmt.Errorf("waiting for monitor goroutines: %w", ctx.Err())
	}

	close(m.events)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			return fmt.Errorf("failed to close D-Bus connection: %w", err)
		}
		m.conn = nil
	}

	if wasRunning {
		m.logger.Info("MPRIS monitor shutdown complete")
	}
	return nil
}

// Events returns a read-only channel of partial playback updates
func (m *MprisMonitor) Events() <-chan domain.PlaybackUpdate {
	return m.events
}

// emit blocks until the update is consumed or the monitor stops
func (m *MprisMonitor) emit(u domain.PlaybackUpdate) bool {
	if u.IsEmpty() {
		return false
	}
	select {
	case m.events <- u:
		return true
	case <-m.done:
		return false
	}
}

// accepts reports whether a well-known player name passes the configured filter
func (m *MprisMonitor) accepts(name string) bool {
	return m.cfg.Player == "" || strings.Contains(name, m.cfg.Player)
}

// detectExistingPlayers queries D-Bus for currently running MPRIS players
func (m *MprisMonitor) detectExistingPlayers() error {
	names, err := m.conn.ListNames()
	if err != nil {
		return fmt.Errorf("failed to list bus names: %w", err)
	}

	playerCount := 0
	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) || !m.accepts(name) {
			continue
		}
		playerCount++
		m.logger.Info("Detected MPRIS player", zap.String("name", name))

		sender := name
		if uniqueName, err := m.conn.GetNameOwner(name); err == nil {
			m.mu.Lock()
			m.playerNames[uniqueName] = name
			m.mu.Unlock()
			sender = uniqueName
		}

		if err := m.fetchPlayerState(name, sender); err != nil {
			m.logger.Warn("Failed to fetch initial state",
				zap.String("player", name),
				zap.Error(err))
		}
	}

	m.logger.Info("Player detection complete", zap.Int("count", playerCount))
	return nil
}

// fetchPlayerState reads track, status and position of a player and emits them as one update.
// sender is the bus name later signals from this player will carry.
func (m *MprisMonitor) fetchPlayerState(playerName, sender string) error {
	variant, err := m.conn.GetProperty(playerName, mprisPath, propMetadata)
	if err != nil {
		return fmt.Errorf("failed to get metadata: %w", err)
	}

	// Some players return nil or unexpected types when idle
	metadata, ok := variant.Value().(map[string]dbus.Variant)
	if !ok {
		m.logger.Debug("Metadata variant is not a map, skipping", zap.String("player", playerName))
		return nil
	}

	statusVariant, err := m.conn.GetProperty(playerName, mprisPath, propStatus)
	if err != nil {
		return fmt.Errorf("failed to get playback status: %w", err)
	}
	status, ok := statusVariant.Value().(string)
	if !ok {
		return fmt.Errorf("invalid playback status format")
	}

	track := m.parseTrack(metadata)
	update := domain.PlaybackUpdate{
		Track:  mo.Some(track),
		Paused: mo.Some(domain.PlayerStatus(status) != domain.StatusPlaying),
	}
	if pos, ok := m.readPosition(playerName); ok {
		update.Position = mo.Some(pos)
	} else {
		update.Position = mo.Some(0.0)
	}

	m.mu.Lock()
	m.lastTrack[sender] = trackKey(track)
	if domain.PlayerStatus(status) == domain.StatusPlaying {
		m.active = sender
	}
	m.mu.Unlock()

	if m.emit(update) {
		m.logger.Debug("Emitted initial state",
			zap.String("player", playerName),
			zap.String("title", track.Title),
			zap.String("status", status))
	}
	return nil
}

// readPosition returns the current position in seconds of a player
func (m *MprisMonitor) readPosition(busName string) (float64, bool) {
	variant, err := m.conn.GetProperty(busName, mprisPath, propPosition)
	if err != nil {
		m.logger.Debug("Failed to read position", zap.String("player", busName), zap.Error(err))
		return 0, false
	}
	return microseconds(variant.Value())
}

// monitorSignals listens for D-Bus signals and processes them
func (m *MprisMonitor) monitorSignals(ctx context.Context, signals <-chan *dbus.Signal) {
	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("Signal monitoring goroutine stopped")
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			if sig == nil {
				continue
			}
			switch sig.Name {
			case signalNameOwnerChanged:
				m.handleNameOwnerChanged(sig)
			case signalSeeked:
				m.handleSeeked(sig)
			default:
				m.handleSignal(sig)
			}
		}
	}
}

// pollPosition re-anchors the position of the active player while it plays
func (m *MprisMonitor) pollPosition(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.RLock()
			active := m.active
			m.mu.RUnlock()
			if active == "" {
				continue
			}
			if pos, ok := m.readPosition(active); ok {
				m.emit(domain.PlaybackUpdate{Position: mo.Some(pos)})
			}
		}
	}
}

// handleNameOwnerChanged processes NameOwnerChanged signals to track player lifecycle
func (m *MprisMonitor) handleNameOwnerChanged(sig *dbus.Signal) {
	if len(sig.Body) < 3 {
		return
	}

	name, ok := sig.Body[0].(string)
	if !ok || !strings.HasPrefix(name, mprisPrefix) || !m.accepts(name) {
		return
	}

	oldOwner, _ := sig.Body[1].(string)
	newOwner, _ := sig.Body[2].(string)

	switch {
	case newOwner != "" && oldOwner == "":
		m.mu.Lock()
		m.playerNames[newOwner] = name
		m.mu.Unlock()

		m.logger.Info("New MPRIS player detected",
			zap.String("player", name),
			zap.String("unique", newOwner))

		if err := m.fetchPlayerState(name, newOwner); err != nil {
			m.logger.Warn("Failed to fetch state from new player",
				zap.String("player", name),
				zap.Error(err))
		}
	case newOwner == "" && oldOwner != "":
		m.mu.Lock()
		delete(m.playerNames, oldOwner)
		delete(m.lastTrack, oldOwner)
		if m.active == oldOwner {
			m.active = ""
		}
		m.mu.Unlock()

		m.logger.Info("MPRIS player removed",
			zap.String("player", name),
			zap.String("unique", oldOwner))
	case newOwner != "" && oldOwner != "":
		m.mu.Lock()
		delete(m.playerNames, oldOwner)
		m.playerNames[newOwner] = name
		if m.active == oldOwner {
			m.active = newOwner
		}
		m.mu.Unlock()

		m.logger.Debug("MPRIS player ownership changed",
			zap.String("player", name),
			zap.String("oldUnique", oldOwner),
			zap.String("newUnique", newOwner))
	}
}

// handleSeeked turns a Seeked(x: position in µs) signal into a position update
func (m *MprisMonitor) handleSeeked(sig *dbus.Signal) {
	if len(sig.Body) < 1 || !m.acceptsSender(sig.Sender) {
		return
	}
	pos, ok := microseconds(sig.Body[0])
	if !ok {
		m.logger.Warn("Invalid Seeked position format, ignoring")
		return
	}
	m.emit(domain.PlaybackUpdate{Position: mo.Some(pos)})
}

// handleSignal processes a PropertiesChanged signal.
// Body is (interface name, changed properties, invalidated properties).
func (m *MprisMonitor) handleSignal(sig *dbus.Signal) {
	if sig.Name != signalPropertiesChanged || len(sig.Body) < 2 {
		return
	}

	interfaceName, ok := sig.Body[0].(string)
	if !ok || interfaceName != playerInterface {
		return
	}

	changedProps, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok || !m.acceptsSender(sig.Sender) {
		return
	}

	playerName := m.getPlayerName(sig.Sender)

	var update domain.PlaybackUpdate

	if metadataVariant, ok := changedProps["Metadata"]; ok {
		metadata, ok := metadataVariant.Value().(map[string]dbus.Variant)
		if !ok {
			m.logger.Warn("Invalid metadata format in signal, ignoring")
			return
		}
		track := m.parseTrack(metadata)
		update.Track = mo.Some(track)

		key := trackKey(track)
		m.mu.Lock()
		changed := m.lastTrack[sig.Sender] != key
		m.lastTrack[sig.Sender] = key
		m.mu.Unlock()

		// A new track starts from the beginning
		if changed {
			update.Position = mo.Some(0.0)
		}
	}

	if statusVariant, ok := changedProps["PlaybackStatus"]; ok {
		status, ok := statusVariant.Value().(string)
		if !ok {
			m.logger.Warn("Invalid playback status format in signal, ignoring")
			return
		}
		playing := domain.PlayerStatus(status) == domain.StatusPlaying
		update.Paused = mo.Some(!playing)

		m.mu.Lock()
		if playing {
			m.active = sig.Sender
		} else if m.active == sig.Sender {
			m.active = ""
		}
		m.mu.Unlock()

		if pos, ok := m.readPosition(sig.Sender); ok {
			update.Position = mo.Some(pos)
		}
	}

	if update.IsEmpty() {
		return
	}

	if m.emit(update) {
		track, _ := update.Track.Get()
		paused, _ := update.Paused.Get()
		m.logger.Info("Playback change detected",
			zap.String("player", playerName),
			zap.Bool("track", update.Track.IsPresent()),
			zap.String("title", track.Title),
			zap.Bool("paused", paused))
	}
}

// acceptsSender applies the player filter to a signal sender
func (m *MprisMonitor) acceptsSender(sender string) bool {
	if m.cfg.Player == "" {
		return true
	}
	name := m.getPlayerName(sender)
	return strings.HasPrefix(name, mprisPrefix) && m.accepts(name)
}

// getPlayerName returns the well-known player name for a unique bus name.
// Falls back to the unique name if no mapping exists.
func (m *MprisMonitor) getPlayerName(uniqueName string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if wellKnown, ok := m.playerNames[uniqueName]; ok {
		return wellKnown
	}
	return uniqueName
}
