//go:build linux

package monitor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/genricoloni/eddy/internal/monitor/mocks"
	"github.com/godbus/dbus/v5"
	"go.uber.org/mock/gomock"
)

// TestFetchPlayerState covers metadata fetching for a single player:
// success, D-Bus errors and invalid data types.
func TestFetchPlayerState(t *testing.T) {
	playerName := "org.mpris.MediaPlayer2.spotify"

	tests := []struct {
		name          string
		setupMock     func(*mocks.MockDBusClient)
		expectError   bool
		expectEvent   bool
		expectedTitle string
		expectPaused  bool
		expectedPos   float64
	}{
		{
			name: "Success - Valid Metadata",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().GetProperty(playerName, mprisPath, propMetadata).
					Return(dbus.MakeVariant(map[string]dbus.Variant{
						"xesam:title":  dbus.MakeVariant("Stairway to Heaven"),
						"xesam:artist": dbus.MakeVariant([]string{"Led Zeppelin"}),
					}), nil)
				m.EXPECT().GetProperty(playerName, mprisPath, propStatus).
					Return(dbus.MakeVariant("Playing"), nil)
				m.EXPECT().GetProperty(playerName, mprisPath, propPosition).
					Return(dbus.MakeVariant(int64(12_000_000)), nil)
			},
			expectEvent:   true,
			expectedTitle: "Stairway to Heaven",
			expectedPos:   12,
		},
		{
			name: "Success - Position Unavailable Defaults To Zero",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().GetProperty(playerName, mprisPath, propMetadata).
					Return(dbus.MakeVariant(map[string]dbus.Variant{"xesam:title": dbus.MakeVariant("Song")}), nil)
				m.EXPECT().GetProperty(playerName, mprisPath, propStatus).
					Return(dbus.MakeVariant("Paused"), nil)
				m.EXPECT().GetProperty(playerName, mprisPath, propPosition).
					Return(dbus.Variant{}, fmt.Errorf("not supported"))
			},
			expectEvent:   true,
			expectedTitle: "Song",
			expectPaused:  true,
		},
		{
			name: "DBus Error - Connection Fail",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().GetProperty(playerName, mprisPath, propMetadata).
					Return(dbus.MakeVariant(""), fmt.Errorf("connection timeout"))
			},
			expectError: true,
		},
		{
			name: "DBus Error - Status Unavailable",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().GetProperty(playerName, mprisPath, propMetadata).
					Return(dbus.MakeVariant(map[string]dbus.Variant{}), nil)
				m.EXPECT().GetProperty(playerName, mprisPath, propStatus).
					Return(dbus.Variant{}, fmt.Errorf("connection timeout"))
			},
			expectError: true,
		},
		{
			name: "Invalid Data - Metadata is Int not Map",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().GetProperty(playerName, mprisPath, propMetadata).
					Return(dbus.MakeVariant(12345), nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockClient := mocks.NewMockDBusClient(ctrl)
			tt.setupMock(mockClient)

			mon := newTestMonitor("", mockClient)

			err := mon.fetchPlayerState(playerName, ":1.100")

			if tt.expectError && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}

			select {
			case event := <-mon.Events():
				if !tt.expectEvent {
					t.Fatalf("Unexpected event emitted: %+v", event)
				}
				if title := event.Track.MustGet().Title; title != tt.expectedTitle {
					t.Errorf("Title mismatch: want %s, got %s", tt.expectedTitle, title)
				}
				if paused := event.Paused.MustGet(); paused != tt.expectPaused {
					t.Errorf("Paused mismatch: want %v, got %v", tt.expectPaused, paused)
				}
				if pos := event.Position.MustGet(); pos != tt.expectedPos {
					t.Errorf("Position mismatch: want %v, got %v", tt.expectedPos, pos)
				}
			default:
				if tt.expectEvent {
					t.Error("Expected event was not emitted")
				}
			}
		})
	}
}

// TestDetectExistingPlayers verifies the initial scan of DBus names.
func TestDetectExistingPlayers(t *testing.T) {
	tests := []struct {
		name             string
		filter           string
		setupMock        func(*mocks.MockDBusClient)
		expectError      bool
		expectedPlayers  int
		expectedMappings map[string]string
	}{
		{
			name: "Success - Detects Spotify and VLC",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().ListNames().Return([]string{
					"org.freedesktop.DBus",
					"org.mpris.MediaPlayer2.spotify",
					"org.mpris.MediaPlayer2.vlc",
					"com.example.OtherApp",
				}, nil)

				m.EXPECT().GetNameOwner("org.mpris.MediaPlayer2.spotify").Return(":1.100", nil)
				m.EXPECT().GetNameOwner("org.mpris.MediaPlayer2.vlc").Return(":1.200", nil)

				m.EXPECT().GetProperty("org.mpris.MediaPlayer2.spotify", mprisPath, propMetadata).
					Return(dbus.MakeVariant(map[string]dbus.Variant{"xesam:title": dbus.MakeVariant("Song A")}), nil)
				m.EXPECT().GetProperty("org.mpris.MediaPlayer2.spotify", mprisPath, propStatus).
					Return(dbus.MakeVariant("Playing"), nil)
				m.EXPECT().GetProperty("org.mpris.MediaPlayer2.spotify", mprisPath, propPosition).
					Return(dbus.MakeVariant(int64(0)), nil)

				m.EXPECT().GetProperty("org.mpris.MediaPlayer2.vlc", mprisPath, propMetadata).
					Return(dbus.MakeVariant(map[string]dbus.Variant{"xesam:title": dbus.MakeVariant("Video B")}), nil)
				m.EXPECT().GetProperty("org.mpris.MediaPlayer2.vlc", mprisPath, propStatus).
					Return(dbus.MakeVariant("Paused"), nil)
				m.EXPECT().GetProperty("org.mpris.MediaPlayer2.vlc", mprisPath, propPosition).
					Return(dbus.MakeVariant(int64(5_000_000)), nil)
			},
			expectedPlayers: 2,
			expectedMappings: map[string]string{
				":1.100": "org.mpris.MediaPlayer2.spotify",
				":1.200": "org.mpris.MediaPlayer2.vlc",
			},
		},
		{
			name:   "Success - Filter Keeps Matching Player Only",
			filter: "tidal",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().ListNames().Return([]string{
					"org.mpris.MediaPlayer2.spotify",
					"org.mpris.MediaPlayer2.tidal-hifi",
				}, nil)

				m.EXPECT().GetNameOwner("org.mpris.MediaPlayer2.tidal-hifi").Return(":1.7", nil)
				m.EXPECT().GetProperty("org.mpris.MediaPlayer2.tidal-hifi", mprisPath, propMetadata).
					Return(dbus.MakeVariant(map[string]dbus.Variant{"xesam:title": dbus.MakeVariant("Song C")}), nil)
				m.EXPECT().GetProperty("org.mpris.MediaPlayer2.tidal-hifi", mprisPath, propStatus).
					Return(dbus.MakeVariant("Playing"), nil)
				m.EXPECT().GetProperty("org.mpris.MediaPlayer2.tidal-hifi", mprisPath, propPosition).
					Return(dbus.MakeVariant(int64(0)), nil)
			},
			expectedPlayers:  1,
			expectedMappings: map[string]string{":1.7": "org.mpris.MediaPlayer2.tidal-hifi"},
		},
		{
			name: "Failure - ListNames fails",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().ListNames().Return(nil, fmt.Errorf("bus error"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockClient := mocks.NewMockDBusClient(ctrl)
			tt.setupMock(mockClient)

			mon := newTestMonitor(tt.filter, mockClient)

			err := mon.detectExistingPlayers()

			if tt.expectError && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}

			if len(mon.playerNames) != len(tt.expectedMappings) {
				t.Errorf("Mapping count mismatch: want %d, got %d", len(tt.expectedMappings), len(mon.playerNames))
			}
			for k, v := range tt.expectedMappings {
				if mon.playerNames[k] != v {
					t.Errorf("Mapping mismatch for %s: want %s, got %s", k, v, mon.playerNames[k])
				}
			}

			eventsFound := 0
			for len(mon.Events()) > 0 {
				<-mon.Events()
				eventsFound++
			}
			if eventsFound != tt.expectedPlayers {
				t.Errorf("Expected %d events, got %d", tt.expectedPlayers, eventsFound)
			}
		})
	}
}

// TestMprisMonitor_Lifecycle runs Start against a mocked bus, delivers a signal and stops.
func TestMprisMonitor_Lifecycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mocks.NewMockDBusClient(ctrl)
	registered := make(chan chan<- *dbus.Signal, 1)

	mockClient.EXPECT().AddMatchSignal(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	mockClient.EXPECT().AddMatchSignal(gomock.Any(), gomock.Any()).Return(nil)
	mockClient.EXPECT().Signal(gomock.Any()).Do(func(ch chan<- *dbus.Signal) { registered <- ch })
	mockClient.EXPECT().ListNames().Return([]string{}, nil)
	mockClient.EXPECT().Close().Return(nil)

	mon := newTestMonitor("", nil)
	mon.running = false
	mon.dial = func() (DBusClient, error) { return mockClient, nil }

	started := make(chan error, 1)
	go func() { started <- mon.Start(context.Background()) }()

	var signals chan<- *dbus.Signal
	select {
	case signals = <-registered:
	case <-time.After(time.Second):
		t.Fatal("monitor never registered for signals")
	}

	signals <- &dbus.Signal{Name: signalSeeked, Sender: ":1.8", Body: []interface{}{int64(3_000_000)}}
	if pos := receive(t, mon).Position.MustGet(); pos != 3 {
		t.Errorf("expected position 3, got %v", pos)
	}

	if err := mon.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}

	select {
	case err := <-started:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled from Start, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}

	if _, ok := <-mon.Events(); ok {
		t.Error("events channel must be closed after Stop")
	}

	if err := mon.Start(context.Background()); !errors.Is(err, ErrMonitorClosed) {
		t.Errorf("expected ErrMonitorClosed on restart, got %v", err)
	}
	// Stop is idempotent
	if err := mon.Stop(context.Background()); err != nil {
		t.Errorf("second stop: %v", err)
	}
}

func TestMprisMonitor_StartDialFailure(t *testing.T) {
	mon := newTestMonitor("", nil)
	mon.running = false
	mon.dial = func() (DBusClient, error) { return nil, fmt.Errorf("no session bus") }

	err := mon.Start(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if mon.running {
		t.Error("a failed start must not leave the monitor running")
	}
}
