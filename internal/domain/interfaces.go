package domain

import (
	"context"
	"time"
)

// Monitor defines the interface for the playback event source
// Implementations should handle D-Bus/MPRIS communication
type Monitor interface {
	// Start begins monitoring for media events
	// It should block until context is cancelled or an error occurs
	Start(ctx context.Context) error

	// Stop gracefully stops the monitor
	Stop(ctx context.Context) error

	// Events returns a read-only channel that emits partial playback updates
	Events() <-chan PlaybackUpdate
}

// PlaybackStore holds the single current playback snapshot
type PlaybackStore interface {
	// Apply merges a partial update into the snapshot
	Apply(update PlaybackUpdate)

	// Snapshot returns a copy of the current snapshot and whether any update was applied yet
	Snapshot() (Snapshot, bool)

	// NowPlaying returns the snapshot with its position extrapolated to now
	NowPlaying(now time.Time) NowPlaying
}

// ImageProcessor defines the interface for in-memory image processing
// This is OS-agnostic and works purely with byte streams
type ImageProcessor interface {
	// Process renders image data as a thumbnail according to opts
	// Returns the processed JPEG bytes or an error
	Process(ctx context.Context, imageData []byte, opts ArtOptions) ([]byte, error)
}

// Fetcher defines the interface for retrieving remote resources
//
//go:generate mockgen -destination=mocks/fetcher_mock.go -package=mocks github.com/genricoloni/eddy/internal/domain Fetcher
type Fetcher interface {
	// Fetch downloads the body of url regardless of its content type
	Fetch(ctx context.Context, url string) ([]byte, error)

	// FetchImage downloads image data, rejecting non-image responses
	FetchImage(ctx context.Context, url string) ([]byte, error)
}
