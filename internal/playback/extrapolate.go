package playback

import (
	"time"

	"github.com/genricoloni/eddy/internal/domain"
)

// Extrapolate estimates the playhead of snap at now.
// A paused snapshot reports its stored position verbatim; a playing one adds the
// wall-clock time elapsed since LastUpdate. snap is taken by value so nothing
// computed here can leak back into the store.
func Extrapolate(snap domain.Snapshot, now time.Time) domain.NowPlaying {
	np := domain.NowPlaying{
		Item:              snap.Track,
		Position:          snap.Position,
		Duration:          snap.Duration,
		AlbumArt:          snap.AlbumArt,
		ArtistArt:         snap.ArtistArt,
		Paused:            snap.Paused,
		ServerCurrentTime: now.UnixMilli(),
	}

	if snap.LastUpdate.IsZero() {
		return np
	}

	lastUpdate := snap.LastUpdate.UnixMilli()
	np.ServerLastUpdate = &lastUpdate

	if snap.Paused {
		return np
	}

	// A clock step backwards must not move the playhead backwards
	if elapsed := now.Sub(snap.LastUpdate).Seconds(); elapsed > 0 {
		np.Offset = elapsed
		np.Position = snap.Position + elapsed
	}
	return np
}
