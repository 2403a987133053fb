package domain

import (
	"time"

	"github.com/samber/mo"
)

// PlayerStatus represents the playback status reported by a media player
type PlayerStatus string

const (
	// StatusPlaying indicates the media is currently playing
	StatusPlaying PlayerStatus = "Playing"
	// StatusPaused indicates the media is paused
	StatusPaused PlayerStatus = "Paused"
	// StatusStopped indicates the media is stopped
	StatusStopped PlayerStatus = "Stopped"
)

// Album describes the album a track belongs to
type Album struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
	// Cover is the art identifier used to build the album art URL
	Cover string `json:"cover,omitempty"`
}

// Artist describes a track artist
type Artist struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	// Picture is the art identifier used to build the artist art URL
	Picture string `json:"picture,omitempty"`
}

// Track is the media item currently loaded in the player
type Track struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title"`
	// Duration is the track length in seconds, 0 when unknown
	Duration float64  `json:"duration,omitempty"`
	URL      string   `json:"url,omitempty"`
	ArtURL   string   `json:"artUrl,omitempty"`
	Album    *Album   `json:"album,omitempty"`
	Artist   *Artist  `json:"artist,omitempty"`
	Artists  []Artist `json:"artists,omitempty"`
}

// PlaybackUpdate is a partial update delivered by the event source.
// A field is applied only when it is present, regardless of its value.
type PlaybackUpdate struct {
	Track    mo.Option[Track]
	Position mo.Option[float64]
	Paused   mo.Option[bool]
}

// IsEmpty reports whether the update carries no fields at all
func (u PlaybackUpdate) IsEmpty() bool {
	return !u.Track.IsPresent() && !u.Position.IsPresent() && !u.Paused.IsPresent()
}

// Snapshot is the process-wide record of what is playing.
// Position is only accurate as of LastUpdate.
type Snapshot struct {
	Track      *Track
	Position   float64
	Duration   *float64
	AlbumArt   *string
	ArtistArt  *string
	Paused     bool
	LastUpdate time.Time
}

// NowPlaying is the response body of the now-playing endpoint
type NowPlaying struct {
	Item      *Track   `json:"item"`
	Position  float64  `json:"position"`
	Duration  *float64 `json:"duration"`
	AlbumArt  *string  `json:"albumArt"`
	ArtistArt *string  `json:"artistArt"`
	Paused    bool     `json:"paused"`

	// Diagnostics for client-side debugging; never written back to the store
	Offset            float64 `json:"offset"`
	ServerCurrentTime int64   `json:"serverCurrentTime"`
	ServerLastUpdate  *int64  `json:"serverLastUpdate"`
}

// ArtKind selects which art URL of the snapshot to render
type ArtKind string

const (
	ArtAlbum  ArtKind = "album"
	ArtArtist ArtKind = "artist"
)

// ArtOptions controls thumbnail rendering
type ArtOptions struct {
	// Size is the edge length in pixels of the square output
	Size int
	// Blur is the Gaussian blur sigma, 0 disables blurring
	Blur float64
}
