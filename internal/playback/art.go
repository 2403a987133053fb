package playback

import (
	"strings"

	"github.com/genricoloni/eddy/internal/domain"
)

const (
	artBaseURL      = "https://resources.tidal.com/images/"
	albumArtSuffix  = "/1280x1280.jpg"
	artistArtSuffix = "/750x750.jpg"
	artIDDelimiter  = "-"
)

// artURL builds a resource URL from an art identifier such as
// "3a5c1d0e-7b2f-..." -> base + "3a5c1d0e/7b2f/..." + suffix.
// It returns nil when the identifier is absent or has empty segments.
func artURL(id, suffix string) *string {
	if id == "" {
		return nil
	}
	parts := strings.Split(id, artIDDelimiter)
	for _, p := range parts {
		if p == "" {
			return nil
		}
	}
	u := artBaseURL + strings.Join(parts, "/") + suffix
	return &u
}

// AlbumArtURL returns the album art URL of t, falling back to a direct
// http(s) art URL supplied by the player when no cover identifier exists.
func AlbumArtURL(t domain.Track) *string {
	if t.Album != nil && t.Album.Cover != "" {
		return artURL(t.Album.Cover, albumArtSuffix)
	}
	if strings.HasPrefix(t.ArtURL, "https://") || strings.HasPrefix(t.ArtURL, "http://") {
		u := t.ArtURL
		return &u
	}
	return nil
}

// ArtistArtURL returns the artist picture URL of t
func ArtistArtURL(t domain.Track) *string {
	if t.Artist == nil {
		return nil
	}
	return artURL(t.Artist.Picture, artistArtSuffix)
}
