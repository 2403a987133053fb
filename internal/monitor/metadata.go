//go:build linux

package monitor

import (
	"fmt"
	"path"

	"github.com/genricoloni/eddy/internal/domain"
	"github.com/godbus/dbus/v5"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// parseTrack converts an MPRIS metadata map to a Track
func (m *MprisMonitor) parseTrack(metadata map[string]dbus.Variant) domain.Track {
	var track domain.Track

	if idVar, ok := metadata["mpris:trackid"]; ok {
		switch id := idVar.Value().(type) {
		case dbus.ObjectPath:
			track.ID = path.Base(string(id))
		case string:
			track.ID = path.Base(id)
		}
	}

	track.Title = stringValue(metadata, "xesam:title")
	track.URL = stringValue(metadata, "xesam:url")

	// Some players (browsers, local files) send an empty artUrl
	track.ArtURL = stringValue(metadata, "mpris:artUrl")

	if lengthVar, ok := metadata["mpris:length"]; ok {
		if us, ok := microseconds(lengthVar.Value()); ok && us > 0 {
			track.Duration = us
		}
	}

	if album := stringValue(metadata, "xesam:album"); album != "" {
		track.Album = &domain.Album{Title: album}
	}

	// Artist can be an array
	if artistVar, ok := metadata["xesam:artist"]; ok {
		var names []string
		switch artists := artistVar.Value().(type) {
		case []string:
			names = artists
		case string:
			names = []string{artists}
		default:
			// Some non-compliant players may use unexpected types
			m.logger.Debug("Unexpected artist type in metadata",
				zap.String("type", fmt.Sprintf("%T", artistVar.Value())))
		}

		names = lo.Compact(names)
		if len(names) > 0 {
			track.Artists = lo.Map(names, func(name string, _ int) domain.Artist {
				return domain.Artist{Name: name}
			})
			first := track.Artists[0]
			track.Artist = &first
		}
	}

	return track
}

// trackKey identifies a track for transition detection
func trackKey(t domain.Track) string {
	if t.ID != "" {
		return t.ID
	}
	return t.Title + "\x00" + t.URL
}

func stringValue(metadata map[string]dbus.Variant, key string) string {
	if v, ok := metadata[key]; ok {
		if s, ok := v.Value().(string); ok {
			return s
		}
	}
	return ""
}

// microseconds converts an MPRIS time value (µs) to seconds.
// Players disagree on the integer width used.
func microseconds(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n) / 1e6, true
	case uint64:
		return float64(n) / 1e6, true
	case int32:
		return float64(n) / 1e6, true
	case uint32:
		return float64(n) / 1e6, true
	case int:
		return float64(n) / 1e6, true
	case float64:
		return n / 1e6, true
	default:
		return 0, false
	}
}
