package playback

import (
	"math"
	"sync"
	"time"

	"github.com/genricoloni/eddy/internal/domain"
	"go.uber.org/zap"
)

// Store holds the single process-wide playback snapshot.
// It is created lazily by the first update and only ever overwritten.
type Store struct {
	logger *zap.Logger
	now    func() time.Time

	mu   sync.RWMutex
	snap *domain.Snapshot
}

// NewStore creates an empty playback store
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		logger: logger,
		now:    time.Now,
	}
}

// Apply merges update into the snapshot field by field.
// Each field is applied when present, whatever its value; absent fields are left untouched.
func (s *Store) Apply(update domain.PlaybackUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.snap == nil {
		s.snap = &domain.Snapshot{LastUpdate: now}
	}

	if track, ok := update.Track.Get(); ok {
		s.setTrackLocked(track)
	}

	if pos, ok := update.Position.Get(); ok {
		switch {
		case math.IsNaN(pos) || math.IsInf(pos, 0):
			s.logger.Debug("Ignoring non-finite position", zap.Float64("position", pos))
		default:
			s.snap.Position = math.Max(pos, 0)
			s.snap.LastUpdate = now
		}
	}

	if paused, ok := update.Paused.Get(); ok {
		s.snap.Paused = paused
	}

	s.logger.Debug("Playback state updated",
		zap.Bool("track", update.Track.IsPresent()),
		zap.Float64("position", s.snap.Position),
		zap.Bool("paused", s.snap.Paused))
}

func (s *Store) setTrackLocked(track domain.Track) {
	t := track
	s.snap.Track = &t
	s.snap.AlbumArt = AlbumArtURL(t)
	s.snap.ArtistArt = ArtistArtURL(t)
	s.snap.Duration = nil
	if t.Duration > 0 {
		d := t.Duration
		s.snap.Duration = &d
	}
}

// Snapshot returns a copy of the current snapshot.
// The boolean is false until the first update has been applied.
func (s *Store) Snapshot() (domain.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snap == nil {
		return domain.Snapshot{}, false
	}
	return *s.snap, true
}

// NowPlaying returns the current snapshot extrapolated to now.
// The store itself is never modified.
func (s *Store) NowPlaying(now time.Time) domain.NowPlaying {
	snap, _ := s.Snapshot()
	return Extrapolate(snap, now)
}
