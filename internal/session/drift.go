package session

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/RoyGalaxy/syncplayer-client/internal/models"
	"github.com/RoyGalaxy/syncplayer-client/internal/protocol"
)

// applySyncTick reconciles accumulated clock drift against a periodic
// authoritative tick. A tick naming a different track is a race with an
// in-flight track change and is dropped, not corrected. The position moves
// only past the drift threshold so normal tick jitter never causes audible
// stutter; the play/pause flag is adopted unconditionally.
func (s *Session) applySyncTick(tick protocol.SyncTickPayload) {
	if s.state.CurrentTrack == nil || tick.CurrentTrack == nil ||
		s.state.CurrentTrack.ID != tick.CurrentTrack.ID {
		log.Debug().Msg("ignoring sync tick for a different track")
		return
	}

	drift := math.Abs(s.state.Position - tick.Time)
	if drift > s.cfg.DriftThreshold {
		log.Info().Float64("drift", drift).Float64("time", tick.Time).Msg("correcting playback drift")
		s.state.Position = tick.Time
		if !s.seeking {
			s.player.SetPosition(tick.Time)
		}
	}

	s.state.Playing = tick.IsPlaying
	s.state.Origin = models.OriginRemote
	s.player.SetPlaying(tick.IsPlaying)
}
