package session

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/RoyGalaxy/syncplayer-client/internal/models"
	"github.com/RoyGalaxy/syncplayer-client/internal/protocol"
)

// applyRemotePlay applies an authoritative play or track change. A track-id
// change resets duration to unknown and takes the position from the message
// rather than unconditionally from zero.
func (s *Session) applyRemotePlay(p protocol.PlayPayload) {
	if p.Track == nil {
		log.Warn().Msg("dropping play broadcast without a track")
		return
	}

	changed := s.state.CurrentTrack == nil || s.state.CurrentTrack.ID != p.Track.ID
	if changed {
		s.state.ResetForTrack(p.Track, p.Time, p.User)
		s.markLoading()
	} else {
		s.state.CurrentTrack = p.Track
		s.state.Position = p.Time
		s.state.LastActor = p.User
	}
	s.state.Playing = true
	s.state.Origin = models.OriginRemote

	if p.Track.ID != s.loadedTrackID {
		s.player.Load(*p.Track)
		s.loadedTrackID = p.Track.ID
	}
	if !s.seeking {
		s.player.SetPosition(p.Time)
	}
	s.player.SetPlaying(true)

	log.Debug().Str("track_id", p.Track.ID).Float64("time", p.Time).Str("actor", p.User).Bool("track_changed", changed).Msg("applied remote play")
}

func (s *Session) applyRemotePause(p protocol.PausePayload) {
	s.state.Playing = false
	s.state.Position = p.Time
	s.state.Origin = models.OriginRemote

	if !s.seeking {
		s.player.SetPosition(p.Time)
	}
	s.player.SetPlaying(false)

	log.Debug().Float64("time", p.Time).Msg("applied remote pause")
}

func (s *Session) applyRemoteSeek(p protocol.SeekPayload) {
	target := p.Time
	if target < 0 {
		target = 0
	}
	if s.state.Duration != models.UnknownDuration && target > s.state.Duration {
		target = s.state.Duration
	}
	s.state.Position = target
	s.state.Origin = models.OriginRemote

	if !s.seeking {
		s.player.SetPosition(target)
	}

	log.Debug().Float64("time", target).Msg("applied remote seek")
}

// applyRemoteNext is informational only; the actual track change arrives in
// the coordinator's follow-up play broadcast.
func (s *Session) applyRemoteNext(p protocol.NextPayload) {
	if p.User != "" {
		s.notify(Notice{Kind: NoticeInfo, Message: fmt.Sprintf("%s skipped to the next track", p.User)})
	}
	log.Debug().Str("actor", p.User).Msg("next requested in room")
}

func (s *Session) applyParticipants(participants []models.Participant) {
	if s.room == nil {
		return
	}
	s.room.Participants = participants
	log.Debug().Int("count", len(participants)).Msg("roster updated")
}

func (s *Session) applyQueue(queue []models.Track) {
	if s.room == nil {
		return
	}
	s.room.Queue = queue
	log.Debug().Int("count", len(queue)).Msg("queue updated")
}
