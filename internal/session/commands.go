package session

import (
	"github.com/rs/zerolog/log"

	"github.com/RoyGalaxy/syncplayer-client/internal/models"
	"github.com/RoyGalaxy/syncplayer-client/internal/protocol"
)

type command interface{ isCommand() }

type cmdPlay struct{}
type cmdPause struct{}
type cmdBeginSeek struct{}
type cmdSeekPreview struct{ seconds float64 }
type cmdCommitSeek struct{ seconds float64 }
type cmdNext struct{}
type cmdSelectTrack struct{ track models.Track }
type cmdCreateRoom struct{ username string }
type cmdJoinRoom struct{ roomID, username string }
type cmdLeaveRoom struct{}
type cmdSnapshot struct{ reply chan Snapshot }

func (cmdPlay) isCommand()        {}
func (cmdPause) isCommand()       {}
func (cmdBeginSeek) isCommand()   {}
func (cmdSeekPreview) isCommand() {}
func (cmdCommitSeek) isCommand()  {}
func (cmdNext) isCommand()        {}
func (cmdSelectTrack) isCommand() {}
func (cmdCreateRoom) isCommand()  {}
func (cmdJoinRoom) isCommand()    {}
func (cmdLeaveRoom) isCommand()   {}
func (cmdSnapshot) isCommand()    {}

func (s *Session) submit(cmd command) {
	select {
	case s.commands <- cmd:
	case <-s.done:
	}
}

// RequestPlay resumes playback of the current track and announces it.
func (s *Session) RequestPlay() { s.submit(cmdPlay{}) }

// RequestPause pauses playback at the media element's position and
// announces it.
func (s *Session) RequestPause() { s.submit(cmdPause{}) }

// BeginSeek opens a drag window: until CommitSeek, only the visual position
// moves and inbound corrections stay away from the media element.
func (s *Session) BeginSeek() { s.submit(cmdBeginSeek{}) }

// UpdateSeekPreview moves the visual position during an active drag.
func (s *Session) UpdateSeekPreview(seconds float64) { s.submit(cmdSeekPreview{seconds: seconds}) }

// CommitSeek ends the drag, seeks the media element and announces the
// committed value.
func (s *Session) CommitSeek(seconds float64) { s.submit(cmdCommitSeek{seconds: seconds}) }

// RequestNext asks the coordinator to advance the queue. Local state is
// untouched; the resulting play broadcast applies the change.
func (s *Session) RequestNext() { s.submit(cmdNext{}) }

// SelectTrack starts an arbitrary track from position zero.
func (s *Session) SelectTrack(track models.Track) { s.submit(cmdSelectTrack{track: track}) }

// CreateRoom creates a room and joins it.
func (s *Session) CreateRoom(username string) { s.submit(cmdCreateRoom{username: username}) }

// JoinRoom joins an existing room.
func (s *Session) JoinRoom(roomID, username string) {
	s.submit(cmdJoinRoom{roomID: roomID, username: username})
}

// LeaveRoom clears the membership locally and notifies the coordinator on a
// best-effort basis.
func (s *Session) LeaveRoom() { s.submit(cmdLeaveRoom{}) }

func (s *Session) handleCommand(cmd command) {
	switch c := cmd.(type) {
	case cmdPlay:
		s.requestPlay()
	case cmdPause:
		s.requestPause()
	case cmdBeginSeek:
		s.seeking = true
	case cmdSeekPreview:
		s.seekPreview(c.seconds)
	case cmdCommitSeek:
		s.commitSeek(c.seconds)
	case cmdNext:
		s.requestNext()
	case cmdSelectTrack:
		s.selectTrack(c.track)
	case cmdCreateRoom:
		s.createRoom(c.username)
	case cmdJoinRoom:
		s.joinRoom(c.roomID, c.username)
	case cmdLeaveRoom:
		s.leaveRoom()
	case cmdSnapshot:
		c.reply <- s.snapshotLocked()
	}
}

func (s *Session) requestPlay() {
	if s.room == nil || !s.state.HasTrack() {
		return
	}
	s.markLoading()
	s.state.Playing = true
	s.state.LastActor = s.username
	s.state.Origin = models.OriginLocal
	s.player.SetPlaying(true)

	env, err := protocol.NewEnvelope(protocol.MsgPlay, protocol.PlayPayload{
		RoomID: s.room.ID,
		Track:  s.state.CurrentTrack,
		Time:   s.state.Position,
		User:   s.username,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to build play message")
		return
	}
	s.tr.Emit(env)
}

func (s *Session) requestPause() {
	if s.room == nil {
		return
	}
	pos, ok := s.player.Position()
	if !ok {
		pos = s.state.Position
	}
	s.state.Playing = false
	s.state.Position = pos
	s.state.Origin = models.OriginLocal
	s.player.SetPlaying(false)

	env, err := protocol.NewEnvelope(protocol.MsgPause, protocol.PausePayload{
		RoomID: s.room.ID,
		Time:   pos,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to build pause message")
		return
	}
	s.tr.Emit(env)
}

// seekPreview moves only the visual position. No message is sent and the
// media element is not touched, so the network is not flooded and the drag
// gesture is not fought.
func (s *Session) seekPreview(seconds float64) {
	if !s.seeking {
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	s.state.Position = seconds
	s.state.Origin = models.OriginLocal
}

func (s *Session) commitSeek(seconds float64) {
	s.seeking = false
	if seconds < 0 {
		seconds = 0
	}
	s.state.Position = seconds
	s.state.Origin = models.OriginLocal
	s.player.SetPosition(seconds)

	if s.room == nil {
		return
	}
	env, err := protocol.NewEnvelope(protocol.MsgSeek, protocol.SeekPayload{
		RoomID: s.room.ID,
		Time:   seconds,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to build seek message")
		return
	}
	s.tr.Emit(env)
}

func (s *Session) requestNext() {
	if s.room == nil {
		return
	}
	env, err := protocol.NewEnvelope(protocol.MsgNext, protocol.NextPayload{
		RoomID: s.room.ID,
		User:   s.username,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to build next message")
		return
	}
	s.tr.Emit(env)
}

func (s *Session) selectTrack(track models.Track) {
	if s.room == nil {
		return
	}
	s.markLoading()
	t := track
	s.state.CurrentTrack = &t
	s.state.Origin = models.OriginLocal

	env, err := protocol.NewEnvelope(protocol.MsgPlay, protocol.PlayPayload{
		RoomID: s.room.ID,
		Track:  &track,
		Time:   0,
		User:   s.username,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to build play message")
		return
	}
	s.tr.Emit(env)
}
