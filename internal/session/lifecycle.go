package session

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RoyGalaxy/syncplayer-client/internal/models"
	"github.com/RoyGalaxy/syncplayer-client/internal/protocol"
	"github.com/RoyGalaxy/syncplayer-client/internal/transport"
)

// createRoom asks the coordinator for a room and joins it once the ack
// arrives. The coordinator does not auto-enroll the creator.
func (s *Session) createRoom(username string) {
	if strings.TrimSpace(username) == "" {
		s.notify(Notice{Kind: NoticeValidation, Message: "Please enter a username."})
		return
	}

	id := uuid.NewString()
	env, err := protocol.NewRequest(protocol.MsgCreateRoom, id, protocol.CreateRoomPayload{Username: username})
	if err != nil {
		log.Error().Err(err).Msg("failed to build createRoom request")
		return
	}
	s.pending[id] = &pendingRequest{
		kind:     pendingCreate,
		username: username,
		deadline: s.clock.Now().Add(s.cfg.AckTimeout),
	}
	s.tr.Emit(env)
	log.Info().Str("request_id", id).Msg("room creation requested")
}

func (s *Session) joinRoom(roomID, username string) {
	if strings.TrimSpace(roomID) == "" || strings.TrimSpace(username) == "" {
		s.notify(Notice{Kind: NoticeValidation, Message: "Please enter a room code and username."})
		return
	}

	s.rejoinRoomID = roomID
	s.rejoinUser = username

	id := uuid.NewString()
	env, err := protocol.NewRequest(protocol.MsgJoinRoom, id, protocol.JoinRoomPayload{RoomID: roomID, User: username})
	if err != nil {
		log.Error().Err(err).Msg("failed to build joinRoom request")
		return
	}
	s.pending[id] = &pendingRequest{
		kind:     pendingJoin,
		roomID:   roomID,
		username: username,
		deadline: s.clock.Now().Add(s.cfg.AckTimeout),
	}
	s.tr.Emit(env)
	log.Info().Str("request_id", id).Str("room_id", roomID).Msg("join requested")
}

// leaveRoom clears the membership locally. The coordinator notification is
// fire-and-forget.
func (s *Session) leaveRoom() {
	if s.room != nil {
		env, err := protocol.NewEnvelope(protocol.MsgLeaveRoom, protocol.LeaveRoomPayload{
			RoomID: s.room.ID,
			User:   s.username,
		})
		if err == nil {
			s.tr.Emit(env)
		}
	}

	s.room = nil
	s.rejoinRoomID = ""
	s.rejoinUser = ""
	s.resetPlayback()
	s.seeking = false
	s.loading = false
	s.loadedTrackID = ""
	s.player.Unload()
	s.saveProfile()
	log.Info().Msg("left room")
}

// handleAck resolves one outstanding create/join request. Acks arrive on
// the same stream as broadcasts, so a play interleaved before the join ack
// is applied first and the ack's authoritative room still wins.
func (s *Session) handleAck(env protocol.Envelope) {
	req := s.pending[env.ID]
	if req == nil {
		log.Debug().Str("request_id", env.ID).Msg("dropping ack for unknown or expired request")
		return
	}
	delete(s.pending, env.ID)

	switch req.kind {
	case pendingCreate:
		s.resolveCreate(env, req)
	case pendingJoin:
		s.resolveJoin(env, req)
	}
}

func (s *Session) resolveCreate(env protocol.Envelope, req *pendingRequest) {
	var ack protocol.CreateRoomAck
	if err := json.Unmarshal(env.Data, &ack); err != nil || ack.RoomID == "" {
		log.Warn().Err(err).Msg("malformed createRoom ack")
		s.notify(Notice{Kind: NoticeJoinRejected, Message: "Room creation failed."})
		return
	}

	s.username = req.username
	s.room = &models.Room{
		ID:           ack.RoomID,
		Queue:        []models.Track{},
		Participants: []models.Participant{},
	}
	s.resetPlayback()
	s.saveProfile()
	log.Info().Str("room_id", ack.RoomID).Msg("room created")

	// Create implies join.
	s.joinRoom(ack.RoomID, req.username)
}

func (s *Session) resolveJoin(env protocol.Envelope, req *pendingRequest) {
	var ack protocol.JoinRoomAck
	if err := json.Unmarshal(env.Data, &ack); err != nil {
		log.Warn().Err(err).Msg("malformed joinRoom ack")
		s.notify(Notice{Kind: NoticeJoinRejected, Message: "Join failed."})
		return
	}

	if ack.Error != "" {
		log.Warn().Str("room_id", req.roomID).Str("reason", ack.Error).Msg("join rejected")
		s.notify(Notice{Kind: NoticeJoinRejected, Message: ack.Error})
		s.room = nil
		s.rejoinRoomID = ""
		s.rejoinUser = ""
		s.resetPlayback()
		s.loadedTrackID = ""
		return
	}
	if ack.Room == nil {
		log.Warn().Str("room_id", req.roomID).Msg("join ack carried neither room nor error")
		s.notify(Notice{Kind: NoticeJoinRejected, Message: "Join failed."})
		return
	}

	// The coordinator's copy fully replaces local state; optimistic updates
	// from before a disconnect are discarded here, not replayed.
	room := *ack.Room
	room.ID = req.roomID
	s.room = &room
	s.username = req.username
	s.resetPlayback()
	s.state.CurrentTrack = room.CurrentTrack

	if room.CurrentTrack != nil {
		if room.CurrentTrack.ID != s.loadedTrackID {
			s.player.Load(*room.CurrentTrack)
			s.loadedTrackID = room.CurrentTrack.ID
		}
	} else {
		s.player.Unload()
		s.loadedTrackID = ""
	}

	s.saveProfile()
	s.notify(Notice{Kind: NoticeInfo, Message: "Joined room " + req.roomID})
	log.Info().Str("room_id", req.roomID).Int("participants", len(room.Participants)).Msg("joined room")
}

// handleStatus reacts to connectivity transitions. Rejoining with the held
// room id and username is the sole mechanism that bounds divergence after a
// reconnect; it also covers a join requested before the first connect, whose
// emit the transport dropped.
func (s *Session) handleStatus(st transport.Status) {
	switch st {
	case transport.StatusConnected:
		// Requests in flight when the previous connection died can never be
		// acknowledged on this one; the rejoin below supersedes them.
		for id := range s.pending {
			log.Debug().Str("request_id", id).Msg("dropping request outstanding across a reconnect")
			delete(s.pending, id)
		}
		if s.rejoinRoomID != "" && s.rejoinUser != "" {
			log.Info().Str("room_id", s.rejoinRoomID).Msg("transport established, joining held room")
			s.joinRoom(s.rejoinRoomID, s.rejoinUser)
		}
	case transport.StatusDisconnected:
		log.Warn().Msg("transport lost; awaiting reconnect")
	}
}
