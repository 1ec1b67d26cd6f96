package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/RoyGalaxy/syncplayer-client/internal/models"
)

// MessageType identifies a coordinator protocol message.
type MessageType string

const (
	// Client -> coordinator. CreateRoom and JoinRoom carry a correlation id
	// and are answered with an Ack; everything else is fire-and-forget.
	MsgCreateRoom MessageType = "createRoom"
	MsgJoinRoom   MessageType = "joinRoom"
	MsgLeaveRoom  MessageType = "leaveRoom"

	// Bidirectional transport intents. Outbound they carry the room id,
	// inbound they are the coordinator's authoritative broadcast.
	MsgPlay  MessageType = "play"
	MsgPause MessageType = "pause"
	MsgSeek  MessageType = "seek"
	MsgNext  MessageType = "next"

	// Coordinator -> client only.
	MsgSyncTick     MessageType = "syncTick"
	MsgParticipants MessageType = "participants"
	MsgQueue        MessageType = "queue"
	MsgAck          MessageType = "ack"
)

// Envelope is the wire framing for every message in both directions.
// ID is set on messages that expect an acknowledgement; the coordinator
// echoes it back on the matching Ack.
type Envelope struct {
	Type MessageType     `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// PlayPayload announces a play or track selection. RoomID is only present
// on the outbound form.
type PlayPayload struct {
	RoomID string        `json:"roomId,omitempty"`
	Track  *models.Track `json:"track"`
	Time   float64       `json:"time"`
	User   string        `json:"user"`
}

type PausePayload struct {
	RoomID string  `json:"roomId,omitempty"`
	Time   float64 `json:"time"`
}

type SeekPayload struct {
	RoomID string  `json:"roomId,omitempty"`
	Time   float64 `json:"time"`
}

type NextPayload struct {
	RoomID string `json:"roomId,omitempty"`
	User   string `json:"user,omitempty"`
}

// SyncTickPayload is the periodic drift-correction signal.
type SyncTickPayload struct {
	Time         float64       `json:"time"`
	IsPlaying    bool          `json:"isPlaying"`
	CurrentTrack *models.Track `json:"currentTrack"`
}

type CreateRoomPayload struct {
	Username string `json:"username"`
}

// CreateRoomAck is the data of the ack answering a CreateRoom request.
type CreateRoomAck struct {
	RoomID string `json:"roomId"`
}

type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
	User   string `json:"user"`
}

// JoinRoomAck is the data of the ack answering a JoinRoom request. Exactly
// one of Room or Error is set.
type JoinRoomAck struct {
	Room  *models.Room `json:"room,omitempty"`
	Error string       `json:"error,omitempty"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"roomId"`
	User   string `json:"user,omitempty"`
}

// NewEnvelope marshals payload into a ready-to-send envelope.
func NewEnvelope(t MessageType, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Envelope{Type: t, Data: data}, nil
}

// NewRequest is NewEnvelope with a correlation id attached.
func NewRequest(t MessageType, id string, payload any) (Envelope, error) {
	env, err := NewEnvelope(t, payload)
	if err != nil {
		return Envelope{}, err
	}
	env.ID = id
	return env, nil
}

// ParsePayload decodes the payload of an inbound envelope into its typed
// form. Ack payloads are request-specific and decoded by the requester.
func ParsePayload(env Envelope) (any, error) {
	switch env.Type {
	case MsgPlay:
		var p PlayPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal play payload: %w", err)
		}
		return p, nil

	case MsgPause:
		var p PausePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal pause payload: %w", err)
		}
		return p, nil

	case MsgSeek:
		var p SeekPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal seek payload: %w", err)
		}
		return p, nil

	case MsgNext:
		var p NextPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal next payload: %w", err)
		}
		return p, nil

	case MsgSyncTick:
		var p SyncTickPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal syncTick payload: %w", err)
		}
		return p, nil

	case MsgParticipants:
		var p []models.Participant
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal participants payload: %w", err)
		}
		return p, nil

	case MsgQueue:
		var q []models.Track
		if err := json.Unmarshal(env.Data, &q); err != nil {
			return nil, fmt.Errorf("unmarshal queue payload: %w", err)
		}
		return q, nil

	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}
