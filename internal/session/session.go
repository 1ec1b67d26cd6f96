package session

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/RoyGalaxy/syncplayer-client/internal/media"
	"github.com/RoyGalaxy/syncplayer-client/internal/models"
	"github.com/RoyGalaxy/syncplayer-client/internal/profile"
	"github.com/RoyGalaxy/syncplayer-client/internal/protocol"
	"github.com/RoyGalaxy/syncplayer-client/internal/transport"
)

// Transport is what the session needs from the coordinator connection.
type Transport interface {
	Emit(protocol.Envelope)
	Inbound() <-chan protocol.Envelope
	Status() <-chan transport.Status
}

// ProfileStore persists the identity the session should resume with.
type ProfileStore interface {
	Save(p profile.Profile) error
}

// Config holds the session's tuning knobs.
type Config struct {
	// DriftThreshold is the divergence in seconds below which a sync tick
	// does not move the position.
	DriftThreshold float64
	// AckTimeout bounds how long a create/join request may stay
	// unacknowledged.
	AckTimeout time.Duration
	// LoadingTimeout bounds the loading flag set after a local play
	// request.
	LoadingTimeout time.Duration
	// HousekeepInterval is the cadence of deadline sweeps.
	HousekeepInterval time.Duration
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		DriftThreshold:    1.5,
		AckTimeout:        10 * time.Second,
		LoadingTimeout:    15 * time.Second,
		HousekeepInterval: time.Second,
	}
}

// Snapshot is a copy of the session's observable state, safe to read
// outside the loop.
type Snapshot struct {
	Playback models.PlaybackState
	Room     *models.Room
	Loading  bool
	Seeking  bool
}

type pendingKind int

const (
	pendingCreate pendingKind = iota
	pendingJoin
)

// pendingRequest tracks one outstanding ack-carrying request.
type pendingRequest struct {
	kind     pendingKind
	roomID   string
	username string
	deadline time.Time
}

// Session is the synchronization core for one room membership. All mutable
// state is owned by the Run loop; UI commands, coordinator messages, media
// notifications and timer sweeps are serialized through its select, so no
// two reactions ever touch PlaybackState at once.
type Session struct {
	cfg      Config
	clock    clockwork.Clock
	tr       Transport
	player   media.Adapter
	profiles ProfileStore // may be nil

	commands chan command
	notices  chan Notice
	done     chan struct{}
	once     sync.Once

	// Loop-owned state below this line.
	username        string
	room            *models.Room
	state           models.PlaybackState
	seeking         bool
	loading         bool
	loadingDeadline time.Time
	loadedTrackID   string
	pending         map[string]*pendingRequest

	// Join target held across connectivity transitions. Set by joinRoom,
	// cleared on leave and on rejection; the transport drops emits while
	// disconnected, so StatusConnected re-issues the join from here.
	rejoinRoomID string
	rejoinUser   string
}

// New creates a session. profiles may be nil when no persistence is wired.
func New(cfg Config, tr Transport, player media.Adapter, profiles ProfileStore, clock clockwork.Clock) *Session {
	return &Session{
		cfg:      cfg,
		clock:    clock,
		tr:       tr,
		player:   player,
		profiles: profiles,
		commands: make(chan command, 64),
		notices:  make(chan Notice, 16),
		done:     make(chan struct{}),
		state:    models.NewPlaybackState(),
		pending:  make(map[string]*pendingRequest),
	}
}

// Notices is the stream of user-facing messages (validation failures, join
// rejections, informational events).
func (s *Session) Notices() <-chan Notice { return s.notices }

// Run processes events until ctx is done or Close is called. Inputs are
// applied strictly in arrival order per source; there is no other thread of
// control.
func (s *Session) Run(ctx context.Context) error {
	housekeep := s.clock.NewTicker(s.cfg.HousekeepInterval)
	defer housekeep.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case cmd := <-s.commands:
			s.handleCommand(cmd)
		case env := <-s.tr.Inbound():
			s.handleEnvelope(env)
		case st := <-s.tr.Status():
			s.handleStatus(st)
		case ev := <-s.player.Events():
			s.handleMediaEvent(ev)
		case <-housekeep.Chan():
			s.housekeep()
		}
	}
}

// Close stops the loop. The deferred ticker stop in Run releases the only
// timer the session owns; no reaction fires after Run returns.
func (s *Session) Close() {
	s.once.Do(func() { close(s.done) })
}

// Snapshot returns a copy of the current state. It round-trips through the
// loop so it never observes a half-applied reaction.
func (s *Session) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	select {
	case s.commands <- cmdSnapshot{reply: reply}:
	case <-s.done:
		return Snapshot{Playback: models.NewPlaybackState()}
	}
	select {
	case snap := <-reply:
		return snap
	case <-s.done:
		return Snapshot{Playback: models.NewPlaybackState()}
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Playback: s.state,
		Loading:  s.loading,
		Seeking:  s.seeking,
	}
	if s.state.CurrentTrack != nil {
		t := *s.state.CurrentTrack
		snap.Playback.CurrentTrack = &t
	}
	if s.room != nil {
		r := *s.room
		r.Queue = append([]models.Track(nil), s.room.Queue...)
		r.Participants = append([]models.Participant(nil), s.room.Participants...)
		if s.room.CurrentTrack != nil {
			t := *s.room.CurrentTrack
			r.CurrentTrack = &t
		}
		snap.Room = &r
	}
	return snap
}

// handleEnvelope routes one inbound coordinator message.
func (s *Session) handleEnvelope(env protocol.Envelope) {
	if env.Type == protocol.MsgAck {
		s.handleAck(env)
		return
	}

	payload, err := protocol.ParsePayload(env)
	if err != nil {
		log.Warn().Err(err).Str("type", string(env.Type)).Msg("dropping unparseable coordinator message")
		return
	}

	switch p := payload.(type) {
	case protocol.PlayPayload:
		s.applyRemotePlay(p)
	case protocol.PausePayload:
		s.applyRemotePause(p)
	case protocol.SeekPayload:
		s.applyRemoteSeek(p)
	case protocol.NextPayload:
		s.applyRemoteNext(p)
	case protocol.SyncTickPayload:
		s.applySyncTick(p)
	case []models.Participant:
		s.applyParticipants(p)
	case []models.Track:
		s.applyQueue(p)
	}
}

func (s *Session) handleMediaEvent(ev media.Event) {
	switch ev.Type {
	case media.EventReady:
		s.loading = false
		// Transport calls issued while the resource was still loading were
		// no-ops; the state is authoritative, so re-drive the adapter from it.
		if !s.seeking {
			s.player.SetPosition(s.state.Position)
		}
		s.player.SetPlaying(s.state.Playing)
	case media.EventPositionTick:
		s.loading = false
		// The drag gesture owns the visual position until it ends.
		if !s.seeking {
			s.state.Position = ev.Seconds
		}
	case media.EventDurationKnown:
		if ev.Seconds > 0 {
			s.state.Duration = ev.Seconds
			if s.state.Position > ev.Seconds {
				s.state.Position = ev.Seconds
			}
		}
	}
}

// housekeep expires outstanding acks and a stuck loading flag.
func (s *Session) housekeep() {
	now := s.clock.Now()
	for id, req := range s.pending {
		if now.Before(req.deadline) {
			continue
		}
		delete(s.pending, id)
		log.Warn().Str("request_id", id).Str("room_id", req.roomID).Msg("coordinator ack timed out")
		if req.kind == pendingCreate {
			s.notify(Notice{Kind: NoticeJoinRejected, Message: "Room creation timed out."})
		} else {
			s.notify(Notice{Kind: NoticeJoinRejected, Message: "Join request timed out."})
		}
	}
	if s.loading && !s.loadingDeadline.IsZero() && !now.Before(s.loadingDeadline) {
		s.loading = false
		s.loadingDeadline = time.Time{}
		log.Warn().Msg("media loading timed out")
	}
}

func (s *Session) markLoading() {
	s.loading = true
	s.loadingDeadline = s.clock.Now().Add(s.cfg.LoadingTimeout)
}

func (s *Session) resetPlayback() {
	s.state = models.NewPlaybackState()
}

func (s *Session) saveProfile() {
	if s.profiles == nil {
		return
	}
	p := profile.Profile{Username: s.username}
	if s.room != nil {
		p.RoomID = s.room.ID
	}
	if err := s.profiles.Save(p); err != nil {
		log.Warn().Err(err).Msg("failed to persist profile")
	}
}
