package session

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/RoyGalaxy/syncplayer-client/internal/media"
	"github.com/RoyGalaxy/syncplayer-client/internal/models"
	"github.com/RoyGalaxy/syncplayer-client/internal/protocol"
	"github.com/RoyGalaxy/syncplayer-client/internal/transport"
)

// fakeTransport records outbound envelopes and lets tests inject inbound
// traffic and connectivity transitions.
type fakeTransport struct {
	mu      sync.Mutex
	emitted []protocol.Envelope
	inbound chan protocol.Envelope
	status  chan transport.Status
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan protocol.Envelope, 16),
		status:  make(chan transport.Status, 4),
	}
}

func (f *fakeTransport) Emit(env protocol.Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, env)
}

func (f *fakeTransport) Inbound() <-chan protocol.Envelope { return f.inbound }
func (f *fakeTransport) Status() <-chan transport.Status   { return f.status }

func (f *fakeTransport) sentOfType(t protocol.MessageType) []protocol.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []protocol.Envelope
	for _, env := range f.emitted {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.emitted)
}

// newTestSession starts a session against fakes and tears it down with the
// test.
func newTestSession(t *testing.T, clock clockwork.Clock) (*Session, *fakeTransport, *media.Mock) {
	t.Helper()
	tr := newFakeTransport()
	player := media.NewMock()
	s := New(DefaultConfig(), tr, player, nil, clock)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)
	t.Cleanup(s.Close)

	return s, tr, player
}

// waitFor polls cond until it holds or the test deadline passes.
func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func recvNotice(t *testing.T, s *Session, within time.Duration) Notice {
	t.Helper()
	select {
	case n := <-s.Notices():
		return n
	case <-time.After(within):
		t.Fatalf("timed out waiting for notice")
		return Notice{}
	}
}

// joinTestRoom walks the session through a successful join.
func joinTestRoom(t *testing.T, s *Session, tr *fakeTransport, room models.Room) {
	t.Helper()
	s.JoinRoom(room.ID, "alice")
	waitFor(t, func() bool { return len(tr.sentOfType(protocol.MsgJoinRoom)) >= 1 }, "join request")

	reqs := tr.sentOfType(protocol.MsgJoinRoom)
	req := reqs[len(reqs)-1]
	data, err := json.Marshal(protocol.JoinRoomAck{Room: &room})
	if err != nil {
		t.Fatalf("marshal join ack: %v", err)
	}
	tr.inbound <- protocol.Envelope{Type: protocol.MsgAck, ID: req.ID, Data: data}
	waitFor(t, func() bool { return s.Snapshot().Room != nil }, "join to complete")
}

func trackABC() models.Track {
	return models.Track{ID: "abc", Title: "Song A", Artist: "Artist A"}
}

func floatEq(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestRequestPlay_EmitsPlayOnceAndSetsPlaying(t *testing.T) {
	s, tr, player := newTestSession(t, clockwork.NewFakeClock())
	track := trackABC()
	joinTestRoom(t, s, tr, models.Room{ID: "ROOM", CurrentTrack: &track})

	s.RequestPlay()
	waitFor(t, func() bool { return s.Snapshot().Playback.Playing }, "playing flag")

	plays := tr.sentOfType(protocol.MsgPlay)
	if len(plays) != 1 {
		t.Fatalf("want exactly one play message, got %d", len(plays))
	}
	var p protocol.PlayPayload
	if err := json.Unmarshal(plays[0].Data, &p); err != nil {
		t.Fatalf("unmarshal play payload: %v", err)
	}
	if p.RoomID != "ROOM" || p.Track == nil || p.Track.ID != "abc" || !floatEq(p.Time, 0) || p.User != "alice" {
		t.Fatalf("unexpected play payload: %+v", p)
	}

	snap := s.Snapshot()
	if snap.Playback.Origin != models.OriginLocal {
		t.Fatalf("want local origin after local play, got %v", snap.Playback.Origin)
	}
	if !snap.Loading {
		t.Fatalf("expected loading flag after local play")
	}
	calls := player.SetPlayingCalls()
	if len(calls) == 0 || !calls[len(calls)-1] {
		t.Fatalf("expected adapter to be driven to playing, calls: %v", calls)
	}
}

func TestRequestPlay_NoRoomIsNoop(t *testing.T) {
	s, tr, _ := newTestSession(t, clockwork.NewFakeClock())

	s.RequestPlay()
	snap := s.Snapshot() // round-trips through the loop, so the command ran
	if snap.Playback.Playing {
		t.Fatalf("playing should stay false without a room")
	}
	if tr.sentCount() != 0 {
		t.Fatalf("no message should be sent without a room, got %d", tr.sentCount())
	}
}

func TestRequestPause_UsesPlayerPositionWithFallback(t *testing.T) {
	s, tr, player := newTestSession(t, clockwork.NewFakeClock())
	track := trackABC()
	joinTestRoom(t, s, tr, models.Room{ID: "ROOM", CurrentTrack: &track})

	player.SetMockPosition(12.5)
	s.RequestPause()
	waitFor(t, func() bool {
		snap := s.Snapshot()
		return !snap.Playback.Playing && floatEq(snap.Playback.Position, 12.5)
	}, "pause applied")

	pauses := tr.sentOfType(protocol.MsgPause)
	if len(pauses) != 1 {
		t.Fatalf("want one pause message, got %d", len(pauses))
	}
	var p protocol.PausePayload
	if err := json.Unmarshal(pauses[0].Data, &p); err != nil {
		t.Fatalf("unmarshal pause payload: %v", err)
	}
	if !floatEq(p.Time, 12.5) {
		t.Fatalf("pause time = %v, want 12.5", p.Time)
	}
}

func TestRequestPause_FallsBackToStateWhenNotReady(t *testing.T) {
	s, tr, player := newTestSession(t, clockwork.NewFakeClock())
	track := trackABC()
	joinTestRoom(t, s, tr, models.Room{ID: "ROOM", CurrentTrack: &track})

	// Seed the state position through a remote seek, then make the player
	// unavailable.
	seek, _ := protocol.NewEnvelope(protocol.MsgSeek, protocol.SeekPayload{Time: 33})
	tr.inbound <- seek
	waitFor(t, func() bool { return floatEq(s.Snapshot().Playback.Position, 33) }, "remote seek applied")
	player.SetReady(false)

	s.RequestPause()
	waitFor(t, func() bool { return len(tr.sentOfType(protocol.MsgPause)) == 1 }, "pause message")

	var p protocol.PausePayload
	if err := json.Unmarshal(tr.sentOfType(protocol.MsgPause)[0].Data, &p); err != nil {
		t.Fatalf("unmarshal pause payload: %v", err)
	}
	if !floatEq(p.Time, 33) {
		t.Fatalf("pause time = %v, want fallback 33", p.Time)
	}
}

func TestInboundPause_DrivesAdapterExactlyOnce(t *testing.T) {
	s, tr, player := newTestSession(t, clockwork.NewFakeClock())
	track := trackABC()
	joinTestRoom(t, s, tr, models.Room{ID: "ROOM", CurrentTrack: &track})

	pause, _ := protocol.NewEnvelope(protocol.MsgPause, protocol.PausePayload{Time: 42.3})
	tr.inbound <- pause
	waitFor(t, func() bool {
		snap := s.Snapshot()
		return !snap.Playback.Playing && floatEq(snap.Playback.Position, 42.3)
	}, "remote pause applied")

	calls := player.SetPositionCalls()
	if len(calls) != 1 || !floatEq(calls[0], 42.3) {
		t.Fatalf("SetPosition calls = %v, want exactly [42.3]", calls)
	}
	if s.Snapshot().Playback.Origin != models.OriginRemote {
		t.Fatalf("remote pause must carry remote origin")
	}
}

func TestSeekEchoIsIdempotent(t *testing.T) {
	s, tr, player := newTestSession(t, clockwork.NewFakeClock())
	track := trackABC()
	joinTestRoom(t, s, tr, models.Room{ID: "ROOM", CurrentTrack: &track})

	s.BeginSeek()
	s.CommitSeek(30)
	waitFor(t, func() bool { return floatEq(s.Snapshot().Playback.Position, 30) }, "commit applied")
	before := s.Snapshot()

	echo, _ := protocol.NewEnvelope(protocol.MsgSeek, protocol.SeekPayload{Time: 30})
	tr.inbound <- echo
	waitFor(t, func() bool { return len(player.SetPositionCalls()) == 2 }, "echo applied")

	after := s.Snapshot()
	if !floatEq(after.Playback.Position, before.Playback.Position) ||
		after.Playback.Playing != before.Playback.Playing ||
		after.Playback.CurrentTrack.ID != before.Playback.CurrentTrack.ID {
		t.Fatalf("echo changed state: before=%+v after=%+v", before.Playback, after.Playback)
	}
}

func TestDragWindow_RemoteUpdatesStateButNotAdapter(t *testing.T) {
	s, tr, player := newTestSession(t, clockwork.NewFakeClock())
	track := trackABC()
	joinTestRoom(t, s, tr, models.Room{ID: "ROOM", CurrentTrack: &track})

	s.BeginSeek()
	s.UpdateSeekPreview(10)
	waitFor(t, func() bool { return floatEq(s.Snapshot().Playback.Position, 10) }, "preview position")
	if tr.sentOfType(protocol.MsgSeek) != nil {
		t.Fatalf("seek preview must not send messages")
	}

	remote, _ := protocol.NewEnvelope(protocol.MsgSeek, protocol.SeekPayload{Time: 50})
	tr.inbound <- remote
	waitFor(t, func() bool { return floatEq(s.Snapshot().Playback.Position, 50) }, "authoritative value kept")

	if calls := player.SetPositionCalls(); len(calls) != 0 {
		t.Fatalf("adapter must not be driven during a drag, calls: %v", calls)
	}

	s.CommitSeek(55)
	waitFor(t, func() bool { return len(tr.sentOfType(protocol.MsgSeek)) == 1 }, "committed seek")
	if calls := player.SetPositionCalls(); len(calls) != 1 || !floatEq(calls[0], 55) {
		t.Fatalf("commit should drive the adapter once, calls: %v", calls)
	}
	if s.Snapshot().Seeking {
		t.Fatalf("seeking flag should clear on commit")
	}
}

func TestInboundPlay_TrackChangeResetsDuration(t *testing.T) {
	s, tr, player := newTestSession(t, clockwork.NewFakeClock())
	t1 := models.Track{ID: "t1", Title: "First"}
	joinTestRoom(t, s, tr, models.Room{ID: "ROOM", CurrentTrack: &t1})

	player.EmitDuration(200)
	waitFor(t, func() bool { return floatEq(s.Snapshot().Playback.Duration, 200) }, "duration known")

	t2 := models.Track{ID: "t2", Title: "Second"}
	play, _ := protocol.NewEnvelope(protocol.MsgPlay, protocol.PlayPayload{Track: &t2, Time: 7.5, User: "bob"})
	tr.inbound <- play
	waitFor(t, func() bool {
		snap := s.Snapshot()
		return snap.Playback.CurrentTrack != nil && snap.Playback.CurrentTrack.ID == "t2"
	}, "track change")

	snap := s.Snapshot()
	if !floatEq(snap.Playback.Position, 7.5) {
		t.Fatalf("position = %v, want the message time 7.5", snap.Playback.Position)
	}
	if !floatEq(snap.Playback.Duration, models.UnknownDuration) {
		t.Fatalf("duration = %v, want reset to unknown default", snap.Playback.Duration)
	}
	if !snap.Playback.Playing || snap.Playback.LastActor != "bob" {
		t.Fatalf("unexpected state after track change: %+v", snap.Playback)
	}
	loads := player.LoadCalls()
	if len(loads) != 2 || loads[1].ID != "t2" {
		t.Fatalf("adapter should load the new track, loads: %v", loads)
	}
}

func TestInboundPlay_SameTrackDoesNotReload(t *testing.T) {
	s, tr, player := newTestSession(t, clockwork.NewFakeClock())
	track := trackABC()
	joinTestRoom(t, s, tr, models.Room{ID: "ROOM", CurrentTrack: &track})

	play, _ := protocol.NewEnvelope(protocol.MsgPlay, protocol.PlayPayload{Track: &track, Time: 3, User: "bob"})
	tr.inbound <- play
	waitFor(t, func() bool { return s.Snapshot().Playback.Playing }, "resume applied")

	if loads := player.LoadCalls(); len(loads) != 1 {
		t.Fatalf("resume of the current track must not reload, loads: %v", loads)
	}
}

func TestSelectTrack_EmitsPlayFromZero(t *testing.T) {
	s, tr, _ := newTestSession(t, clockwork.NewFakeClock())
	joinTestRoom(t, s, tr, models.Room{ID: "ROOM"})

	track := models.Track{ID: "xyz", Title: "Picked"}
	s.SelectTrack(track)
	waitFor(t, func() bool { return len(tr.sentOfType(protocol.MsgPlay)) == 1 }, "play message")

	var p protocol.PlayPayload
	if err := json.Unmarshal(tr.sentOfType(protocol.MsgPlay)[0].Data, &p); err != nil {
		t.Fatalf("unmarshal play payload: %v", err)
	}
	if p.Track == nil || p.Track.ID != "xyz" || !floatEq(p.Time, 0) {
		t.Fatalf("unexpected play payload: %+v", p)
	}
	snap := s.Snapshot()
	if snap.Playback.CurrentTrack == nil || snap.Playback.CurrentTrack.ID != "xyz" || !snap.Loading {
		t.Fatalf("select should set the track and the loading flag: %+v", snap)
	}
}

func TestRequestNext_DoesNotTouchLocalState(t *testing.T) {
	s, tr, _ := newTestSession(t, clockwork.NewFakeClock())
	track := trackABC()
	joinTestRoom(t, s, tr, models.Room{ID: "ROOM", CurrentTrack: &track})
	before := s.Snapshot()

	s.RequestNext()
	waitFor(t, func() bool { return len(tr.sentOfType(protocol.MsgNext)) == 1 }, "next message")

	after := s.Snapshot()
	if after.Playback.Playing != before.Playback.Playing ||
		!floatEq(after.Playback.Position, before.Playback.Position) ||
		after.Playback.CurrentTrack.ID != before.Playback.CurrentTrack.ID {
		t.Fatalf("next must not mutate local playback state")
	}
}

func TestMediaEvents_UpdateStateAndClearLoading(t *testing.T) {
	s, tr, player := newTestSession(t, clockwork.NewFakeClock())
	track := trackABC()
	joinTestRoom(t, s, tr, models.Room{ID: "ROOM", CurrentTrack: &track})

	s.RequestPlay()
	waitFor(t, func() bool { return s.Snapshot().Loading }, "loading set")

	player.EmitReady()
	waitFor(t, func() bool { return !s.Snapshot().Loading }, "loading cleared on ready")

	player.EmitTick(3.2)
	waitFor(t, func() bool { return floatEq(s.Snapshot().Playback.Position, 3.2) }, "position tick applied")

	player.EmitDuration(180)
	waitFor(t, func() bool { return floatEq(s.Snapshot().Playback.Duration, 180) }, "duration applied")
}

func TestMediaReady_ReappliesPlaybackState(t *testing.T) {
	s, tr, player := newTestSession(t, clockwork.NewFakeClock())
	t1 := models.Track{ID: "t1", Title: "First"}
	joinTestRoom(t, s, tr, models.Room{ID: "ROOM", CurrentTrack: &t1})

	// The resource is still loading when the authoritative play arrives, so
	// the adapter swallows the transport calls.
	player.SetReady(false)
	t2 := models.Track{ID: "t2", Title: "Second"}
	play, _ := protocol.NewEnvelope(protocol.MsgPlay, protocol.PlayPayload{Track: &t2, Time: 5, User: "bob"})
	tr.inbound <- play
	waitFor(t, func() bool {
		snap := s.Snapshot()
		return snap.Playback.Playing && snap.Playback.CurrentTrack != nil && snap.Playback.CurrentTrack.ID == "t2"
	}, "remote play applied")
	if calls := player.SetPlayingCalls(); len(calls) != 0 {
		t.Fatalf("not-ready adapter must ignore transport calls, got %v", calls)
	}

	player.SetReady(true)
	player.EmitReady()
	waitFor(t, func() bool {
		calls := player.SetPlayingCalls()
		return len(calls) == 1 && calls[0]
	}, "adapter driven to playing on ready")

	positions := player.SetPositionCalls()
	if len(positions) == 0 || !floatEq(positions[len(positions)-1], 5) {
		t.Fatalf("ready should re-apply the held position, calls: %v", positions)
	}
}

func TestInboundSeek_ClampedToKnownDuration(t *testing.T) {
	s, tr, player := newTestSession(t, clockwork.NewFakeClock())
	track := trackABC()
	joinTestRoom(t, s, tr, models.Room{ID: "ROOM", CurrentTrack: &track})

	player.EmitDuration(100)
	waitFor(t, func() bool { return floatEq(s.Snapshot().Playback.Duration, 100) }, "duration known")

	over, _ := protocol.NewEnvelope(protocol.MsgSeek, protocol.SeekPayload{Time: 250})
	tr.inbound <- over
	waitFor(t, func() bool { return floatEq(s.Snapshot().Playback.Position, 100) }, "seek clamped to duration")
	if calls := player.SetPositionCalls(); len(calls) != 1 || !floatEq(calls[0], 100) {
		t.Fatalf("adapter should receive the clamped position, calls: %v", calls)
	}

	neg, _ := protocol.NewEnvelope(protocol.MsgSeek, protocol.SeekPayload{Time: -3})
	tr.inbound <- neg
	waitFor(t, func() bool { return floatEq(s.Snapshot().Playback.Position, 0) }, "negative seek floored at zero")
}

func TestMediaTick_IgnoredWhileDragging(t *testing.T) {
	s, tr, player := newTestSession(t, clockwork.NewFakeClock())
	track := trackABC()
	joinTestRoom(t, s, tr, models.Room{ID: "ROOM", CurrentTrack: &track})

	s.BeginSeek()
	s.UpdateSeekPreview(20)
	waitFor(t, func() bool { return floatEq(s.Snapshot().Playback.Position, 20) }, "preview position")

	player.EmitTick(99)
	// The duration event is a marker: the events channel is FIFO, so once it
	// is visible the tick before it has been processed.
	player.EmitDuration(123)
	waitFor(t, func() bool { return floatEq(s.Snapshot().Playback.Duration, 123) }, "tick consumed")
	if pos := s.Snapshot().Playback.Position; !floatEq(pos, 20) {
		t.Fatalf("media tick must not move the position during a drag, got %v", pos)
	}
}
