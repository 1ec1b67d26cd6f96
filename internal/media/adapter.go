package media

import "github.com/RoyGalaxy/syncplayer-client/internal/models"

// EventType identifies a playback resource notification.
type EventType int

const (
	// EventReady fires once the underlying resource can accept transport
	// operations for the loaded track.
	EventReady EventType = iota
	// EventPositionTick reports the current position on a short cadence
	// while the resource is playing.
	EventPositionTick
	// EventDurationKnown fires when the resource learns the real track
	// duration.
	EventDurationKnown
)

// Event is a single notification from the playback resource.
type Event struct {
	Type    EventType
	Seconds float64
}

// Adapter wraps one exclusively-owned playback resource. Every operation is
// a silent no-op while the resource is not ready for the loaded track;
// callers treat "not ready" as a valid state, never a fault.
type Adapter interface {
	// Load binds the resource to a track's stream, replacing any previous
	// binding. Readiness is reported asynchronously via EventReady.
	Load(track models.Track)
	// Unload releases the current binding and terminates its position
	// sampling.
	Unload()
	// SetPosition seeks to the given second.
	SetPosition(seconds float64)
	// Position returns the current position. ok is false while not ready.
	Position() (seconds float64, ok bool)
	// Duration returns the reported duration. ok is false while unknown.
	Duration() (seconds float64, ok bool)
	// SetPlaying starts or stops playback.
	SetPlaying(playing bool)
	// Events is the notification stream. One consumer is expected.
	Events() <-chan Event
}
