package media

import (
	"sync"

	"github.com/RoyGalaxy/syncplayer-client/internal/models"
)

// Mock is a recording Adapter for tests in this module. It is ready by
// default and never touches the network; notifications are pushed by hand
// with the Emit helpers.
type Mock struct {
	mu     sync.Mutex
	events chan Event

	ready    bool
	track    *models.Track
	playing  bool
	position float64
	duration float64

	loadCalls        []models.Track
	setPositionCalls []float64
	setPlayingCalls  []bool
	unloadCalls      int
}

// NewMock returns a ready mock adapter.
func NewMock() *Mock {
	return &Mock{
		ready:  true,
		events: make(chan Event, 64),
	}
}

func (m *Mock) Load(track models.Track) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := track
	m.track = &t
	m.loadCalls = append(m.loadCalls, track)
}

func (m *Mock) Unload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track = nil
	m.playing = false
	m.position = 0
	m.unloadCalls++
}

func (m *Mock) SetPosition(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return
	}
	m.position = seconds
	m.setPositionCalls = append(m.setPositionCalls, seconds)
}

func (m *Mock) Position() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return 0, false
	}
	return m.position, true
}

func (m *Mock) Duration() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready || m.duration <= 0 {
		return 0, false
	}
	return m.duration, true
}

func (m *Mock) SetPlaying(playing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return
	}
	m.playing = playing
	m.setPlayingCalls = append(m.setPlayingCalls, playing)
}

func (m *Mock) Events() <-chan Event {
	return m.events
}

// SetReady toggles readiness so not-ready no-op paths can be exercised.
func (m *Mock) SetReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = ready
}

// SetMockPosition seeds the reported position without recording a call.
func (m *Mock) SetMockPosition(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = seconds
}

// EmitReady pushes an EventReady notification.
func (m *Mock) EmitReady() { m.events <- Event{Type: EventReady} }

// EmitTick pushes a position tick.
func (m *Mock) EmitTick(seconds float64) {
	m.events <- Event{Type: EventPositionTick, Seconds: seconds}
}

// EmitDuration pushes a duration notification.
func (m *Mock) EmitDuration(seconds float64) {
	m.events <- Event{Type: EventDurationKnown, Seconds: seconds}
}

// CurrentTrack returns the loaded track, if any.
func (m *Mock) CurrentTrack() *models.Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.track == nil {
		return nil
	}
	t := *m.track
	return &t
}

// LoadCalls returns every Load invocation in order.
func (m *Mock) LoadCalls() []models.Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Track(nil), m.loadCalls...)
}

// SetPositionCalls returns every SetPosition invocation in order.
func (m *Mock) SetPositionCalls() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.setPositionCalls...)
}

// SetPlayingCalls returns every SetPlaying invocation in order.
func (m *Mock) SetPlayingCalls() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bool(nil), m.setPlayingCalls...)
}
