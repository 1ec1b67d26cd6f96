package models

// Track is a single playable item fetched from the catalog service.
// Duration is zero until the media resource has reported it.
type Track struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Artist    string  `json:"artist"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
}

// Participant is a display-only room member. Names are not unique.
type Participant struct {
	Name string `json:"name"`
}

// Room is the client's cached copy of a synchronization group. The
// coordinator owns the authoritative version; roster and queue pushes
// refresh this copy.
type Room struct {
	ID           string        `json:"id"`
	Queue        []Track       `json:"queue"`
	Participants []Participant `json:"participants"`
	CurrentTrack *Track        `json:"currentTrack,omitempty"`
}

// Origin tags a playback state transition with its cause. Adapter-driving
// code is a function of (new state, origin): only remotely caused position
// writes may be pushed into the media element, which is what keeps a remote
// correction from being re-broadcast as a fresh local seek.
type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
)

func (o Origin) String() string {
	if o == OriginRemote {
		return "remote"
	}
	return "local"
}

// UnknownDuration is the placeholder duration used while the media resource
// has not reported a real one. Keeping it above zero keeps progress math
// well-defined.
const UnknownDuration = 1.0

// PlaybackState is one client's view of the room's shared transport state.
// Exactly one exists per joined room, owned by the session loop.
type PlaybackState struct {
	CurrentTrack *Track
	Playing      bool
	Position     float64
	Duration     float64
	LastActor    string
	Origin       Origin
}

// NewPlaybackState returns the reset state used on join and on leave.
func NewPlaybackState() PlaybackState {
	return PlaybackState{Duration: UnknownDuration}
}

// ResetForTrack re-initializes the state for a track change. Position comes
// from the triggering message, not unconditionally from zero.
func (s *PlaybackState) ResetForTrack(track *Track, position float64, actor string) {
	s.CurrentTrack = track
	s.Position = position
	s.Duration = UnknownDuration
	s.LastActor = actor
}

// HasTrack reports whether a track is currently bound.
func (s *PlaybackState) HasTrack() bool {
	return s.CurrentTrack != nil
}
