package media

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/RoyGalaxy/syncplayer-client/internal/models"
)

// durationHeader carries the stream length in seconds when the media host
// knows it up front.
const durationHeader = "X-Content-Duration"

// StreamPlayerConfig holds configuration for the network stream player.
type StreamPlayerConfig struct {
	// StreamBaseURL is the media host; a track streams from
	// {StreamBaseURL}/{trackID}.
	StreamBaseURL string
	// TickInterval is the position report cadence while playing.
	TickInterval time.Duration
	ProbeTimeout time.Duration
}

// DefaultStreamPlayerConfig returns the default player configuration.
func DefaultStreamPlayerConfig(baseURL string) StreamPlayerConfig {
	return StreamPlayerConfig{
		StreamBaseURL: baseURL,
		TickInterval:  300 * time.Millisecond,
		ProbeTimeout:  10 * time.Second,
	}
}

// StreamPlayer is an Adapter over a network-streamed resource. It probes the
// stream for availability and duration on Load, then tracks the playback
// position against an injected clock, reporting it as a restartable sequence
// of ticks that terminates on Unload.
type StreamPlayer struct {
	cfg    StreamPlayerConfig
	clock  clockwork.Clock
	client *http.Client
	events chan Event

	mu       sync.Mutex
	track    *models.Track
	ready    bool
	playing  bool
	position float64
	duration float64 // 0 while unknown
	lastAt   time.Time
	gen      int // load generation; stale probe/sampler goroutines exit
	stop     chan struct{}
}

// NewStreamPlayer creates a stream player. The clock is injected so tests
// can drive position accounting deterministically.
func NewStreamPlayer(cfg StreamPlayerConfig, clock clockwork.Clock) *StreamPlayer {
	return &StreamPlayer{
		cfg:    cfg,
		clock:  clock,
		client: &http.Client{Timeout: cfg.ProbeTimeout},
		events: make(chan Event, 64),
	}
}

func (p *StreamPlayer) Load(track models.Track) {
	p.mu.Lock()
	p.resetLocked()
	t := track
	p.track = &t
	gen := p.gen
	stop := p.stop
	p.mu.Unlock()

	go p.probe(gen, stop, track)
}

func (p *StreamPlayer) Unload() {
	p.mu.Lock()
	p.resetLocked()
	p.track = nil
	p.mu.Unlock()
}

// resetLocked bumps the load generation and tears down the current sampler.
func (p *StreamPlayer) resetLocked() {
	p.gen++
	if p.stop != nil {
		close(p.stop)
	}
	p.stop = make(chan struct{})
	p.ready = false
	p.playing = false
	p.position = 0
	p.duration = 0
}

// probe checks the stream is reachable and extracts a duration hint, then
// starts the position sampler.
func (p *StreamPlayer) probe(gen int, stop chan struct{}, track models.Track) {
	url := fmt.Sprintf("%s/%s", p.cfg.StreamBaseURL, track.ID)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		log.Error().Err(err).Str("track_id", track.ID).Msg("stream probe request failed")
		return
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := p.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("track_id", track.ID).Msg("stream unreachable; staying not ready")
		return
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		log.Warn().Int("status", resp.StatusCode).Str("track_id", track.ID).Msg("stream probe rejected; staying not ready")
		return
	}

	var duration float64
	if v := resp.Header.Get(durationHeader); v != "" {
		if d, err := strconv.ParseFloat(v, 64); err == nil && d > 0 {
			duration = d
		}
	}

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.ready = true
	p.duration = duration
	p.lastAt = p.clock.Now()
	p.mu.Unlock()

	p.emit(Event{Type: EventReady})
	if duration > 0 {
		p.emit(Event{Type: EventDurationKnown, Seconds: duration})
	}

	log.Debug().Str("track_id", track.ID).Float64("duration", duration).Msg("stream ready")
	go p.sample(gen, stop)
}

// sample emits position ticks while playing. It terminates when the load
// generation it belongs to is torn down.
func (p *StreamPlayer) sample(gen int, stop chan struct{}) {
	ticker := p.clock.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			p.mu.Lock()
			if gen != p.gen {
				p.mu.Unlock()
				return
			}
			if !p.ready || !p.playing {
				p.mu.Unlock()
				continue
			}
			p.accountLocked()
			pos := p.position
			p.mu.Unlock()
			p.emit(Event{Type: EventPositionTick, Seconds: pos})
		}
	}
}

// accountLocked folds elapsed wall time into the position while playing.
func (p *StreamPlayer) accountLocked() {
	now := p.clock.Now()
	if p.playing {
		p.position += now.Sub(p.lastAt).Seconds()
		if p.duration > 0 && p.position > p.duration {
			p.position = p.duration
		}
	}
	p.lastAt = now
}

func (p *StreamPlayer) SetPosition(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready {
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	if p.duration > 0 && seconds > p.duration {
		seconds = p.duration
	}
	p.position = seconds
	p.lastAt = p.clock.Now()
}

func (p *StreamPlayer) Position() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready {
		return 0, false
	}
	p.accountLocked()
	return p.position, true
}

func (p *StreamPlayer) Duration() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready || p.duration <= 0 {
		return 0, false
	}
	return p.duration, true
}

func (p *StreamPlayer) SetPlaying(playing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready {
		return
	}
	p.accountLocked()
	p.playing = playing
}

func (p *StreamPlayer) Events() <-chan Event {
	return p.events
}

func (p *StreamPlayer) emit(ev Event) {
	select {
	case p.events <- ev:
	default:
		log.Warn().Int("type", int(ev.Type)).Msg("media event buffer full, dropping event")
	}
}
