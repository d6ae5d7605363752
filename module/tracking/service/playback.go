package service

import (
	"errors"
	"sync"
	"time"

	"github.com/fleetsight/tracking/module/tracking/domain"
)

const defaultTickInterval = time.Second

var (
	ErrInvalidRate     = errors.New("unsupported playback rate")
	ErrIndexOutOfRange = errors.New("playback index out of range")
	ErrPlaybackClosed  = errors.New("playback closed")
)

var playbackRates = map[float64]struct{}{0.5: {}, 1: {}, 2: {}, 4: {}}

// Frame is one reported playback position.
type Frame struct {
	Index   int                    `json:"index"`
	Total   int                    `json:"total"`
	Point   domain.TrajectoryPoint `json:"point"`
	Playing bool                   `json:"playing"`
}

// Playback replays a time-ascending trajectory for one vehicle under a
// fixed-tick clock. Each tick advances the index by one and reports the
// point at that index; there is no inter-point interpolation. The tick
// goroutine is torn down on pause and close so no timer leaks.
type Playback struct {
	points  []domain.TrajectoryPoint
	base    time.Duration
	onFrame func(Frame)

	mu      sync.Mutex
	idx     int
	rate    float64
	playing bool
	closed  bool
	stopCh  chan struct{}
}

func NewPlayback(points []domain.TrajectoryPoint, base time.Duration, onFrame func(Frame)) *Playback {
	if base <= 0 {
		base = defaultTickInterval
	}
	return &Playback{points: points, base: base, onFrame: onFrame, rate: 1}
}

// Play starts (or re-paces) the tick loop at baseInterval divided by rate.
func (p *Playback) Play(rate float64) error {
	if _, ok := playbackRates[rate]; !ok {
		return ErrInvalidRate
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPlaybackClosed
	}
	p.stopTickLocked()
	p.rate = rate
	p.playing = true
	stop := make(chan struct{})
	p.stopCh = stop
	interval := time.Duration(float64(p.base) / rate)
	p.mu.Unlock()

	go p.run(stop, interval)
	p.report()
	return nil
}

func (p *Playback) run(stop chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !p.advance() {
				return
			}
		}
	}
}

// advance moves one index forward and reports. It returns false once the
// end of the sequence is reached, which auto-pauses the playback.
func (p *Playback) advance() bool {
	p.mu.Lock()
	if !p.playing || p.closed {
		p.mu.Unlock()
		return false
	}
	if p.idx >= len(p.points)-1 {
		p.playing = false
		p.stopCh = nil
		p.mu.Unlock()
		p.report()
		return false
	}
	p.idx++
	p.mu.Unlock()
	p.report()
	return true
}

func (p *Playback) Pause() {
	p.mu.Lock()
	p.stopTickLocked()
	p.playing = false
	p.mu.Unlock()
	p.report()
}

// Seek repositions the index without changing play/pause state.
func (p *Playback) Seek(index int) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPlaybackClosed
	}
	if index < 0 || index >= len(p.points) {
		p.mu.Unlock()
		return ErrIndexOutOfRange
	}
	p.idx = index
	p.mu.Unlock()
	p.report()
	return nil
}

// Step moves the index by n in either direction, clamped to the sequence
// bounds, without changing play/pause state.
func (p *Playback) Step(n int) {
	p.mu.Lock()
	if p.closed || len(p.points) == 0 {
		p.mu.Unlock()
		return
	}
	p.idx += n
	if p.idx < 0 {
		p.idx = 0
	}
	if p.idx > len(p.points)-1 {
		p.idx = len(p.points) - 1
	}
	p.mu.Unlock()
	p.report()
}

func (p *Playback) Frame() Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frameLocked()
}

func (p *Playback) Close() {
	p.mu.Lock()
	p.stopTickLocked()
	p.playing = false
	p.closed = true
	p.mu.Unlock()
}

func (p *Playback) stopTickLocked() {
	if p.stopCh != nil {
		close(p.stopCh)
		p.stopCh = nil
	}
}

func (p *Playback) frameLocked() Frame {
	f := Frame{Index: p.idx, Total: len(p.points), Playing: p.playing}
	if p.idx < len(p.points) {
		f.Point = p.points[p.idx]
	}
	return f
}

func (p *Playback) report() {
	if p.onFrame == nil {
		return
	}
	p.mu.Lock()
	f := p.frameLocked()
	closed := p.closed
	p.mu.Unlock()
	if !closed {
		p.onFrame(f)
	}
}
