package service

import (
	"sync"
	"testing"
	"time"

	"github.com/fleetsight/tracking/module/tracking/domain"
)

func testPoints(n int) []domain.TrajectoryPoint {
	points := make([]domain.TrajectoryPoint, n)
	base := time.Unix(1715003456, 0)
	for i := range points {
		points[i] = domain.TrajectoryPoint{
			Lat:       24.86 + float64(i)*0.001,
			Lng:       67.00 + float64(i)*0.001,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return points
}

type frameRecorder struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *frameRecorder) record(f Frame) {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
}

func (r *frameRecorder) last() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return Frame{}, false
	}
	return r.frames[len(r.frames)-1], true
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestPlayback_PlaysToEndAndHalts(t *testing.T) {
	rec := &frameRecorder{}
	p := NewPlayback(testPoints(5), 5*time.Millisecond, rec.record)
	defer p.Close()

	if err := p.Play(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		f := p.Frame()
		return f.Index == 4 && !f.Playing
	})

	last, ok := rec.last()
	if !ok {
		t.Fatal("expected frames to be reported")
	}
	if last.Index != 4 || last.Playing {
		t.Errorf("final frame: %+v", last)
	}
	if last.Point.Lat != 24.86+4*0.001 {
		t.Errorf("final point lat %f", last.Point.Lat)
	}
}

func TestPlayback_InvalidRate(t *testing.T) {
	p := NewPlayback(testPoints(3), time.Millisecond, nil)
	defer p.Close()

	if err := p.Play(3); err != ErrInvalidRate {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
	for _, rate := range []float64{0.5, 1, 2, 4} {
		if err := p.Play(rate); err != nil {
			t.Fatalf("rate %v: unexpected error %v", rate, err)
		}
	}
}

func TestPlayback_PauseStopsAdvancing(t *testing.T) {
	p := NewPlayback(testPoints(1000), 2*time.Millisecond, nil)
	defer p.Close()

	if err := p.Play(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, time.Second, func() bool { return p.Frame().Index > 2 })

	p.Pause()
	idx := p.Frame().Index
	time.Sleep(20 * time.Millisecond)
	if got := p.Frame().Index; got != idx {
		t.Errorf("index advanced after pause: %d -> %d", idx, got)
	}
	if p.Frame().Playing {
		t.Error("expected paused state")
	}
}

func TestPlayback_SeekWhilePausedStaysPaused(t *testing.T) {
	p := NewPlayback(testPoints(10), time.Second, nil)
	defer p.Close()

	if err := p.Seek(7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := p.Frame()
	if f.Index != 7 || f.Playing {
		t.Errorf("frame after seek: %+v", f)
	}
}

func TestPlayback_SeekWhilePlayingKeepsPlaying(t *testing.T) {
	p := NewPlayback(testPoints(1000), 2*time.Millisecond, nil)
	defer p.Close()

	if err := p.Play(2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Seek(500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := p.Frame()
	if !f.Playing {
		t.Error("expected playback still playing after seek")
	}
	if f.Index < 500 {
		t.Errorf("expected index at or past 500, got %d", f.Index)
	}
}

func TestPlayback_SeekOutOfRange(t *testing.T) {
	p := NewPlayback(testPoints(10), time.Second, nil)
	defer p.Close()

	if err := p.Seek(-1); err != ErrIndexOutOfRange {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if err := p.Seek(10); err != ErrIndexOutOfRange {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestPlayback_StepClamps(t *testing.T) {
	p := NewPlayback(testPoints(10), time.Second, nil)
	defer p.Close()

	p.Step(3)
	if got := p.Frame().Index; got != 3 {
		t.Errorf("expected index 3, got %d", got)
	}
	p.Step(-5)
	if got := p.Frame().Index; got != 0 {
		t.Errorf("expected clamp to 0, got %d", got)
	}
	p.Step(100)
	if got := p.Frame().Index; got != 9 {
		t.Errorf("expected clamp to 9, got %d", got)
	}
}

func TestPlayback_CloseRejectsPlay(t *testing.T) {
	p := NewPlayback(testPoints(10), time.Millisecond, nil)
	p.Close()

	if err := p.Play(1); err != ErrPlaybackClosed {
		t.Fatalf("expected ErrPlaybackClosed, got %v", err)
	}
	if err := p.Seek(1); err != ErrPlaybackClosed {
		t.Fatalf("expected ErrPlaybackClosed, got %v", err)
	}
}
