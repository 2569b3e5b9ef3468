package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MockGrabber plays back pre-built frames for testing
type MockGrabber struct {
	frames   []*gocv.Mat
	index    int
	loop     bool
	mu       sync.Mutex
	open     bool
	captures int
	failNext bool
}

func NewMockGrabber(frames []*gocv.Mat, loop bool) *MockGrabber {
	return &MockGrabber{
		frames: frames,
		loop:   loop,
		open:   true,
	}
}

func (g *MockGrabber) Capture(region image.Rectangle) (*Frame, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.open {
		return nil, ErrGrabberClosed
	}
	if g.failNext {
		g.failNext = false
		return nil, ErrNoFrame
	}
	if len(g.frames) == 0 {
		return nil, ErrNoFrame
	}

	if g.index >= len(g.frames) {
		if !g.loop {
			return nil, ErrNoFrame
		}
		g.index = 0
	}

	src := g.frames[g.index]
	g.index++
	g.captures++

	cropped, actual := cropToRegion(*src, region)
	return &Frame{
		Mat:       cropped,
		Region:    actual,
		Timestamp: time.Now(),
	}, nil
}

func (g *MockGrabber) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open = false
	return nil
}

// Captures reports how many frames were handed out, so tests can assert the
// engine captured exactly once per cycle.
func (g *MockGrabber) Captures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.captures
}

// FailNext makes the next Capture return ErrNoFrame.
func (g *MockGrabber) FailNext() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext = true
}

// SetFrames replaces the frame sequence
func (g *MockGrabber) SetFrames(frames []*gocv.Mat) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.frames = frames
	g.index = 0
}
