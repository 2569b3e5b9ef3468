package capture

import (
	"errors"
	"sync"
	"time"

	"gocv.io/x/gocv"
	"image"
)

// VideoGrabber reads frames from a gocv video source: a capture device ID,
// a video file, or a stream URL. It is the replay/bench source; production
// deployments inject their platform's screen grabber behind the same
// interface.
type VideoGrabber struct {
	source  interface{}
	capture *gocv.VideoCapture
	mu      sync.Mutex
	open    bool
}

// NewVideoGrabber creates a grabber for the given source (int device ID or
// string path/URL). The source is opened lazily on first Capture.
func NewVideoGrabber(source interface{}) *VideoGrabber {
	return &VideoGrabber{source: source}
}

// Capture reads one frame and crops it to the requested screen region.
func (g *VideoGrabber) Capture(region image.Rectangle) (*Frame, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.capture == nil {
		if g.open {
			return nil, ErrGrabberClosed
		}
		cap, err := gocv.OpenVideoCapture(g.source)
		if err != nil {
			return nil, err
		}
		g.capture = cap
		g.open = true
	}

	mat := gocv.NewMat()
	if ok := g.capture.Read(&mat); !ok {
		mat.Close()
		return nil, ErrNoFrame
	}
	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}
	defer mat.Close()

	cropped, actual := cropToRegion(mat, region)
	return &Frame{
		Mat:       cropped,
		Region:    actual,
		Timestamp: time.Now(),
	}, nil
}

// Close releases the underlying video source.
func (g *VideoGrabber) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.capture == nil {
		return nil
	}
	err := g.capture.Close()
	g.capture = nil
	return err
}
