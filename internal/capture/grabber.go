// Package capture provides the frame source the detection engine scans, plus
// the motion gate that lets a live loop skip visually unchanged frames.
package capture

import (
	"errors"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// ErrGrabberClosed is returned when capturing from a closed grabber.
var ErrGrabberClosed = errors.New("grabber is closed")

// ErrNoFrame is returned when the source produced no usable frame.
var ErrNoFrame = errors.New("no frame available")

// Frame is a single captured pixel buffer. It is captured exactly once per
// scan cycle and shared read-only by every matching task in that cycle; the
// cycle owns it and closes it when done.
type Frame struct {
	Mat       gocv.Mat
	Region    image.Rectangle // screen coordinates of the captured area
	Timestamp time.Time
}

// Close releases the frame buffer.
func (f *Frame) Close() {
	if f != nil && !f.Mat.Empty() {
		f.Mat.Close()
	}
}

// Bounds returns the frame-local pixel rectangle.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Mat.Cols(), f.Mat.Rows())
}

// Grabber produces frames for the engine. Implementations must be safe for
// use from the live-scan goroutine; the engine calls Capture exactly once
// per cycle.
type Grabber interface {
	Capture(region image.Rectangle) (*Frame, error)
	Close() error
}

// cropToRegion cuts the requested screen region out of a full source Mat.
// The source is assumed to start at screen origin. The returned Mat is a
// fresh copy owned by the caller.
func cropToRegion(src gocv.Mat, region image.Rectangle) (gocv.Mat, image.Rectangle) {
	full := image.Rect(0, 0, src.Cols(), src.Rows())
	if region.Empty() {
		return src.Clone(), full
	}

	clipped := region.Intersect(full)
	if clipped.Empty() {
		return src.Clone(), full
	}

	view := src.Region(clipped)
	defer view.Close()
	return view.Clone(), clipped
}
