package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Motion gate constants
const (
	// gateBlurSize is the kernel size for the noise-reduction blur.
	gateBlurSize = 21
	// gateNoiseThreshold is the per-pixel difference below which a pixel
	// counts as unchanged.
	gateNoiseThreshold = 25
)

// MotionGate decides whether a live scan cycle can be skipped because the
// frame barely changed since the previous one. It compares blurred grayscale
// frames and measures the ratio of pixels differing beyond a noise
// threshold. One-shot scans never consult the gate.
type MotionGate struct {
	changeRatio float64
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewMotionGate creates a gate that allows skipping when less than
// changeRatio (0..1) of the pixels changed between consecutive frames.
func NewMotionGate(changeRatio float64) *MotionGate {
	return &MotionGate{
		changeRatio: changeRatio,
		prevGray:    gocv.NewMat(),
	}
}

// ShouldSkip reports whether the scan for this frame can be skipped, along
// with the measured change ratio. The first frame after construction or
// Reset always scans.
func (g *MotionGate) ShouldSkip(frame *Frame) (bool, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if frame == nil || frame.Mat.Empty() {
		return false, 1.0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Mat.Channels() > 1 {
		gocv.CvtColor(frame.Mat, &gray, gocv.ColorBGRToGray)
	} else {
		frame.Mat.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: gateBlurSize, Y: gateBlurSize}, 0, 0, gocv.BorderDefault)

	if !g.initialized || g.prevGray.Rows() != blurred.Rows() || g.prevGray.Cols() != blurred.Cols() {
		blurred.CopyTo(&g.prevGray)
		g.initialized = true
		return false, 1.0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, g.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, gateNoiseThreshold, 255, gocv.ThresholdBinary)

	changed := gocv.CountNonZero(thresh)
	total := thresh.Rows() * thresh.Cols()

	blurred.CopyTo(&g.prevGray)

	ratio := float64(changed) / float64(total)
	return ratio < g.changeRatio, ratio
}

// Reset clears the baseline so the next frame always scans.
func (g *MotionGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.prevGray.Empty() {
		g.prevGray.Close()
		g.prevGray = gocv.NewMat()
	}
	g.initialized = false
}

// Close releases the gate's buffers.
func (g *MotionGate) Close() {
	g.Reset()
}

// SetChangeRatio updates the skip threshold. Non-positive values disable
// skipping entirely.
func (g *MotionGate) SetChangeRatio(ratio float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.changeRatio = ratio
}
