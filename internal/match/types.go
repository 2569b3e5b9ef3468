// Package match implements the four template-matching strategies and the
// candidate reduction that turns raw correlation peaks into detections.
package match

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/kishor/mergescan/internal/template"
)

// Candidate is an unconfirmed match produced by a strategy before
// deduplication and verification. Positions are centers in the coordinate
// space of the frame the strategy was given.
type Candidate struct {
	Point      image.Point
	Confidence float32
	Strategy   string
}

// Detection is the externally visible result for one template in one scan:
// the deduplicated center positions, their count and the best confidence.
// Err is set when the batch that owned this template failed.
type Detection struct {
	Template   string        `json:"template"`
	Count      int           `json:"count"`
	Positions  []image.Point `json:"positions"`
	Confidence float32       `json:"confidence,omitempty"`
	Err        string        `json:"error,omitempty"`
}

// Strategy is one interchangeable matching algorithm. Implementations may
// emit overlapping raw peaks; the reducer resolves them.
type Strategy interface {
	Name() string
	Match(pf *PreparedFrame, tpl *template.Template, threshold float32) ([]Candidate, error)
}

// PreparedFrame carries the per-cycle frame conversions every strategy
// shares: the grayscale buffer and its downscaled, pre-filtered copy for the
// accelerated passes. It is built once per scan region and read-only after.
type PreparedFrame struct {
	Gray   gocv.Mat
	Scaled gocv.Mat
	Scale  float64
}

// Prepare converts a captured BGR buffer into a PreparedFrame at the given
// pyramid scale. The caller owns the result and must Close it.
func Prepare(bgr gocv.Mat, pyramidScale float64) *PreparedFrame {
	gray := gocv.NewMat()
	if bgr.Channels() > 1 {
		gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
	} else {
		bgr.CopyTo(&gray)
	}

	if pyramidScale <= 0 || pyramidScale >= 1 {
		return &PreparedFrame{Gray: gray, Scaled: gray.Clone(), Scale: 1.0}
	}

	return &PreparedFrame{
		Gray:   gray,
		Scaled: template.Downscale(gray, pyramidScale),
		Scale:  pyramidScale,
	}
}

// Close releases the prepared buffers.
func (pf *PreparedFrame) Close() {
	if !pf.Gray.Empty() {
		pf.Gray.Close()
	}
	if !pf.Scaled.Empty() {
		pf.Scaled.Close()
	}
}
