package scan

import (
	"image"

	"github.com/kishor/mergescan/internal/capture"
	"github.com/kishor/mergescan/internal/match"
)

// subFrame is one matchable slice of the captured frame. origin is the screen
// coordinate of the slice's top-left pixel, so candidate centers remap to
// screen space with a single offset add.
type subFrame struct {
	pf     *match.PreparedFrame
	origin image.Point
}

func (s *subFrame) close() {
	if s.pf != nil {
		s.pf.Close()
	}
}

// splitRegions cuts the captured frame into the configured ROI slices and
// prepares each one for matching. With no ROIs the whole frame is one slice.
// ROI rectangles are screen coordinates; slices are clipped to the capture and
// empty intersections are dropped.
func splitRegions(frame *capture.Frame, rois []Rect, pyramidScale float64) []subFrame {
	if len(rois) == 0 {
		return []subFrame{{
			pf:     match.Prepare(frame.Mat, pyramidScale),
			origin: frame.Region.Min,
		}}
	}

	subs := make([]subFrame, 0, len(rois))
	for _, roi := range rois {
		screen := roi.ToRectangle().Intersect(frame.Region)
		if screen.Empty() {
			continue
		}

		local := screen.Sub(frame.Region.Min)
		view := frame.Mat.Region(local)
		sub := subFrame{
			pf:     match.Prepare(view, pyramidScale),
			origin: screen.Min,
		}
		view.Close()
		subs = append(subs, sub)
	}

	if len(subs) == 0 {
		// Every ROI missed the capture; fall back to the full frame rather
		// than silently scanning nothing.
		return []subFrame{{
			pf:     match.Prepare(frame.Mat, pyramidScale),
			origin: frame.Region.Min,
		}}
	}
	return subs
}

func closeSubFrames(subs []subFrame) {
	for i := range subs {
		subs[i].close()
	}
}
