package match

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// DefaultMaxPeaks bounds how many raw peaks a strategy extracts per template
// from one correlation map.
const DefaultMaxPeaks = 64

var suppressColor = color.RGBA{}

type peak struct {
	loc image.Point // top-left of the match in the correlated image
	val float32
}

// collectPeaks iteratively picks the best correlation location at or above
// threshold, then suppresses its neighborhood so the next iteration finds
// the next distinct peak. The result Mat is mutated in place.
func collectPeaks(result *gocv.Mat, tw, th int, threshold float32, maxPeaks int) []peak {
	if maxPeaks <= 0 {
		maxPeaks = DefaultMaxPeaks
	}

	var peaks []peak
	for len(peaks) < maxPeaks {
		_, maxVal, _, maxLoc := gocv.MinMaxLoc(*result)
		if maxVal < threshold {
			break
		}
		peaks = append(peaks, peak{loc: maxLoc, val: maxVal})

		gocv.Rectangle(result,
			image.Rect(maxLoc.X-tw/2, maxLoc.Y-th/2, maxLoc.X+tw/2+1, maxLoc.Y+th/2+1),
			suppressColor, -1)
	}
	return peaks
}

// center converts a correlation top-left location to the match center.
func center(loc image.Point, tw, th int) image.Point {
	return image.Pt(loc.X+tw/2, loc.Y+th/2)
}

// BestMatch correlates a raw template buffer against a frame buffer and
// returns the best match center and its confidence. Calibration sweeps use
// this to probe candidate scales outside the strategy pipeline.
func BestMatch(frame, tpl gocv.Mat) (image.Point, float32) {
	if tpl.Cols() > frame.Cols() || tpl.Rows() > frame.Rows() {
		return image.Point{}, 0
	}

	result := correlateCPU(frame, tpl)
	defer result.Close()

	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
	return center(maxLoc, tpl.Cols(), tpl.Rows()), maxVal
}
