package match

import (
	"image"

	"github.com/kishor/mergescan/internal/template"
)

// Accelerated correlates downscaled, pre-filtered copies of frame and
// template on the backend device, then rescales peak positions back to
// full-resolution coordinates. Faster than exhaustive with a non-zero
// false-positive and false-negative rate.
type Accelerated struct {
	Backend  Backend
	MaxPeaks int
}

func (s *Accelerated) Name() string { return "accelerated" }

func (s *Accelerated) Match(pf *PreparedFrame, tpl *template.Template, threshold float32) ([]Candidate, error) {
	scaledTpl := tpl.GrayAt(pf.Scale)
	tw, th := scaledTpl.Cols(), scaledTpl.Rows()
	if tw > pf.Scaled.Cols() || th > pf.Scaled.Rows() {
		return nil, nil
	}

	backend := s.Backend
	if backend == nil {
		backend = cpuBackend{}
	}

	result, err := backend.Correlate(pf.Scaled, scaledTpl)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	peaks := collectPeaks(&result, tw, th, threshold, s.MaxPeaks)

	candidates := make([]Candidate, 0, len(peaks))
	for _, p := range peaks {
		c := center(p.loc, tw, th)
		candidates = append(candidates, Candidate{
			Point:      upscale(c, pf.Scale),
			Confidence: p.val,
			Strategy:   s.Name(),
		})
	}
	return candidates, nil
}

func upscale(pt image.Point, scale float64) image.Point {
	if scale <= 0 || scale >= 1 {
		return pt
	}
	return image.Pt(
		int(float64(pt.X)/scale+0.5),
		int(float64(pt.Y)/scale+0.5),
	)
}
