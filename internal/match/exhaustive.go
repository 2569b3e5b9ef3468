package match

import (
	"github.com/kishor/mergescan/internal/template"
)

// Exhaustive scores every pixel offset of the full-resolution frame with
// normalized cross-correlation. It is the slowest strategy and the accuracy
// reference the others are measured against.
type Exhaustive struct {
	MaxPeaks int
}

func (s *Exhaustive) Name() string { return "exhaustive" }

func (s *Exhaustive) Match(pf *PreparedFrame, tpl *template.Template, threshold float32) ([]Candidate, error) {
	gray := tpl.Gray()
	tw, th := gray.Cols(), gray.Rows()
	if tw > pf.Gray.Cols() || th > pf.Gray.Rows() {
		return nil, nil
	}

	result := correlateCPU(pf.Gray, gray)
	defer result.Close()

	peaks := collectPeaks(&result, tw, th, threshold, s.MaxPeaks)

	candidates := make([]Candidate, 0, len(peaks))
	for _, p := range peaks {
		candidates = append(candidates, Candidate{
			Point:      center(p.loc, tw, th),
			Confidence: p.val,
			Strategy:   s.Name(),
		})
	}
	return candidates, nil
}
