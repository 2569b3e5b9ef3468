package match

import (
	"image"
	"sort"

	"gocv.io/x/gocv"

	"github.com/kishor/mergescan/internal/template"
)

// Hybrid default tuning.
const (
	// DefaultRecallMargin is subtracted from the caller's threshold for the
	// cheap accelerated pass so borderline matches survive to verification.
	DefaultRecallMargin = 0.08
	// DefaultVerifyTopK bounds how many cheap-pass candidates get the
	// expensive full-resolution verification.
	DefaultVerifyTopK = 100
)

// VerificationFilter marks candidates whose positions are already known to
// be stable, letting hybrid skip their expensive verification pass. A filter
// only ever removes verification work; skipped candidates are still
// reported.
type VerificationFilter interface {
	SkipVerification(tpl string, pt image.Point) bool
}

// Hybrid runs the accelerated pass with a deliberately lowered threshold for
// recall, then re-verifies the top candidates against the full-resolution
// frame in a small window around each. Recall from the cheap pass, precision
// from the expensive one, with the expensive pass bounded to TopK windows.
type Hybrid struct {
	Accelerated  *Accelerated
	RecallMargin float32
	TopK         int
	Filter       VerificationFilter
}

func (s *Hybrid) Name() string { return "hybrid" }

func (s *Hybrid) Match(pf *PreparedFrame, tpl *template.Template, threshold float32) ([]Candidate, error) {
	margin := s.RecallMargin
	if margin <= 0 {
		margin = DefaultRecallMargin
	}
	topK := s.TopK
	if topK <= 0 {
		topK = DefaultVerifyTopK
	}

	cheap, err := s.Accelerated.Match(pf, tpl, threshold-margin)
	if err != nil {
		return nil, err
	}

	sort.Slice(cheap, func(i, j int) bool {
		if cheap[i].Confidence != cheap[j].Confidence {
			return cheap[i].Confidence > cheap[j].Confidence
		}
		// Deterministic order for equal confidences.
		if cheap[i].Point.Y != cheap[j].Point.Y {
			return cheap[i].Point.Y < cheap[j].Point.Y
		}
		return cheap[i].Point.X < cheap[j].Point.X
	})
	if len(cheap) > topK {
		cheap = cheap[:topK]
	}

	var confirmed []Candidate
	for _, c := range cheap {
		if s.Filter != nil && s.Filter.SkipVerification(tpl.Name, c.Point) {
			c.Strategy = s.Name()
			confirmed = append(confirmed, c)
			continue
		}

		v, ok := verifyWindow(pf.Gray, tpl, c.Point, threshold)
		if !ok {
			continue
		}
		v.Strategy = s.Name()
		confirmed = append(confirmed, v)
	}
	return confirmed, nil
}

// verifyWindow re-scores one candidate with exhaustive-style correlation
// restricted to a small full-resolution window around its position.
func verifyWindow(gray gocv.Mat, tpl *template.Template, pt image.Point, threshold float32) (Candidate, bool) {
	tGray := tpl.Gray()
	tw, th := tGray.Cols(), tGray.Rows()

	pad := tw / 4
	if th/4 > pad {
		pad = th / 4
	}
	if pad < 8 {
		pad = 8
	}

	window := image.Rect(
		pt.X-tw/2-pad,
		pt.Y-th/2-pad,
		pt.X+tw/2+pad+1,
		pt.Y+th/2+pad+1,
	).Intersect(image.Rect(0, 0, gray.Cols(), gray.Rows()))

	if window.Dx() < tw || window.Dy() < th {
		return Candidate{}, false
	}

	view := gray.Region(window)
	defer view.Close()

	result := correlateCPU(view, tGray)
	defer result.Close()

	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
	if maxVal < threshold {
		return Candidate{}, false
	}

	return Candidate{
		Point:      center(maxLoc, tw, th).Add(window.Min),
		Confidence: maxVal,
	}, true
}
