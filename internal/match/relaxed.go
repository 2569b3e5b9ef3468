package match

import (
	"github.com/kishor/mergescan/internal/template"
)

// Relaxed is the express mode: the accelerated pass at a loosened threshold
// with no secondary verification. Callers choose it when minimum latency
// matters more than precision, typically continuous live scanning.
type Relaxed struct {
	Accelerated  *Accelerated
	RecallMargin float32
}

func (s *Relaxed) Name() string { return "relaxed" }

func (s *Relaxed) Match(pf *PreparedFrame, tpl *template.Template, threshold float32) ([]Candidate, error) {
	margin := s.RecallMargin
	if margin <= 0 {
		margin = DefaultRecallMargin
	}

	candidates, err := s.Accelerated.Match(pf, tpl, threshold-margin)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		candidates[i].Strategy = s.Name()
	}
	return candidates, nil
}
