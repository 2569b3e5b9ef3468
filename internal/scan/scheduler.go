package scan

import (
	"context"
	"fmt"
	"sync"

	"github.com/kishor/mergescan/internal/match"
	"github.com/kishor/mergescan/internal/template"
)

// scheduler fans the template set out over worker goroutines in fixed-size
// batches. Workers share the cycle's prepared sub-frames read-only; each
// worker writes only its own slice of the result array, so no result lock is
// needed.
type scheduler struct {
	strategy  match.Strategy
	batchSize int
	// tolerance is the dedup radius in pixels; 0 derives it per template
	// from the template size.
	tolerance int
	// baseThreshold applies to templates without their own threshold.
	baseThreshold float32
}

// run matches every template against every sub-frame and returns one
// detection per template, in input order. cleanup runs once all workers have
// finished, even when the context deadline fires first; on deadline the
// partial results are discarded and ctx.Err is returned while the workers
// wind down in the background.
func (s *scheduler) run(ctx context.Context, subs []subFrame, tpls []*template.Template, cleanup func()) ([]match.Detection, error) {
	results := make([]match.Detection, len(tpls))

	batch := s.batchSize
	if batch <= 0 {
		batch = len(tpls)
	}

	var wg sync.WaitGroup
	for start := 0; start < len(tpls); start += batch {
		end := start + batch
		if end > len(tpls) {
			end = len(tpls)
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			s.runBatch(ctx, subs, tpls[start:end], results[start:end])
		}(start, end)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		if cleanup != nil {
			cleanup()
		}
		close(done)
	}()

	select {
	case <-done:
		return results, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runBatch fills out[i] for each template in the batch. A panic inside a
// matcher poisons only this batch: the remaining templates get error-flagged
// zero results and every other batch proceeds.
func (s *scheduler) runBatch(ctx context.Context, subs []subFrame, tpls []*template.Template, out []match.Detection) {
	defer func() {
		if r := recover(); r != nil {
			for i, tpl := range tpls {
				if out[i].Template == "" {
					out[i] = match.Detection{
						Template: tpl.Name,
						Err:      fmt.Sprintf("matcher panic: %v", r),
					}
				}
			}
		}
	}()

	for i, tpl := range tpls {
		if ctx.Err() != nil {
			out[i] = match.Detection{Template: tpl.Name, Err: "scan cycle cancelled"}
			continue
		}
		out[i] = s.matchOne(subs, tpl)
	}
}

// matchOne runs the strategy for a single template over every sub-frame,
// remaps candidate centers to screen coordinates and reduces overlaps.
func (s *scheduler) matchOne(subs []subFrame, tpl *template.Template) match.Detection {
	threshold := tpl.Threshold
	if threshold <= 0 {
		threshold = s.baseThreshold
	}

	var all []match.Candidate
	for _, sub := range subs {
		candidates, err := s.strategy.Match(sub.pf, tpl, threshold)
		if err != nil {
			return match.Detection{Template: tpl.Name, Err: err.Error()}
		}
		for _, c := range candidates {
			c.Point = c.Point.Add(sub.origin)
			all = append(all, c)
		}
	}

	reduced := match.Reduce(all, s.toleranceFor(tpl))

	det := match.Detection{Template: tpl.Name, Count: len(reduced)}
	for _, c := range reduced {
		det.Positions = append(det.Positions, c.Point)
		if c.Confidence > det.Confidence {
			det.Confidence = c.Confidence
		}
	}
	return det
}

func (s *scheduler) toleranceFor(tpl *template.Template) int {
	if s.tolerance > 0 {
		return s.tolerance
	}
	min := tpl.Width
	if tpl.Height < min {
		min = tpl.Height
	}
	if min/2 < 5 {
		return 5
	}
	return min / 2
}
