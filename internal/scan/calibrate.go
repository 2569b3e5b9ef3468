package scan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/kishor/mergescan/internal/match"
	"github.com/kishor/mergescan/internal/template"
)

// ErrNoReferences is returned when calibration runs without any reference
// templates in the store.
var ErrNoReferences = errors.New("no reference templates loaded")

// Calibration sweep bounds. Factors below 0.8 or above 2.0 mean the source
// is scaled too far from the template captures to match reliably anyway.
const (
	calibrateMin  = 0.8
	calibrateMax  = 2.0
	calibrateStep = 0.1
)

// Calibrate sweeps candidate resize factors against one captured frame,
// scoring each by the mean best-match confidence of the reference templates.
// The winning factor is applied to the store, cached state is dropped and
// the factor is returned. Calibration shares the cycle lock, so it never
// races a scan.
func (e *Engine) Calibrate(ctx context.Context) (float64, error) {
	e.scanMu.Lock()
	defer e.scanMu.Unlock()

	refs := e.store.References()
	if len(refs) == 0 {
		return e.store.ResizeFactor(), ErrNoReferences
	}

	cfg := e.Config()
	frame, err := e.grabber.Capture(cfg.Region.ToRectangle())
	if err != nil {
		return e.store.ResizeFactor(), fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	pf := match.Prepare(frame.Mat, 1.0)
	frame.Close()
	defer pf.Close()

	bestFactor := e.store.ResizeFactor()
	bestScore := float32(-1)

	steps := int(math.Round((calibrateMax-calibrateMin)/calibrateStep)) + 1
	for i := 0; i < steps; i++ {
		if ctx.Err() != nil {
			return e.store.ResizeFactor(), ctx.Err()
		}
		factor := math.Round((calibrateMin+calibrateStep*float64(i))*10) / 10

		var sum float32
		for _, ref := range refs {
			scaled := template.Rescale(ref.Base(), factor)
			_, score := match.BestMatch(pf.Gray, scaled)
			scaled.Close()
			sum += score
		}

		mean := sum / float32(len(refs))
		if mean > bestScore {
			bestScore = mean
			bestFactor = factor
		}
	}

	e.store.Rescale(bestFactor)
	e.memo.Invalidate()
	e.history.Reset()

	e.cfgMu.Lock()
	e.cfg.ResizeFactor = bestFactor
	e.cfgMu.Unlock()

	log.Printf("[scan] calibration picked resize factor %.1f (mean confidence %.3f)", bestFactor, bestScore)
	return bestFactor, nil
}
