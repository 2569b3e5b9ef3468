package match

import (
	"math"
	"sort"
)

// Reduce performs non-maximum suppression over raw candidates: sorted by
// confidence descending, a candidate is kept only if no already-kept
// candidate lies within tolerance pixels. This guarantees a visually
// identical item appearing once is never double-counted.
func Reduce(candidates []Candidate, tolerance int) []Candidate {
	if len(candidates) == 0 {
		return nil
	}
	if tolerance < 0 {
		tolerance = 0
	}

	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		if sorted[i].Point.Y != sorted[j].Point.Y {
			return sorted[i].Point.Y < sorted[j].Point.Y
		}
		return sorted[i].Point.X < sorted[j].Point.X
	})

	kept := sorted[:0]
	for _, c := range sorted {
		suppressed := false
		for _, k := range kept {
			dx := float64(c.Point.X - k.Point.X)
			dy := float64(c.Point.Y - k.Point.Y)
			if math.Hypot(dx, dy) <= float64(tolerance) {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}
	return kept
}
