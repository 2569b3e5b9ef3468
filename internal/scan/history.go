package scan

import (
	"image"
	"sync"
	"time"
)

const (
	// trackTolerance is the pixel radius within which two cycle positions
	// count as the same on-screen item.
	trackTolerance = 8
	// trackMissLimit is how many consecutive cycles a tracked position may
	// go unseen before it is evicted.
	trackMissLimit = 2
)

type trackEntry struct {
	pt       image.Point
	hits     int
	misses   int
	lastSeen time.Time
}

// StabilityTracker remembers where each template was found across cycles. A
// position confirmed StableAfter cycles in a row counts as stable, and the
// hybrid strategy may then skip its expensive verification pass for it.
// Stale entries age out so the tracker never vouches for positions it has
// not seen recently.
type StabilityTracker struct {
	mu          sync.Mutex
	stableAfter int
	maxAge      time.Duration
	entries     map[string][]*trackEntry

	now func() time.Time
}

// NewStabilityTracker builds a tracker. stableAfter is the consecutive
// confirmation count a position needs; maxAge bounds how old a confirmation
// may be before the entry is dropped.
func NewStabilityTracker(stableAfter int, maxAge time.Duration) *StabilityTracker {
	if stableAfter <= 0 {
		stableAfter = 3
	}
	if maxAge <= 0 {
		maxAge = 10 * time.Second
	}
	return &StabilityTracker{
		stableAfter: stableAfter,
		maxAge:      maxAge,
		entries:     make(map[string][]*trackEntry),
		now:         time.Now,
	}
}

// Update records one cycle's deduplicated positions for a template. Seen
// positions gain a confirmation; tracked positions not seen this cycle take a
// miss and are evicted after trackMissLimit consecutive misses or when older
// than the max age.
func (st *StabilityTracker) Update(template string, positions []image.Point) {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	entries := st.entries[template]
	matched := make([]bool, len(entries))

	for _, pt := range positions {
		idx := -1
		for i, e := range entries {
			if !matched[i] && near(e.pt, pt, trackTolerance) {
				idx = i
				break
			}
		}
		if idx >= 0 {
			e := entries[idx]
			e.pt = pt
			e.hits++
			e.misses = 0
			e.lastSeen = now
			matched[idx] = true
			continue
		}
		e := &trackEntry{pt: pt, hits: 1, lastSeen: now}
		entries = append(entries, e)
		matched = append(matched, true)
	}

	kept := entries[:0]
	for i, e := range entries {
		if !matched[i] {
			e.misses++
			e.hits = 0
		}
		if e.misses >= trackMissLimit || now.Sub(e.lastSeen) > st.maxAge {
			continue
		}
		kept = append(kept, e)
	}

	if len(kept) == 0 {
		delete(st.entries, template)
		return
	}
	st.entries[template] = kept
}

// SkipVerification reports whether the position is stable enough that the
// hybrid verification pass may be skipped. Implements the strategy's
// verification filter.
func (st *StabilityTracker) SkipVerification(template string, pt image.Point) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	for _, e := range st.entries[template] {
		if near(e.pt, pt, trackTolerance) {
			return e.hits >= st.stableAfter && now.Sub(e.lastSeen) <= st.maxAge
		}
	}
	return false
}

// StableCount returns how many tracked positions for the template are
// currently stable.
func (st *StabilityTracker) StableCount(template string) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	n := 0
	for _, e := range st.entries[template] {
		if e.hits >= st.stableAfter {
			n++
		}
	}
	return n
}

// Reset drops all tracked history, for example after a region or resize
// factor change invalidates every position.
func (st *StabilityTracker) Reset() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.entries = make(map[string][]*trackEntry)
}

func near(a, b image.Point, tolerance int) bool {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx*dx+dy*dy <= tolerance*tolerance
}
