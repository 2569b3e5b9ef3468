// Package template loads, normalizes and caches the icon templates the
// matching strategies correlate against the captured frame.
package template

import (
	"sync"

	"gocv.io/x/gocv"
)

// Template is one detectable icon. It is immutable once loaded and owned by
// the Store; only the per-scale downscale cache mutates, under its own lock.
type Template struct {
	Name      string
	Threshold float32
	Priority  int
	Rarity    string
	Reference bool

	// Width and Height are the working dimensions after the resize factor
	// has been applied.
	Width  int
	Height int

	base gocv.Mat // grayscale at factor 1.0, kept for recalibration
	gray gocv.Mat // grayscale at the store's resize factor

	mu     sync.Mutex
	scaled map[int]gocv.Mat
}

// NewFromMat builds a standalone template from an already-grayscale Mat,
// cloning it. Used by calibration sweeps and tests; catalog-driven loading
// goes through Store.Load.
func NewFromMat(name string, gray gocv.Mat, threshold float32) *Template {
	return &Template{
		Name:      name,
		Threshold: threshold,
		Priority:  5,
		Width:     gray.Cols(),
		Height:    gray.Rows(),
		base:      gray.Clone(),
		gray:      gray.Clone(),
		scaled:    make(map[int]gocv.Mat),
	}
}

// Close releases the buffers of a template created with NewFromMat. Store
// owned templates are released by the store.
func (t *Template) Close() {
	t.close()
}

// Gray returns the full-resolution grayscale buffer. The returned Mat is
// shared and read-only; callers must not close it.
func (t *Template) Gray() gocv.Mat {
	return t.gray
}

// Base returns the grayscale buffer at its original (factor 1.0) size.
// Shared and read-only like Gray.
func (t *Template) Base() gocv.Mat {
	return t.base
}

// GrayAt returns a downscaled, sharpened copy of the template for the
// accelerated matching path. Copies are built lazily and cached per scale.
func (t *Template) GrayAt(scale float64) gocv.Mat {
	if scale <= 0 || equalScale(scale, 1.0) {
		return t.gray
	}

	key := scaleKey(scale)

	t.mu.Lock()
	defer t.mu.Unlock()

	if m, ok := t.scaled[key]; ok {
		return m
	}

	m := Downscale(t.gray, scale)
	t.scaled[key] = m
	return m
}

// rescale rebuilds the working grayscale buffer from the factor 1.0 base at
// a new resize factor and drops the stale per-scale cache.
func (t *Template) rescale(factor float64) {
	gray := Rescale(t.base, factor)

	t.mu.Lock()
	defer t.mu.Unlock()

	for k, m := range t.scaled {
		m.Close()
		delete(t.scaled, k)
	}
	if !t.gray.Empty() {
		t.gray.Close()
	}
	t.gray = gray
	t.Width = gray.Cols()
	t.Height = gray.Rows()
}

func (t *Template) close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for k, m := range t.scaled {
		m.Close()
		delete(t.scaled, k)
	}
	if !t.gray.Empty() {
		t.gray.Close()
	}
	if !t.base.Empty() {
		t.base.Close()
	}
}

func scaleKey(scale float64) int {
	return int(scale*1000 + 0.5)
}

func equalScale(a, b float64) bool {
	d := a - b
	return d < 1e-3 && d > -1e-3
}
