package template

import (
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gocv.io/x/gocv"

	"github.com/kishor/mergescan/internal/catalog"
)

// ErrDecode marks a template image that could not be decoded. Load drops
// such templates with a warning instead of failing the whole set.
var ErrDecode = errors.New("template decode failed")

// Store owns the loaded template set. Loading pays the decode and
// normalization cost once; every scan cycle after that only reads cached
// buffers. A template that fails to decode is dropped with a warning and
// never aborts the rest of the set.
type Store struct {
	mu           sync.RWMutex
	cat          *catalog.Catalog
	templates    map[string]*Template
	resizeFactor float64
	generation   uint64
}

// NewStore creates an empty store backed by the given catalog metadata.
func NewStore(cat *catalog.Catalog) *Store {
	if cat == nil {
		cat = catalog.New()
	}
	return &Store{
		cat:          cat,
		templates:    make(map[string]*Template),
		resizeFactor: 1.0,
	}
}

// Load decodes the given image paths at the given resize factor and replaces
// any previously loaded templates of the same name. It returns the number of
// templates successfully loaded.
func (s *Store) Load(paths []string, resizeFactor float64) int {
	if resizeFactor <= 0 {
		resizeFactor = 1.0
	}

	loaded := 0
	for _, path := range paths {
		t, err := s.loadOne(path, resizeFactor)
		if err != nil {
			log.Printf("[template] dropping %s: %v", filepath.Base(path), err)
			continue
		}

		s.mu.Lock()
		if old, ok := s.templates[t.Name]; ok {
			old.close()
		}
		s.templates[t.Name] = t
		s.resizeFactor = resizeFactor
		s.generation++
		s.mu.Unlock()
		loaded++
	}
	return loaded
}

func (s *Store) loadOne(path string, resizeFactor float64) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	img, err := decodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	meta := s.cat.For(filepath.Base(path))
	name, threshold := catalog.ParseName(path, meta.Threshold)

	base, err := toGrayMat(normalizeImage(img, 1.0))
	if err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}

	gray, err := toGrayMat(normalizeImage(img, resizeFactor))
	if err != nil {
		base.Close()
		return nil, fmt.Errorf("convert at factor %.2f: %w", resizeFactor, err)
	}

	return &Template{
		Name:      name,
		Threshold: threshold,
		Priority:  meta.Priority,
		Rarity:    meta.Rarity,
		Reference: meta.Reference,
		Width:     gray.Cols(),
		Height:    gray.Rows(),
		base:      base,
		gray:      gray,
		scaled:    make(map[int]gocv.Mat),
	}, nil
}

// Get returns the template with the given logical name.
func (s *Store) Get(name string) (*Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[name]
	return t, ok
}

// All returns the loaded templates ordered by priority rank (lowest first),
// then name, so high-priority icons are scheduled first.
func (s *Store) All() []*Template {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// References returns the templates flagged for scale auto-calibration.
func (s *Store) References() []*Template {
	var refs []*Template
	for _, t := range s.All() {
		if t.Reference {
			refs = append(refs, t)
		}
	}
	return refs
}

// Len reports the number of loaded templates.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.templates)
}

// ResizeFactor returns the factor the current set was normalized at.
func (s *Store) ResizeFactor() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resizeFactor
}

// Rescale rebuilds every template's working buffer at a new resize factor,
// reusing the decoded factor 1.0 bases. Used after a calibration sweep picks
// a better factor.
func (s *Store) Rescale(factor float64) {
	if factor <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.templates {
		t.rescale(factor)
	}
	s.resizeFactor = factor
	s.generation++
}

// Invalidate drops a single template. The caller reloads it with Load.
func (s *Store) Invalidate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.templates[name]; ok {
		t.close()
		delete(s.templates, name)
		s.generation++
	}
}

// InvalidateAll drops every template and releases their buffers.
func (s *Store) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, t := range s.templates {
		t.close()
		delete(s.templates, name)
	}
	s.generation++
}

// Signature identifies the active template set. It changes whenever a
// template is loaded or invalidated, so memoized scan results keyed on it
// can never outlive a set change.
func (s *Store) Signature() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	sort.Strings(names)

	h := fnv.New64a()
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%d-%x", s.generation, h.Sum64())
}

// Close releases all template buffers.
func (s *Store) Close() {
	s.InvalidateAll()
}
