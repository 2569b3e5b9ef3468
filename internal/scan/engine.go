package scan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/kishor/mergescan/internal/capture"
	"github.com/kishor/mergescan/internal/match"
	"github.com/kishor/mergescan/internal/template"
)

// ErrCaptureFailed wraps grabber failures so callers can distinguish them
// from matching failures.
var ErrCaptureFailed = errors.New("frame capture failed")

// ErrNoTemplates is returned when a scan is requested with nothing loaded.
var ErrNoTemplates = errors.New("no templates loaded")

// Update is one scan cycle's outcome, published to live subscribers and the
// scan recorder.
type Update struct {
	CycleID     string            `json:"cycle_id"`
	Timestamp   time.Time         `json:"timestamp"`
	Results     []match.Detection `json:"results"`
	Skipped     bool              `json:"skipped"`
	ChangeRatio float64           `json:"change_ratio"`
	Duration    time.Duration     `json:"duration_ns"`
}

// Recorder persists scan cycles. Implementations must not block the scan
// loop for long; recording failures are logged and dropped.
type Recorder interface {
	Record(u Update) error
}

// Engine owns one detection pipeline: a grabber, the template store and the
// per-cycle machinery (region split, batched matching, dedup, stability
// tracking, memoization). It serializes cycles, so one Engine never captures
// or matches concurrently with itself.
type Engine struct {
	store   *template.Store
	grabber capture.Grabber

	history *StabilityTracker
	memo    *Memoizer
	gate    *capture.MotionGate

	cfgMu sync.RWMutex
	cfg   Config

	scanMu  sync.Mutex
	backend match.Backend

	downgradeOnce sync.Once

	resMu       sync.RWMutex
	lastResults []match.Detection
	lastScan    time.Time

	subMu    sync.Mutex
	subs     map[chan Update]struct{}
	recorder Recorder

	liveMu  sync.Mutex
	stopCh  chan struct{}
	liveWg  sync.WaitGroup
	running bool
}

// New builds an engine around a loaded store and a frame source.
func New(cfg Config, store *template.Store, grabber capture.Grabber) *Engine {
	cfg.sanitize()
	return &Engine{
		store:   store,
		grabber: grabber,
		history: NewStabilityTracker(cfg.StableAfter, cfg.HistoryMaxAge()),
		memo:    NewMemoizer(cfg.CacheTTL()),
		gate:    capture.NewMotionGate(cfg.ChangeRatioThreshold),
		cfg:     cfg,
		backend: match.NewBackend(),
		subs:    make(map[chan Update]struct{}),
	}
}

// Config returns a copy of the current configuration.
func (e *Engine) Config() Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// SetConfig swaps the configuration. Cached results and tracked positions
// are dropped because the old ones may be meaningless under the new tuning.
func (e *Engine) SetConfig(cfg Config) {
	cfg.sanitize()

	e.cfgMu.Lock()
	e.cfg = cfg
	e.cfgMu.Unlock()

	e.memo.SetTTL(cfg.CacheTTL())
	e.memo.Invalidate()
	e.history.Reset()
	e.gate.SetChangeRatio(cfg.ChangeRatioThreshold)
}

// SetBackend replaces the correlation backend, primarily for tests.
func (e *Engine) SetBackend(b match.Backend) {
	e.scanMu.Lock()
	defer e.scanMu.Unlock()
	e.backend = b
}

// Accelerated reports whether a device-accelerated correlation backend is
// usable. When it is not, accelerated modes silently run exhaustive.
func (e *Engine) Accelerated() bool {
	e.scanMu.Lock()
	defer e.scanMu.Unlock()
	return e.backend.Available()
}

// SetRecorder installs the cycle persistence hook.
func (e *Engine) SetRecorder(r Recorder) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.recorder = r
}

// Store exposes the template store for API handlers.
func (e *Engine) Store() *template.Store { return e.store }

// Invalidate drops a template plus every cached result derived from it.
func (e *Engine) Invalidate(name string) {
	e.store.Invalidate(name)
	e.memo.Invalidate()
	e.history.Reset()
}

// InvalidateAll drops every template and all cached state.
func (e *Engine) InvalidateAll() {
	e.store.InvalidateAll()
	e.memo.Invalidate()
	e.history.Reset()
}

// LastResults returns the most recent completed cycle's detections and when
// they were produced.
func (e *Engine) LastResults() ([]match.Detection, time.Time) {
	e.resMu.RLock()
	defer e.resMu.RUnlock()
	return copyDetections(e.lastResults), e.lastScan
}

// Scan runs one on-demand cycle: capture once, match every loaded template
// and return the deduplicated detections in screen coordinates. Results are
// memoized for the configured TTL keyed on the capture region and template
// set, so rapid repeat scans skip the work entirely.
func (e *Engine) Scan(ctx context.Context) ([]match.Detection, error) {
	e.scanMu.Lock()
	defer e.scanMu.Unlock()

	cfg := e.Config()

	key := e.memo.Key(cfg.Region.ToRectangle(), e.store.Signature())
	if cached, ok := e.memo.Get(key); ok {
		return cached, nil
	}

	frame, err := e.grabber.Capture(cfg.Region.ToRectangle())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	results, err := e.scanFrame(ctx, cfg, frame)
	if err != nil {
		return nil, err
	}

	e.memo.Put(key, results)
	return results, nil
}

// scanFrame runs the matching pipeline over an already-captured frame. It
// takes ownership of the frame. Callers hold scanMu.
func (e *Engine) scanFrame(ctx context.Context, cfg Config, frame *capture.Frame) ([]match.Detection, error) {
	tpls := scannable(e.store.All())
	if len(tpls) == 0 {
		frame.Close()
		return nil, ErrNoTemplates
	}

	mode := e.effectiveMode(cfg.Mode)

	scale := cfg.EffectivePyramidScale()
	if mode == ModeExhaustive {
		scale = 1.0
	}

	subs := splitRegions(frame, cfg.ROIRegions, scale)
	frame.Close()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.CycleTimeout())
		defer cancel()
	}

	sched := &scheduler{
		strategy:      e.strategyFor(mode, cfg),
		batchSize:     cfg.BatchSize,
		tolerance:     cfg.PixelTolerance,
		baseThreshold: float32(cfg.Threshold),
	}

	results, err := sched.run(ctx, subs, tpls, func() { closeSubFrames(subs) })
	if err != nil {
		return nil, err
	}

	for _, d := range results {
		if d.Err == "" {
			e.history.Update(d.Template, d.Positions)
		}
	}

	e.resMu.Lock()
	e.lastResults = copyDetections(results)
	e.lastScan = time.Now()
	e.resMu.Unlock()

	return results, nil
}

// effectiveMode downgrades accelerated modes to exhaustive when no device
// backend is usable. This is the only fallback point; strategies themselves
// assume a working backend.
func (e *Engine) effectiveMode(mode Mode) Mode {
	if mode == ModeExhaustive || e.backend.Available() {
		return mode
	}
	e.downgradeOnce.Do(func() {
		log.Printf("[scan] backend %q unavailable, falling back to exhaustive matching", e.backend.Name())
	})
	return ModeExhaustive
}

func (e *Engine) strategyFor(mode Mode, cfg Config) match.Strategy {
	accel := &match.Accelerated{Backend: e.backend}

	switch mode {
	case ModeAccelerated:
		return accel
	case ModeHybrid:
		return &match.Hybrid{
			Accelerated:  accel,
			RecallMargin: float32(cfg.RecallMargin),
			TopK:         cfg.VerifyTopK,
			Filter:       e.history,
		}
	case ModeRelaxed:
		return &match.Relaxed{
			Accelerated:  accel,
			RecallMargin: float32(cfg.RecallMargin),
		}
	default:
		return &match.Exhaustive{}
	}
}

// Subscribe registers a live-update channel. The returned cancel function
// removes it. Slow subscribers lose updates rather than stalling the loop.
func (e *Engine) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 8)

	e.subMu.Lock()
	e.subs[ch] = struct{}{}
	e.subMu.Unlock()

	cancel := func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		if _, ok := e.subs[ch]; ok {
			delete(e.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (e *Engine) publish(u Update) {
	e.subMu.Lock()
	recorder := e.recorder
	for ch := range e.subs {
		select {
		case ch <- u:
		default:
		}
	}
	e.subMu.Unlock()

	if recorder != nil {
		if err := recorder.Record(u); err != nil {
			log.Printf("[scan] recording cycle %s: %v", u.CycleID, err)
		}
	}
}

// Snapshot captures one frame of the configured region and returns it JPEG
// encoded, for region-setup UIs. It shares the cycle lock with scans.
func (e *Engine) Snapshot() ([]byte, error) {
	e.scanMu.Lock()
	defer e.scanMu.Unlock()

	cfg := e.Config()
	frame, err := e.grabber.Capture(cfg.Region.ToRectangle())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	defer frame.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame.Mat)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}

// scannable filters out reference templates, which exist only for the
// calibration sweep.
func scannable(tpls []*template.Template) []*template.Template {
	out := tpls[:0:0]
	for _, t := range tpls {
		if !t.Reference {
			out = append(out, t)
		}
	}
	return out
}

func newCycleID() string { return uuid.NewString() }
