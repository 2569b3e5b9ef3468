// Package scan wires the detection engine together: one capture per cycle,
// region restriction, motion gating, memoization, batched matching and
// stability tracking.
package scan

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"time"
)

// Mode selects the matching strategy for a scan.
type Mode string

const (
	ModeExhaustive  Mode = "exhaustive"
	ModeAccelerated Mode = "accelerated"
	ModeHybrid      Mode = "hybrid"
	ModeRelaxed     Mode = "relaxed"
)

// ParseMode validates a mode string, defaulting to hybrid.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeExhaustive, ModeAccelerated, ModeHybrid, ModeRelaxed:
		return Mode(s), nil
	case "":
		return ModeHybrid, nil
	}
	return ModeHybrid, fmt.Errorf("unknown detection mode %q", s)
}

// Rect is a JSON-friendly screen rectangle (x1,y1,x2,y2).
type Rect struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// ToRectangle converts to the image package representation.
func (r Rect) ToRectangle() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// FromRectangle builds a Rect from an image.Rectangle.
func FromRectangle(r image.Rectangle) Rect {
	return Rect{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// Config holds every engine tunable. It round-trips through JSON so settings
// persist between runs.
type Config struct {
	// Region is the screen rectangle captured each cycle. A zero region
	// captures the grabber's full frame.
	Region Rect `json:"region"`
	// ROIRegions restricts matching to sub-rectangles of the capture, in
	// screen coordinates. Empty means the whole capture.
	ROIRegions []Rect `json:"roi_regions,omitempty"`

	Mode         Mode    `json:"mode"`
	Threshold    float64 `json:"threshold"`
	ResizeFactor float64 `json:"resize_factor"`

	// BatchSize is the number of templates each worker matches per cycle.
	BatchSize int `json:"batch_size"`
	// PyramidScale is the downscale factor for the accelerated passes.
	PyramidScale float64 `json:"pyramid_scale"`
	// FastMode applies an extra downscale on top of PyramidScale.
	FastMode bool `json:"fast_mode"`
	// RecallMargin is subtracted from the threshold for hybrid's cheap pass.
	RecallMargin float64 `json:"recall_margin"`
	// VerifyTopK bounds hybrid's expensive verification pass.
	VerifyTopK int `json:"verify_top_k"`
	// PixelTolerance is the dedup distance; 0 derives it per template.
	PixelTolerance int `json:"pixel_tolerance"`

	CacheTTLMs int `json:"cache_ttl_ms"`

	MotionDetection      bool    `json:"motion_detection_enabled"`
	ChangeRatioThreshold float64 `json:"change_ratio_threshold"`
	FrameSkipN           int     `json:"frame_skip_n"`

	ScanIntervalMs  int `json:"scan_interval_ms"`
	CycleTimeoutMs  int `json:"cycle_timeout_ms"`
	HistoryMaxAgeMs int `json:"history_max_age_ms"`
	// StableAfter is how many consecutive confirmations a position needs
	// before hybrid verification is skipped for it.
	StableAfter int `json:"stable_after"`
}

// DefaultConfig returns the tuning used when no config file exists.
func DefaultConfig() Config {
	return Config{
		Mode:                 ModeHybrid,
		Threshold:            0.75,
		ResizeFactor:         1.2,
		BatchSize:            10,
		PyramidScale:         0.75,
		RecallMargin:         0.08,
		VerifyTopK:           100,
		CacheTTLMs:           200,
		MotionDetection:      true,
		ChangeRatioThreshold: 0.05,
		FrameSkipN:           1,
		ScanIntervalMs:       120,
		CycleTimeoutMs:       5000,
		HistoryMaxAgeMs:      10000,
		StableAfter:          3,
	}
}

// sanitize clamps nonsense values back to defaults so a hand-edited config
// file cannot wedge the engine.
func (c *Config) sanitize() {
	def := DefaultConfig()
	if c.Mode != ModeExhaustive && c.Mode != ModeAccelerated && c.Mode != ModeHybrid && c.Mode != ModeRelaxed {
		c.Mode = def.Mode
	}
	if c.Threshold <= 0 || c.Threshold >= 1 {
		c.Threshold = def.Threshold
	}
	if c.ResizeFactor <= 0 {
		c.ResizeFactor = def.ResizeFactor
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.PyramidScale <= 0 || c.PyramidScale > 1 {
		c.PyramidScale = def.PyramidScale
	}
	if c.RecallMargin <= 0 || c.RecallMargin >= c.Threshold {
		c.RecallMargin = def.RecallMargin
	}
	if c.VerifyTopK <= 0 {
		c.VerifyTopK = def.VerifyTopK
	}
	if c.CacheTTLMs < 0 {
		c.CacheTTLMs = def.CacheTTLMs
	}
	if c.ChangeRatioThreshold <= 0 {
		c.ChangeRatioThreshold = def.ChangeRatioThreshold
	}
	if c.FrameSkipN <= 0 {
		c.FrameSkipN = 1
	}
	if c.ScanIntervalMs <= 0 {
		c.ScanIntervalMs = def.ScanIntervalMs
	}
	if c.CycleTimeoutMs <= 0 {
		c.CycleTimeoutMs = def.CycleTimeoutMs
	}
	if c.HistoryMaxAgeMs <= 0 {
		c.HistoryMaxAgeMs = def.HistoryMaxAgeMs
	}
	if c.StableAfter <= 0 {
		c.StableAfter = def.StableAfter
	}
}

// EffectivePyramidScale folds FastMode's extra downscale into PyramidScale.
func (c Config) EffectivePyramidScale() float64 {
	scale := c.PyramidScale
	if c.FastMode {
		scale *= 0.85
	}
	return scale
}

// CacheTTL returns the memoizer lifetime as a duration.
func (c Config) CacheTTL() time.Duration { return time.Duration(c.CacheTTLMs) * time.Millisecond }

// ScanInterval returns the live-loop cadence as a duration.
func (c Config) ScanInterval() time.Duration { return time.Duration(c.ScanIntervalMs) * time.Millisecond }

// CycleTimeout returns the per-cycle deadline as a duration.
func (c Config) CycleTimeout() time.Duration { return time.Duration(c.CycleTimeoutMs) * time.Millisecond }

// HistoryMaxAge returns the stability-entry lifetime as a duration.
func (c Config) HistoryMaxAge() time.Duration { return time.Duration(c.HistoryMaxAgeMs) * time.Millisecond }

// LoadConfig reads a config file, filling defaults for anything missing.
// A missing file returns the defaults without error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.sanitize()
	return cfg, nil
}

// Save writes the config as indented JSON.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
