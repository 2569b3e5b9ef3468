// Package catalog loads template metadata (thresholds, priorities, rarity,
// reference flags) from a catalog.json file next to the template images.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Default metadata values applied when the catalog has no entry for a template.
const (
	DefaultThreshold = 0.75
	DefaultPriority  = 5
	DefaultRarity    = "common"
)

// Metadata describes how a single template should be matched.
type Metadata struct {
	Threshold float32 `json:"threshold"`
	Priority  int     `json:"priority"`
	Rarity    string  `json:"rarity"`
	Reference bool    `json:"reference"`
}

// Catalog maps template file names to their metadata. A missing catalog file
// is not an error; every lookup then returns the defaults.
type Catalog struct {
	Defaults  Metadata
	Templates map[string]Metadata
}

type catalogFile struct {
	Defaults  map[string]json.RawMessage `json:"defaults"`
	Templates map[string]Metadata        `json:"templates"`
}

// New returns an empty catalog carrying only the built-in defaults.
func New() *Catalog {
	return &Catalog{
		Defaults: Metadata{
			Threshold: DefaultThreshold,
			Priority:  DefaultPriority,
			Rarity:    DefaultRarity,
		},
		Templates: make(map[string]Metadata),
	}
}

// Load reads catalog.json from path. A missing file yields an empty catalog;
// a malformed file is reported as an error so the caller can warn and
// continue with defaults.
func Load(path string) (*Catalog, error) {
	c := New()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var payload catalogFile
	if err := json.Unmarshal(data, &payload); err != nil {
		return c, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	for name, meta := range payload.Templates {
		c.Templates[name] = meta
	}

	// Defaults are merged key by key so a partial defaults block keeps the
	// built-in values for the rest.
	if raw, ok := payload.Defaults["threshold"]; ok {
		var v float32
		if json.Unmarshal(raw, &v) == nil && v > 0 && v < 1 {
			c.Defaults.Threshold = v
		}
	}
	if raw, ok := payload.Defaults["priority"]; ok {
		var v int
		if json.Unmarshal(raw, &v) == nil {
			c.Defaults.Priority = v
		}
	}
	if raw, ok := payload.Defaults["rarity"]; ok {
		var v string
		if json.Unmarshal(raw, &v) == nil && v != "" {
			c.Defaults.Rarity = v
		}
	}

	return c, nil
}

// For returns the effective metadata for a template file name, with catalog
// entries overriding defaults field by field.
func (c *Catalog) For(name string) Metadata {
	meta := c.Defaults
	entry, ok := c.Templates[name]
	if !ok {
		return meta
	}
	if entry.Threshold > 0 && entry.Threshold < 1 {
		meta.Threshold = entry.Threshold
	}
	if entry.Priority != 0 {
		meta.Priority = entry.Priority
	}
	if entry.Rarity != "" {
		meta.Rarity = entry.Rarity
	}
	meta.Reference = entry.Reference
	return meta
}

// References lists the template names flagged as scale-calibration references.
func (c *Catalog) References() []string {
	var names []string
	for name, meta := range c.Templates {
		if meta.Reference {
			names = append(names, name)
		}
	}
	return names
}

// ParseName splits a template file name into its logical name and an optional
// embedded threshold override, e.g. "wheat lvl 1@0.72.png" -> ("wheat lvl 1", 0.72).
// The fallback threshold is returned when no valid override is present.
func ParseName(filename string, fallback float32) (string, float32) {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	at := strings.LastIndex(stem, "@")
	if at < 0 {
		return stem, fallback
	}
	thr, err := strconv.ParseFloat(stem[at+1:], 32)
	if err != nil || thr <= 0 || thr >= 1 {
		return stem, fallback
	}
	return stem[:at], float32(thr)
}
