package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "catalog.json"))
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for missing file", err)
	}

	meta := c.For("anything.png")
	if meta.Threshold != DefaultThreshold {
		t.Errorf("threshold = %f, want default %f", meta.Threshold, DefaultThreshold)
	}
	if meta.Priority != DefaultPriority {
		t.Errorf("priority = %d, want default %d", meta.Priority, DefaultPriority)
	}
}

func TestLoad_Overrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	payload := `{
		"defaults": {"threshold": 0.8, "rarity": "uncommon"},
		"templates": {
			"cow1.png": {"threshold": 0.9, "priority": 1, "reference": true},
			"wheat1.png": {"rarity": "rare"}
		}
	}`
	if err := os.WriteFile(path, []byte(payload), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	cow := c.For("cow1.png")
	if cow.Threshold != 0.9 {
		t.Errorf("cow threshold = %f, want 0.9", cow.Threshold)
	}
	if cow.Priority != 1 {
		t.Errorf("cow priority = %d, want 1", cow.Priority)
	}
	if !cow.Reference {
		t.Error("cow should be a reference template")
	}

	wheat := c.For("wheat1.png")
	if wheat.Threshold != 0.8 {
		t.Errorf("wheat threshold = %f, want catalog default 0.8", wheat.Threshold)
	}
	if wheat.Rarity != "rare" {
		t.Errorf("wheat rarity = %q, want rare", wheat.Rarity)
	}

	unknown := c.For("corn1.png")
	if unknown.Threshold != 0.8 {
		t.Errorf("unknown threshold = %f, want catalog default 0.8", unknown.Threshold)
	}
	if unknown.Rarity != "uncommon" {
		t.Errorf("unknown rarity = %q, want uncommon", unknown.Rarity)
	}

	refs := c.References()
	if len(refs) != 1 || refs[0] != "cow1.png" {
		t.Errorf("References() = %v, want [cow1.png]", refs)
	}
}

func TestLoad_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err == nil {
		t.Error("Load() error = nil, want parse error")
	}
	if c == nil {
		t.Fatal("Load() should still return a usable catalog")
	}
	if c.For("x.png").Threshold != DefaultThreshold {
		t.Error("malformed catalog should fall back to defaults")
	}
}

func TestParseName(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		fallback float32
		wantName string
		wantThr  float32
	}{
		{"no override", "cow1.png", 0.75, "cow1", 0.75},
		{"with override", "wheat lvl 1@0.72.png", 0.75, "wheat lvl 1", 0.72},
		{"invalid override", "corn@9.9.png", 0.75, "corn@9.9", 0.75},
		{"not a number", "egg@max.png", 0.75, "egg@max", 0.75},
		{"full path", "/tmp/img/sheep1@0.66.png", 0.8, "sheep1", 0.66},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, thr := ParseName(tt.filename, tt.fallback)
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if thr != tt.wantThr {
				t.Errorf("threshold = %f, want %f", thr, tt.wantThr)
			}
		})
	}
}
