package template

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/kishor/mergescan/internal/catalog"
	"github.com/kishor/mergescan/testdata"
)

func writeIcon(t *testing.T, dir, name string, w, h int, seed uint8) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := png.Encode(f, testdata.IconImage(w, h, seed)); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStore_LoadAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	dir := t.TempDir()
	paths := []string{
		writeIcon(t, dir, "gem.png", 40, 40, 0),
		writeIcon(t, dir, "coin.png", 32, 32, 1),
	}

	s := NewStore(catalog.New())
	defer s.Close()

	if got := s.Load(paths, 1.0); got != 2 {
		t.Fatalf("Load() = %d, want 2", got)
	}

	tpl, ok := s.Get("gem")
	if !ok {
		t.Fatal("gem not found")
	}
	if tpl.Width != 40 || tpl.Height != 40 {
		t.Errorf("gem dimensions = %dx%d, want 40x40", tpl.Width, tpl.Height)
	}
	if tpl.Threshold != catalog.DefaultThreshold {
		t.Errorf("threshold = %v, want catalog default", tpl.Threshold)
	}
}

func TestStore_DropsUndecodableFiles(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	dir := t.TempDir()
	good := writeIcon(t, dir, "gem.png", 40, 40, 0)
	bad := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(bad, []byte("not a png"), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(catalog.New())
	defer s.Close()

	if got := s.Load([]string{good, bad, filepath.Join(dir, "missing.png")}, 1.0); got != 1 {
		t.Errorf("Load() = %d, want 1 (bad files dropped, not fatal)", got)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStore_FilenameThresholdOverride(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	dir := t.TempDir()
	path := writeIcon(t, dir, "wheat lvl 1@0.72.png", 40, 40, 0)

	s := NewStore(catalog.New())
	defer s.Close()
	s.Load([]string{path}, 1.0)

	tpl, ok := s.Get("wheat lvl 1")
	if !ok {
		t.Fatal("template not found under its logical name")
	}
	if tpl.Threshold < 0.719 || tpl.Threshold > 0.721 {
		t.Errorf("threshold = %v, want 0.72 from filename", tpl.Threshold)
	}
}

func TestStore_ResizeFactorAppliesToWorkingBuffer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	dir := t.TempDir()
	path := writeIcon(t, dir, "gem.png", 40, 40, 0)

	s := NewStore(catalog.New())
	defer s.Close()
	s.Load([]string{path}, 1.5)

	tpl, _ := s.Get("gem")
	if tpl.Width != 60 || tpl.Height != 60 {
		t.Errorf("working size = %dx%d, want 60x60 at factor 1.5", tpl.Width, tpl.Height)
	}
	base := tpl.Base()
	if base.Cols() != 40 {
		t.Errorf("base width = %d, want original 40", base.Cols())
	}
}

func TestStore_RescaleRebuildsFromBase(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	dir := t.TempDir()
	path := writeIcon(t, dir, "gem.png", 40, 40, 0)

	s := NewStore(catalog.New())
	defer s.Close()
	s.Load([]string{path}, 1.0)

	before := s.Signature()
	s.Rescale(2.0)

	tpl, _ := s.Get("gem")
	if tpl.Width != 80 {
		t.Errorf("width = %d after Rescale(2.0), want 80", tpl.Width)
	}
	if s.ResizeFactor() != 2.0 {
		t.Errorf("ResizeFactor() = %v, want 2.0", s.ResizeFactor())
	}
	if s.Signature() == before {
		t.Error("signature unchanged after Rescale; memoized results would go stale")
	}
}

func TestStore_SignatureChangesOnInvalidate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	dir := t.TempDir()
	s := NewStore(catalog.New())
	defer s.Close()
	s.Load([]string{
		writeIcon(t, dir, "gem.png", 40, 40, 0),
		writeIcon(t, dir, "coin.png", 32, 32, 1),
	}, 1.0)

	before := s.Signature()
	s.Invalidate("coin")
	if s.Signature() == before {
		t.Error("signature unchanged after Invalidate")
	}
	if _, ok := s.Get("coin"); ok {
		t.Error("coin still present after Invalidate")
	}
}

func TestStore_AllOrderedByPriority(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	dir := t.TempDir()
	cat := catalog.New()
	cat.Templates["rare.png"] = catalog.Metadata{Priority: 1}
	cat.Templates["junk.png"] = catalog.Metadata{Priority: 9}

	s := NewStore(cat)
	defer s.Close()
	s.Load([]string{
		writeIcon(t, dir, "junk.png", 32, 32, 0),
		writeIcon(t, dir, "rare.png", 32, 32, 1),
		writeIcon(t, dir, "gem.png", 32, 32, 2), // default priority 5
	}, 1.0)

	all := s.All()
	got := []string{all[0].Name, all[1].Name, all[2].Name}
	want := []string{"rare", "gem", "junk"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestTemplate_GrayAtCachesPerScale(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	icon := testdata.NewIcon(40, 40, 0)
	defer icon.Close()

	tpl := NewFromMat("gem", icon, 0.8)
	defer tpl.Close()

	a := tpl.GrayAt(0.5)
	if a.Cols() != 20 {
		t.Errorf("scaled width = %d, want 20", a.Cols())
	}
	b := tpl.GrayAt(0.5)
	if a.Ptr() != b.Ptr() {
		t.Error("second GrayAt(0.5) rebuilt the buffer instead of using the cache")
	}
	gray := tpl.Gray()
	if full := tpl.GrayAt(1.0); full.Ptr() != gray.Ptr() {
		t.Error("GrayAt(1.0) should return the working buffer")
	}
}
