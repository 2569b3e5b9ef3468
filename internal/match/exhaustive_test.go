package match

import (
	"image"
	"testing"

	"github.com/kishor/mergescan/internal/template"
	"github.com/kishor/mergescan/testdata"
)

// buildScene stamps the icon at the given top-left positions and returns the
// prepared frame plus the template. Centers of the stamps are the expected
// match positions.
func buildScene(t *testing.T, frameW, frameH, iconW, iconH int, positions []image.Point, pyramidScale float64) (*PreparedFrame, *template.Template) {
	t.Helper()

	icon := testdata.NewIcon(iconW, iconH, 0)
	defer icon.Close()

	board := testdata.NewBoard(frameW, frameH)
	defer board.Close()
	for _, pt := range positions {
		testdata.Stamp(&board, icon, pt)
	}

	pf := Prepare(board, pyramidScale)
	tpl := template.NewFromMat("icon", icon, 0.8)

	t.Cleanup(func() {
		pf.Close()
		tpl.Close()
	})
	return pf, tpl
}

func expectNear(t *testing.T, got, want image.Point, tolerance int) {
	t.Helper()
	dx, dy := got.X-want.X, got.Y-want.Y
	if dx < -tolerance || dx > tolerance || dy < -tolerance || dy > tolerance {
		t.Errorf("position = %v, want %v +-%dpx", got, want, tolerance)
	}
}

func TestExhaustive_FindsExactCopy(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	pf, tpl := buildScene(t, 800, 600, 50, 50, []image.Point{{X: 120, Y: 340}}, 1.0)

	s := &Exhaustive{}
	candidates, err := s.Match(pf, tpl, 0.8)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}

	reduced := Reduce(candidates, 25)
	if len(reduced) != 1 {
		t.Fatalf("detections = %d, want 1", len(reduced))
	}
	expectNear(t, reduced[0].Point, image.Pt(145, 365), 2)
	if reduced[0].Confidence < 0.99 {
		t.Errorf("confidence = %f, want ~1.0 for exact copy", reduced[0].Confidence)
	}
}

func TestExhaustive_Deterministic(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	pf, tpl := buildScene(t, 400, 300, 40, 40, []image.Point{{X: 50, Y: 60}, {X: 200, Y: 150}}, 1.0)

	s := &Exhaustive{}
	first, err := s.Match(pf, tpl, 0.8)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		again, err := s.Match(pf, tpl, 0.8)
		if err != nil {
			t.Fatalf("Match() error = %v", err)
		}
		if len(again) != len(first) {
			t.Fatalf("run %d: %d candidates, first run had %d", i, len(again), len(first))
		}
		for j := range again {
			if again[j].Point != first[j].Point || again[j].Confidence != first[j].Confidence {
				t.Errorf("run %d candidate %d = %+v, first run had %+v", i, j, again[j], first[j])
			}
		}
	}
}

func TestExhaustive_ScaledCopyNotMatched(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	// One exact copy and one 10% larger copy. Without a compensating resize
	// factor only the exact copy may be reported; anything else is a scale
	// mismatch, not a threshold failure.
	icon := testdata.NewIcon(50, 50, 0)
	defer icon.Close()

	board := testdata.NewBoard(800, 600)
	defer board.Close()
	testdata.Stamp(&board, icon, image.Pt(120, 340))
	testdata.StampScaled(&board, icon, image.Pt(500, 200), 1.1)

	pf := Prepare(board, 1.0)
	defer pf.Close()
	tpl := template.NewFromMat("A", icon, 0.8)
	defer tpl.Close()

	s := &Exhaustive{}
	candidates, err := s.Match(pf, tpl, 0.8)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}

	reduced := Reduce(candidates, 25)
	if len(reduced) != 1 {
		t.Fatalf("detections = %d, want 1 (exact copy only)", len(reduced))
	}
	expectNear(t, reduced[0].Point, image.Pt(145, 365), 2)
}

func TestExhaustive_TemplateLargerThanFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	icon := testdata.NewIcon(100, 100, 0)
	defer icon.Close()
	board := testdata.NewBoard(50, 50)
	defer board.Close()

	pf := Prepare(board, 1.0)
	defer pf.Close()
	tpl := template.NewFromMat("big", icon, 0.8)
	defer tpl.Close()

	s := &Exhaustive{}
	candidates, err := s.Match(pf, tpl, 0.8)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("candidates = %d, want 0 for oversized template", len(candidates))
	}
}
