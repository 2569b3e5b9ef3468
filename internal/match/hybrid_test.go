package match

import (
	"image"
	"testing"
)

func TestAccelerated_RescalesPositions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	pf, tpl := buildScene(t, 800, 600, 48, 48, []image.Point{{X: 120, Y: 340}}, 0.75)

	s := &Accelerated{Backend: MockBackend{}}
	candidates, err := s.Match(pf, tpl, 0.6)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}

	reduced := Reduce(candidates, 24)
	if len(reduced) != 1 {
		t.Fatalf("detections = %d, want 1", len(reduced))
	}
	// Downscale-then-upscale loses detail, so the tolerance is looser than
	// the exhaustive path's.
	expectNear(t, reduced[0].Point, image.Pt(144, 364), 4)
}

func TestHybrid_RecallOrderingAndThresholdFloor(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	pf, tpl := buildScene(t, 800, 600, 48, 48,
		[]image.Point{{X: 120, Y: 340}, {X: 500, Y: 200}}, 0.75)

	threshold := float32(0.8)
	accel := &Accelerated{Backend: MockBackend{}}

	cheap, err := accel.Match(pf, tpl, threshold-DefaultRecallMargin)
	if err != nil {
		t.Fatalf("accelerated Match() error = %v", err)
	}

	hybrid := &Hybrid{Accelerated: accel}
	confirmed, err := hybrid.Match(pf, tpl, threshold)
	if err != nil {
		t.Fatalf("hybrid Match() error = %v", err)
	}

	if len(confirmed) > len(cheap) {
		t.Errorf("hybrid confirmed %d > %d cheap-pass candidates", len(confirmed), len(cheap))
	}
	for _, c := range confirmed {
		if c.Confidence < threshold {
			t.Errorf("confirmed candidate at %v has confidence %f < threshold %f", c.Point, c.Confidence, threshold)
		}
	}

	reduced := Reduce(confirmed, 24)
	if len(reduced) != 2 {
		t.Fatalf("detections = %d, want 2", len(reduced))
	}
}

func TestHybrid_ExactCopyScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	pf, tpl := buildScene(t, 800, 600, 50, 50, []image.Point{{X: 120, Y: 340}}, 0.75)

	hybrid := &Hybrid{Accelerated: &Accelerated{Backend: MockBackend{}}}
	confirmed, err := hybrid.Match(pf, tpl, 0.8)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}

	reduced := Reduce(confirmed, 25)
	if len(reduced) != 1 {
		t.Fatalf("detections = %d, want 1", len(reduced))
	}
	expectNear(t, reduced[0].Point, image.Pt(145, 365), 2)
}

type skipAllFilter struct{ hits int }

func (f *skipAllFilter) SkipVerification(tpl string, pt image.Point) bool {
	f.hits++
	return true
}

func TestHybrid_FilterSkipsVerification(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	pf, tpl := buildScene(t, 400, 300, 40, 40, []image.Point{{X: 100, Y: 100}}, 0.75)

	filter := &skipAllFilter{}
	hybrid := &Hybrid{
		Accelerated: &Accelerated{Backend: MockBackend{}},
		Filter:      filter,
	}

	confirmed, err := hybrid.Match(pf, tpl, 0.8)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}

	if filter.hits == 0 {
		t.Error("filter was never consulted")
	}
	// Skipped candidates are reported, not dropped.
	if len(Reduce(confirmed, 20)) != 1 {
		t.Errorf("detections = %d, want 1 (skip keeps the candidate)", len(confirmed))
	}
}

func TestHybrid_TopKBound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	pf, tpl := buildScene(t, 800, 600, 40, 40,
		[]image.Point{{X: 40, Y: 40}, {X: 200, Y: 40}, {X: 400, Y: 40}}, 0.75)

	hybrid := &Hybrid{
		Accelerated: &Accelerated{Backend: MockBackend{}},
		TopK:        1,
	}
	confirmed, err := hybrid.Match(pf, tpl, 0.8)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if len(confirmed) > 1 {
		t.Errorf("confirmed = %d, want at most TopK=1", len(confirmed))
	}
}

func TestRelaxed_NoVerification(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	pf, tpl := buildScene(t, 400, 300, 40, 40, []image.Point{{X: 100, Y: 100}}, 0.75)

	relaxed := &Relaxed{Accelerated: &Accelerated{Backend: MockBackend{}}}
	candidates, err := relaxed.Match(pf, tpl, 0.8)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}

	if len(Reduce(candidates, 20)) != 1 {
		t.Fatalf("detections = %d, want 1", len(Reduce(candidates, 20)))
	}
	for _, c := range candidates {
		if c.Strategy != "relaxed" {
			t.Errorf("strategy tag = %q, want relaxed", c.Strategy)
		}
	}
}
