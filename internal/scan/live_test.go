package scan

import (
	"errors"
	"image"
	"sync"
	"testing"
	"time"
)

type countingRecorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *countingRecorder) Record(u Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
	return nil
}

func (r *countingRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func collectUpdates(t *testing.T, ch <-chan Update, n int) []Update {
	t.Helper()

	var got []Update
	deadline := time.After(10 * time.Second)
	for len(got) < n {
		select {
		case u := <-ch:
			got = append(got, u)
		case <-deadline:
			t.Fatalf("received %d updates, want %d", len(got), n)
		}
	}
	return got
}

func TestLive_MotionGateRepublishesPreviousResults(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	cfg := exhaustiveConfig()
	cfg.MotionDetection = true
	cfg.ScanIntervalMs = 5
	eng, _ := testEngine(t, cfg, 640, 480,
		map[string]image.Point{"gem": {X: 120, Y: 300}})

	rec := &countingRecorder{}
	eng.SetRecorder(rec)

	ch, cancel := eng.Subscribe()
	defer cancel()

	if err := eng.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	updates := collectUpdates(t, ch, 3)
	eng.Stop()

	first := updates[0]
	if first.Skipped {
		t.Error("first cycle was skipped; the gate must always scan its baseline frame")
	}
	if len(first.Results) != 1 || first.Results[0].Count != 1 {
		t.Fatalf("first cycle results = %+v, want the stamped icon", first.Results)
	}

	// The grabber loops one identical frame, so every later cycle is gated
	// and republishes the previous detections.
	for i, u := range updates[1:] {
		if !u.Skipped {
			t.Errorf("cycle %d not skipped for an unchanged frame", i+1)
		}
		if len(u.Results) != 1 || u.Results[0].Positions[0] != first.Results[0].Positions[0] {
			t.Errorf("skipped cycle %d results = %+v, want previous results", i+1, u.Results)
		}
	}

	for _, u := range updates {
		if u.CycleID == "" {
			t.Error("update missing cycle id")
		}
	}
	if rec.len() < len(updates) {
		t.Errorf("recorder saw %d cycles, want at least %d", rec.len(), len(updates))
	}
}

func TestLive_CaptureFailureRetriesNextTick(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	cfg := exhaustiveConfig()
	cfg.ScanIntervalMs = 5
	eng, grabber := testEngine(t, cfg, 640, 480,
		map[string]image.Point{"gem": {X: 120, Y: 300}})
	grabber.FailNext()

	ch, cancel := eng.Subscribe()
	defer cancel()

	if err := eng.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	updates := collectUpdates(t, ch, 1)
	eng.Stop()

	if len(updates[0].Results) != 1 {
		t.Errorf("results = %+v, want a detection once capture recovers", updates[0].Results)
	}
}

func TestLive_StartStopLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	eng, _ := testEngine(t, exhaustiveConfig(), 100, 100,
		map[string]image.Point{"gem": {X: 10, Y: 10}})

	if err := eng.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !eng.Running() {
		t.Error("Running() = false after Start")
	}
	if err := eng.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	eng.Stop()
	if eng.Running() {
		t.Error("Running() = true after Stop")
	}
	eng.Stop() // idempotent
}

func TestLive_FrameSkipReducesCycles(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	cfg := exhaustiveConfig()
	cfg.ScanIntervalMs = 5
	cfg.FrameSkipN = 3
	eng, grabber := testEngine(t, cfg, 640, 480,
		map[string]image.Point{"gem": {X: 120, Y: 300}})

	ch, cancel := eng.Subscribe()
	defer cancel()

	if err := eng.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	collectUpdates(t, ch, 2)
	eng.Stop()

	// With every third tick scanned, captures stay well below the published
	// update count times three plus slack.
	if got := grabber.Captures(); got > 4 {
		t.Errorf("captures = %d, want skipped ticks to not capture", got)
	}
}
