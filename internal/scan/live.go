package scan

import (
	"context"
	"errors"
	"log"
	"time"
)

// ErrAlreadyRunning is returned by Start when the live loop is active.
var ErrAlreadyRunning = errors.New("live scan already running")

// Start launches the live scan loop in its own goroutine. Each tick captures
// one frame, consults the motion gate and publishes an Update to every
// subscriber.
func (e *Engine) Start() error {
	e.liveMu.Lock()
	defer e.liveMu.Unlock()

	if e.running {
		return ErrAlreadyRunning
	}
	e.stopCh = make(chan struct{})
	e.running = true

	e.liveWg.Add(1)
	go e.liveLoop(e.stopCh)
	return nil
}

// Stop halts the live loop and waits for the in-flight cycle to finish.
func (e *Engine) Stop() {
	e.liveMu.Lock()
	if !e.running {
		e.liveMu.Unlock()
		return
	}
	close(e.stopCh)
	e.running = false
	e.liveMu.Unlock()

	e.liveWg.Wait()
	e.gate.Reset()
}

// Running reports whether the live loop is active.
func (e *Engine) Running() bool {
	e.liveMu.Lock()
	defer e.liveMu.Unlock()
	return e.running
}

func (e *Engine) liveLoop(stop chan struct{}) {
	defer e.liveWg.Done()

	interval := e.Config().ScanInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	frameIdx := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		cfg := e.Config()
		if want := cfg.ScanInterval(); want != interval {
			interval = want
			ticker.Reset(interval)
		}

		frameIdx++
		if cfg.FrameSkipN > 1 && frameIdx%cfg.FrameSkipN != 0 {
			continue
		}

		e.runCycle(cfg)
	}
}

// runCycle is one live iteration. A capture failure is logged and skipped so
// a transient source hiccup never kills the loop; a gated (visually
// unchanged) frame re-publishes the previous results instead of rescanning.
func (e *Engine) runCycle(cfg Config) {
	start := time.Now()
	u := Update{CycleID: newCycleID(), Timestamp: start}

	e.scanMu.Lock()

	frame, err := e.grabber.Capture(cfg.Region.ToRectangle())
	if err != nil {
		e.scanMu.Unlock()
		log.Printf("[scan] live capture failed, retrying next tick: %v", err)
		return
	}

	if cfg.MotionDetection {
		skip, ratio := e.gate.ShouldSkip(frame)
		u.ChangeRatio = ratio
		if skip {
			frame.Close()
			e.scanMu.Unlock()

			u.Skipped = true
			u.Results, _ = e.LastResults()
			u.Duration = time.Since(start)
			e.publish(u)
			return
		}
	}

	results, err := e.scanFrame(context.Background(), cfg, frame)
	e.scanMu.Unlock()

	if err != nil {
		log.Printf("[scan] live cycle %s: %v", u.CycleID, err)
		return
	}

	e.memo.Put(e.memo.Key(cfg.Region.ToRectangle(), e.store.Signature()), results)

	u.Results = results
	u.Duration = time.Since(start)
	e.publish(u)
}
