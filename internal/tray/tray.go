// Package tray provides the system tray interface for the scan engine.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
)

// Tray is the system tray application: a live-scan toggle, a last-result
// readout, a calibrate action and the usual settings/quit items.
type Tray struct {
	onToggle    func(running bool)
	onCalibrate func()
	onSettings  func()
	onQuit      func()
	running     bool
	mu          sync.RWMutex

	// Menu items stored for later updates
	menuToggle   *systray.MenuItem
	menuLastScan *systray.MenuItem
}

// New creates a new Tray instance. Live scanning starts off.
func New() *Tray {
	return &Tray{}
}

// OnToggle sets the callback for the live-scan toggle.
func (t *Tray) OnToggle(fn func(running bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnCalibrate sets the callback for the calibrate menu item.
func (t *Tray) OnCalibrate(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCalibrate = fn
}

// OnSettings sets the callback for the settings menu item.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback for the quit menu item.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// onReady sets up the menu structure once the tray is available.
func (t *Tray) onReady() {
	systray.SetTitle("MergeScan")
	systray.SetTooltip("MergeScan board detection")

	t.menuToggle = systray.AddMenuItem("○ Live scan off", "Toggle live scanning")
	systray.AddSeparator()

	t.menuLastScan = systray.AddMenuItem("Last: none", "Last scan result")
	t.menuLastScan.Disable()
	systray.AddSeparator()

	menuCalibrate := systray.AddMenuItem("Calibrate scale", "Sweep the resize factor against the current frame")
	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit MergeScan")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuCalibrate.ClickedCh:
				t.handleCalibrate()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	// Cleanup resources if needed
}

// handleToggle flips the live-scan state and notifies the owner.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.running = !t.running
	running := t.running

	if running {
		t.menuToggle.SetTitle("● Live scan on")
	} else {
		t.menuToggle.SetTitle("○ Live scan off")
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(running)
	}
}

func (t *Tray) handleCalibrate() {
	t.mu.RLock()
	callback := t.onCalibrate
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetLastScan updates the last-result readout in the menu.
func (t *Tray) SetLastScan(found, templates int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLastScan == nil {
		return
	}
	if templates == 0 {
		t.menuLastScan.SetTitle("Last: none")
		return
	}
	t.menuLastScan.SetTitle(fmt.Sprintf("Last: %d found across %d templates", found, templates))
}

// IsRunning returns the toggle state.
func (t *Tray) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}
