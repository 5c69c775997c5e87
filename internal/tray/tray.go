// Package tray provides the gulpwatch system tray menu.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/gulpwatch/internal/store"
)

// Tray shows today's progress and offers manual add, undo and a detection
// toggle.
type Tray struct {
	onToggle func(enabled bool)
	onAdd    func()
	onUndo   func()
	onDebug  func()
	onQuit   func()
	enabled  bool
	progress store.Progress
	last     string
	mu       sync.RWMutex

	menuToggle *systray.MenuItem
	menuLast   *systray.MenuItem
	ready      bool
}

// New creates a Tray with detection shown as enabled.
func New(enabled bool) *Tray {
	return &Tray{enabled: enabled}
}

// OnToggle sets the callback for the detection toggle.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnAdd sets the callback for "Add gulp".
func (t *Tray) OnAdd(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onAdd = fn
}

// OnUndo sets the callback for "Undo last gulp".
func (t *Tray) OnUndo(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onUndo = fn
}

// OnDebug sets the callback for "Open debug view".
func (t *Tray) OnDebug(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDebug = fn
}

// OnQuit sets the callback run before the tray exits.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray. It blocks until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	t.mu.Lock()
	systray.SetTitle(progressTitle(t.progress))
	systray.SetTooltip("gulpwatch")

	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle drink detection")
	systray.AddSeparator()

	menuAdd := systray.AddMenuItem("Add gulp", "Count a gulp by hand")
	menuUndo := systray.AddMenuItem("Undo last gulp", "Remove the most recent gulp")
	t.menuLast = systray.AddMenuItem(lastTitle(t.last), "Most recent gulp")
	t.menuLast.Disable()
	systray.AddSeparator()

	menuDebug := systray.AddMenuItem("Open debug view...", "Open the live view in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit gulpwatch")
	t.ready = true
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuAdd.ClickedCh:
				t.call(func() func() { return t.onAdd })
			case <-menuUndo.ClickedCh:
				t.call(func() func() { return t.onUndo })
			case <-menuDebug.ClickedCh:
				t.call(func() func() { return t.onDebug })
			case <-menuQuit.ClickedCh:
				t.call(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	t.mu.Lock()
	t.ready = false
	t.mu.Unlock()
}

// call runs the callback picked under the read lock.
func (t *Tray) call(pick func() func()) {
	t.mu.RLock()
	fn := pick()
	t.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Outside the lock: the callback may call back into the tray.
	if callback != nil {
		callback(enabled)
	}
}

// SetProgress updates the title with today's total.
func (t *Tray) SetProgress(p store.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress = p
	if t.ready {
		systray.SetTitle(progressTitle(p))
	}
}

// SetLast updates the "Last" entry.
func (t *Tray) SetLast(desc string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == desc {
		return
	}
	t.last = desc
	if t.menuLast != nil {
		t.menuLast.SetTitle(lastTitle(desc))
	}
}

// SetEnabled reflects a detection toggle made elsewhere.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func progressTitle(p store.Progress) string {
	if p.GoalML <= 0 {
		return fmt.Sprintf("💧 %d ml", p.ML)
	}
	if p.Reached() {
		return fmt.Sprintf("💧 %d / %d ml ✓", p.ML, p.GoalML)
	}
	return fmt.Sprintf("💧 %d / %d ml", p.ML, p.GoalML)
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Detection on"
	}
	return "○ Detection off"
}

func lastTitle(desc string) string {
	if desc == "" {
		return "Last: none"
	}
	return "Last: " + desc
}
