package app

import (
	"context"
	"sync"
	"time"

	"github.com/ayusman/gulpwatch/internal/gesture"
)

// reminderPoll caps how long RunReminders sleeps between checks.
const reminderPoll = 30 * time.Second

// Reminder tracks how long it has been since the last drink. It implements
// gesture.Listener.
type Reminder struct {
	interval time.Duration

	mu       sync.Mutex
	drank    time.Time
	reminded time.Time
}

// NewReminder creates a Reminder that starts counting at start. A zero or
// negative interval disables it.
func NewReminder(interval time.Duration, start time.Time) *Reminder {
	return &Reminder{interval: interval, drank: start}
}

// Enabled reports whether reminders are switched on.
func (r *Reminder) Enabled() bool {
	return r.interval > 0
}

// OnDrink restarts the wait.
func (r *Reminder) OnDrink(ev gesture.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.Timestamp.After(r.drank) {
		r.drank = ev.Timestamp
	}
}

// OnRetract is a no-op: an undone drink still counts as a recent one.
func (r *Reminder) OnRetract(gesture.Event) {}

// Due reports whether a reminder should go out at now, and how long it has
// been since the last drink. A due reminder restarts the wait, so the next
// one follows a full interval later.
func (r *Reminder) Due(now time.Time) (idle time.Duration, due bool) {
	if !r.Enabled() {
		return 0, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	since := r.drank
	if r.reminded.After(since) {
		since = r.reminded
	}
	if now.Sub(since) < r.interval {
		return 0, false
	}
	r.reminded = now
	return now.Sub(r.drank), true
}

// CheckReminder notifies reminder plugins when one is due and reports
// whether it did.
func (a *App) CheckReminder() bool {
	now := a.now()
	idle, due := a.reminder.Due(now)
	if !due {
		return false
	}
	a.recorder.Remind(now, idle)
	return true
}

// RunReminders checks for due reminders until ctx is done. It returns at
// once when reminders are disabled.
func (a *App) RunReminders(ctx context.Context) {
	if !a.reminder.Enabled() {
		return
	}
	ticker := time.NewTicker(min(a.reminder.interval, reminderPoll))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.CheckReminder()
		}
	}
}
