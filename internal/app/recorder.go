package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/gulpwatch/internal/gesture"
	"github.com/ayusman/gulpwatch/internal/plugin"
	"github.com/ayusman/gulpwatch/internal/store"
)

// Notifier queues plugin events. *plugin.Notifier implements it.
type Notifier interface {
	Notify(req plugin.Request) bool
}

// RecorderConfig sets how drinks are counted.
type RecorderConfig struct {
	MLPerGulp int
	GoalML    int
	// Location decides which calendar day a drink counts toward.
	// Nil means time.Local.
	Location *time.Location
}

// Recorder persists session events as drinks and forwards them to plugins.
// It implements gesture.Listener.
type Recorder struct {
	cfg      RecorderConfig
	store    *store.Store
	notifier Notifier
	log      *zap.Logger

	mu         sync.Mutex
	err        error
	onProgress []func(store.Progress)
}

// NewRecorder creates a Recorder. notifier and log may be nil.
func NewRecorder(cfg RecorderConfig, s *store.Store, notifier Notifier, log *zap.Logger) *Recorder {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{cfg: cfg, store: s, notifier: notifier, log: log}
}

// OnProgressChange registers fn to receive the day's progress after every
// recorded or retracted drink.
func (r *Recorder) OnProgressChange(fn func(store.Progress)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onProgress = append(r.onProgress, fn)
}

// Day returns the day key for t.
func (r *Recorder) Day(t time.Time) string {
	return store.DayKey(t.In(r.cfg.Location))
}

// Progress returns the progress of day.
func (r *Recorder) Progress(day string) (*store.Progress, error) {
	return r.store.Drinks().Progress(day, r.cfg.GoalML)
}

// OnDrink stores ev and notifies drink plugins, plus goal plugins when this
// drink reaches the goal.
func (r *Recorder) OnDrink(ev gesture.Event) {
	day := r.Day(ev.Timestamp)
	before, err := r.Progress(day)
	if err != nil {
		r.fail(fmt.Errorf("read progress: %w", err))
		return
	}

	snapshot, err := json.Marshal(ev.Snapshot)
	if err != nil {
		r.fail(fmt.Errorf("encode snapshot: %w", err))
		return
	}
	d := &store.Drink{
		ID:         ev.ID.String(),
		Day:        day,
		ML:         r.cfg.MLPerGulp,
		Source:     string(ev.Source),
		Criteria:   snapshot,
		OccurredAt: ev.Timestamp,
	}
	if err := r.store.Drinks().Create(d); err != nil {
		r.fail(fmt.Errorf("record drink %s: %w", d.ID, err))
		return
	}

	after, err := r.Progress(day)
	if err != nil {
		r.fail(fmt.Errorf("read progress: %w", err))
		return
	}
	r.log.Info("drink recorded",
		zap.String("id", d.ID),
		zap.String("source", d.Source),
		zap.Int("ml", after.ML),
		zap.Int("goal_ml", after.GoalML))

	r.notify(plugin.EventDrink, ev, after)
	if !before.Reached() && after.Reached() {
		r.log.Info("daily goal reached", zap.String("day", day), zap.Int("count", after.Count))
		r.notify(plugin.EventGoal, ev, after)
	}
	r.changed(after)
}

// OnRetract deletes the drink stored for ev and notifies undo plugins.
func (r *Recorder) OnRetract(ev gesture.Event) {
	id := ev.ID.String()
	if err := r.store.Drinks().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.log.Warn("retracted drink was never stored", zap.String("id", id))
		} else {
			r.fail(fmt.Errorf("delete drink %s: %w", id, err))
			return
		}
	}

	after, err := r.Progress(r.Day(ev.Timestamp))
	if err != nil {
		r.fail(fmt.Errorf("read progress: %w", err))
		return
	}
	r.log.Info("drink removed", zap.String("id", id), zap.Int("ml", after.ML))
	r.notify(plugin.EventUndo, ev, after)
	r.changed(after)
}

// Remind notifies reminder plugins that nothing was drunk for idle.
func (r *Recorder) Remind(now time.Time, idle time.Duration) {
	p, err := r.Progress(r.Day(now))
	if err != nil {
		r.log.Warn("skip reminder", zap.Error(err))
		return
	}
	r.log.Info("drink reminder", zap.Duration("idle", idle), zap.Int("ml", p.ML))
	if r.notifier == nil {
		return
	}
	r.notifier.Notify(plugin.Request{
		Event:       plugin.EventReminder,
		Progress:    toPluginProgress(p),
		IdleMinutes: int(idle / time.Minute),
	})
}

// TakeErr returns and clears the first error since the last call.
func (r *Recorder) TakeErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.err
	r.err = nil
	return err
}

func (r *Recorder) fail(err error) {
	r.log.Error("recorder failed", zap.Error(err))
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

func (r *Recorder) notify(event string, ev gesture.Event, p *store.Progress) {
	if r.notifier == nil {
		return
	}
	r.notifier.Notify(plugin.Request{
		Event: event,
		Drink: plugin.Drink{
			ID:        ev.ID.String(),
			Timestamp: ev.Timestamp,
			Source:    string(ev.Source),
			Manual:    ev.Manual,
			ML:        r.cfg.MLPerGulp,
		},
		Progress: toPluginProgress(p),
	})
}

func toPluginProgress(p *store.Progress) plugin.Progress {
	return plugin.Progress{Count: p.Count, ML: p.ML, GoalML: p.GoalML, Percent: p.Percent}
}

func (r *Recorder) changed(p *store.Progress) {
	r.mu.Lock()
	subs := append(([]func(store.Progress))(nil), r.onProgress...)
	r.mu.Unlock()
	for _, fn := range subs {
		fn(*p)
	}
}
