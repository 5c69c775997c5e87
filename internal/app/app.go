// Package app wires the camera, perception, the drink detection session and
// storage into the running gulpwatch service.
package app

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/gulpwatch/internal/capture"
	"github.com/ayusman/gulpwatch/internal/config"
	"github.com/ayusman/gulpwatch/internal/detector"
	"github.com/ayusman/gulpwatch/internal/gesture"
	"github.com/ayusman/gulpwatch/internal/store"
)

// Options holds the collaborators of an App. Config and Store are required.
type Options struct {
	Config   *config.Config
	Store    *store.Store
	Camera   capture.Camera
	Detector detector.Detector
	Notifier Notifier
	Logger   *zap.Logger
	// Location decides the calendar day drinks count toward.
	Location *time.Location
	// Now is the wall clock for manual adds and reminders. Nil means time.Now.
	Now func() time.Time
}

// App owns the detection session and serializes every call into it: frames
// from the pipeline, manual adds and undos from the API and the tray.
type App struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *store.Store
	camera   capture.Camera
	detector detector.Detector
	motion   *capture.MotionDetector
	gate     *capture.Gate
	frames   capture.Latest
	now      func() time.Time

	mu       sync.Mutex
	session  *gesture.Session
	recorder *Recorder
	reminder *Reminder

	enabled atomic.Bool

	subsMu   sync.RWMutex
	onStatus []func(gesture.Status)

	runMu  sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates an App. Detection starts enabled unless a previous run
// switched it off.
func New(opts Options) (*App, error) {
	if opts.Config == nil || opts.Store == nil {
		return nil, errors.New("app: config and store are required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cfg := opts.Config

	session, err := gesture.NewSession(cfg.Engine(), gesture.WithLogger(log.Named("session")))
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	recorder := NewRecorder(RecorderConfig{
		MLPerGulp: cfg.MLPerGulp,
		GoalML:    cfg.GoalML,
		Location:  opts.Location,
	}, opts.Store, opts.Notifier, log.Named("recorder"))
	session.Subscribe(recorder)
	reminder := NewReminder(cfg.ReminderInterval(), now())
	session.Subscribe(reminder)

	a := &App{
		cfg:      cfg,
		log:      log,
		store:    opts.Store,
		camera:   opts.Camera,
		detector: opts.Detector,
		gate:     capture.NewGate(cfg.IdleFPS, cfg.ActiveFPS, time.Duration(cfg.IdleTimeoutMS)*time.Millisecond),
		now:      now,
		session:  session,
		recorder: recorder,
		reminder: reminder,
	}
	a.enabled.Store(opts.Store.Settings().Bool(store.SettingDetectionEnabled, true))
	return a, nil
}

// SetEnabled switches detection on or off and remembers the choice.
func (a *App) SetEnabled(enabled bool) error {
	if err := a.store.Settings().SetBool(store.SettingDetectionEnabled, enabled); err != nil {
		return fmt.Errorf("save detection setting: %w", err)
	}
	a.enabled.Store(enabled)
	a.log.Info("detection toggled", zap.Bool("enabled", enabled))
	return nil
}

// Enabled reports whether frames are being analysed.
func (a *App) Enabled() bool {
	return a.enabled.Load()
}

// Process evaluates one observation.
func (a *App) Process(obs *detector.Observation) (gesture.Snapshot, error) {
	a.mu.Lock()
	snap, err := a.session.Evaluate(obs)
	status := a.session.Status()
	recErr := a.recorder.TakeErr()
	a.mu.Unlock()

	if err != nil {
		return snap, err
	}
	a.publish(status)
	return snap, recErr
}

// Gap reports that no frame could be analysed at now.
func (a *App) Gap(now time.Time) {
	a.mu.Lock()
	a.session.Gap(now)
	status := a.session.Status()
	a.mu.Unlock()
	a.publish(status)
}

// AddDrink records a drink by hand.
func (a *App) AddDrink() (gesture.Event, error) {
	a.mu.Lock()
	ev := a.session.ManualAdd(a.now())
	err := a.recorder.TakeErr()
	status := a.session.Status()
	a.mu.Unlock()

	a.publish(status)
	return ev, err
}

// UndoDrink retracts the most recent drink. ok is false when there was
// nothing to undo.
func (a *App) UndoDrink() (ev gesture.Event, ok bool, err error) {
	a.mu.Lock()
	ev, ok = a.session.UndoLast()
	err = a.recorder.TakeErr()
	status := a.session.Status()
	a.mu.Unlock()

	if ok {
		a.publish(status)
	}
	return ev, ok, err
}

// Status returns the session diagnostics.
func (a *App) Status() gesture.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.Status()
}

// Today returns the current day key.
func (a *App) Today() string {
	return a.recorder.Day(a.now())
}

// Progress returns the progress of day, or today when day is empty.
func (a *App) Progress(day string) (*store.Progress, error) {
	if day == "" {
		day = a.Today()
	}
	return a.recorder.Progress(day)
}

// OnStatus registers fn to receive the session status after every change.
// fn runs on the goroutine that caused the change.
func (a *App) OnStatus(fn func(gesture.Status)) {
	a.subsMu.Lock()
	defer a.subsMu.Unlock()
	a.onStatus = append(a.onStatus, fn)
}

// OnProgress registers fn to receive the day's progress after every
// recorded or removed drink.
func (a *App) OnProgress(fn func(store.Progress)) {
	a.recorder.OnProgressChange(fn)
}

// Frames returns the preview frame buffer.
func (a *App) Frames() *capture.Latest {
	return &a.frames
}

// Config returns the application config.
func (a *App) Config() *config.Config {
	return a.cfg
}

func (a *App) publish(status gesture.Status) {
	a.subsMu.RLock()
	defer a.subsMu.RUnlock()
	for _, fn := range a.onStatus {
		fn(status)
	}
}
