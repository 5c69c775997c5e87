package gesture

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayusman/gulpwatch/internal/detector"
)

// ErrOutOfOrder is returned when a frame is older than the previous one.
var ErrOutOfOrder = errors.New("frame timestamp out of order")

// undoDepth bounds how many events UndoLast can walk back.
const undoDepth = 100

// Event is a confirmed (or manually added) drink.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  Snapshot  `json:"snapshot"`
	Source    Source    `json:"source"`
	Manual    bool      `json:"manual"`
}

// Listener receives session events. Calls happen synchronously on the
// goroutine driving the session and must not call back into it.
type Listener interface {
	OnDrink(Event)
	OnRetract(Event)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Drink   func(Event)
	Retract func(Event)
}

func (l ListenerFuncs) OnDrink(e Event) {
	if l.Drink != nil {
		l.Drink(e)
	}
}

func (l ListenerFuncs) OnRetract(e Event) {
	if l.Retract != nil {
		l.Retract(e)
	}
}

// Status is a read-only view of the session for diagnostics.
type Status struct {
	State             State         `json:"state"`
	Run               int           `json:"run"`
	FramesToConfirm   int           `json:"frames_to_confirm"`
	CooldownRemaining time.Duration `json:"cooldown_remaining"`
	Container         *CacheEntry   `json:"container,omitempty"`
	Away              bool          `json:"away"`
	Events            int           `json:"events"`
	LastEvent         *Event        `json:"last_event,omitempty"`
	Snapshot          Snapshot      `json:"snapshot"`
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithIDGenerator replaces uuid.New for event IDs.
func WithIDGenerator(fn func() uuid.UUID) Option {
	return func(s *Session) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// Session owns the complete evaluation state of one camera stream. It is
// not safe for concurrent use; callers serialize access.
type Session struct {
	cfg   Config
	log   *zap.Logger
	newID func() uuid.UUID

	features   *FeatureExtractor
	containers *ContainerTracker
	confirm    *Confirmer
	listeners  []Listener

	last      Snapshot
	lastFrame time.Time
	lastFace  time.Time
	events    []Event
}

// NewSession validates cfg and creates a Session in StateIdle.
func NewSession(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		cfg:        cfg,
		log:        zap.NewNop(),
		newID:      uuid.New,
		features:   NewFeatureExtractor(cfg.Features, cfg.DrinkingHand),
		containers: NewContainerTracker(cfg),
		confirm:    NewConfirmer(cfg.FramesToConfirm, cfg.Cooldown),
		last:       Snapshot{Required: cfg.Sensitivity.Required(), ContainerRequired: cfg.RequireContainer, Container: SourceNone, Distance: -1},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the session configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// Subscribe registers l for drink and retract notifications.
func (s *Session) Subscribe(l Listener) {
	s.listeners = append(s.listeners, l)
}

// Evaluate runs one evaluation cycle for obs and returns its snapshot.
// A confirmed frame notifies listeners before Evaluate returns.
func (s *Session) Evaluate(obs *detector.Observation) (Snapshot, error) {
	if err := obs.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("evaluate frame: %w", err)
	}
	now := obs.Timestamp
	if !s.lastFrame.IsZero() {
		if now.Before(s.lastFrame) {
			return Snapshot{}, fmt.Errorf("evaluate frame: %w: %s before %s",
				ErrOutOfOrder, now.Format(time.RFC3339Nano), s.lastFrame.Format(time.RFC3339Nano))
		}
		if now.Sub(s.lastFrame) > s.cfg.MaxFrameGap {
			s.log.Debug("frame gap", zap.Duration("gap", now.Sub(s.lastFrame)))
			s.dropped(now)
		}
	}
	if s.lastFrame.IsZero() || obs.HasFace() {
		s.lastFace = now
	}
	s.lastFrame = now

	f := s.features.Extract(obs)
	seen := s.containers.Observe(obs.Objects, f.Hand, now)

	source := SourceNone
	if f.Hand != nil {
		_, source = s.containers.Present(f.Hand.Center(), now)
	}

	snap := Evaluate(f.Criteria, s.cfg.Sensitivity, s.cfg.RequireContainer, source)
	snap.Timestamp = now
	snap.ContainerSeen = seen
	snap.HandDetected = f.Hand != nil
	snap.FaceDetected = obs.HasFace()
	snap.Away = s.away(now)
	if !math.IsNaN(f.Distance) {
		snap.Distance = f.Distance
	}
	if snap.Away {
		snap.Qualifies = false
	}

	prev := s.confirm.State()
	snap.Confirmed = s.confirm.Step(snap.Qualifies, now)
	if st := s.confirm.State(); st != prev {
		s.log.Debug("state change", zap.Stringer("from", prev), zap.Stringer("to", st), zap.Int("met", snap.Met))
	}
	s.last = snap

	if snap.Confirmed {
		ev := Event{ID: s.newID(), Timestamp: now, Snapshot: snap, Source: source}
		s.log.Info("drink confirmed",
			zap.String("id", ev.ID.String()),
			zap.String("source", string(source)),
			zap.Int("met", snap.Met),
			zap.Int("required", snap.Required))
		s.push(ev)
	}
	return snap, nil
}

// Gap tells the session that no frame could be produced at now. The gap
// counts as a non-qualifying frame and clears the motion history.
func (s *Session) Gap(now time.Time) {
	s.dropped(now)
	if now.After(s.lastFrame) {
		s.lastFrame = now
	}
}

func (s *Session) dropped(now time.Time) {
	s.confirm.Gap(now)
	s.features.Reset()
}

// ManualAdd records an operator-added drink at now. It starts a cooldown so
// the gulp being added by hand is not detected again.
func (s *Session) ManualAdd(now time.Time) Event {
	snap := s.last
	snap.Container = SourceManual
	ev := Event{ID: s.newID(), Timestamp: now, Snapshot: snap, Source: SourceManual, Manual: true}
	s.confirm.Arm(now)
	s.log.Info("drink added manually", zap.String("id", ev.ID.String()))
	s.push(ev)
	return ev
}

// UndoLast retracts the most recent event. With nothing to retract it
// returns false and does nothing else.
func (s *Session) UndoLast() (Event, bool) {
	if len(s.events) == 0 {
		return Event{}, false
	}
	ev := s.events[len(s.events)-1]
	s.events = s.events[:len(s.events)-1]
	s.log.Info("drink retracted", zap.String("id", ev.ID.String()), zap.Bool("manual", ev.Manual))
	for _, l := range s.listeners {
		l.OnRetract(ev)
	}
	return ev, true
}

// Snapshot returns the snapshot of the last evaluated frame.
func (s *Session) Snapshot() Snapshot {
	return s.last
}

// Status reports the session state at the time of the last frame.
func (s *Session) Status() Status {
	now := s.lastFrame
	st := Status{
		State:             s.confirm.State(),
		Run:               s.confirm.Run(),
		FramesToConfirm:   s.cfg.FramesToConfirm,
		CooldownRemaining: s.confirm.CooldownRemaining(now),
		Away:              s.last.Away,
		Events:            len(s.events),
		Snapshot:          s.last,
	}
	if e, ok := s.containers.Entry(now); ok {
		st.Container = &e
	}
	if n := len(s.events); n > 0 {
		ev := s.events[n-1]
		st.LastEvent = &ev
	}
	return st
}

func (s *Session) away(now time.Time) bool {
	return s.cfg.AwayTimeout > 0 && now.Sub(s.lastFace) >= s.cfg.AwayTimeout
}

func (s *Session) push(ev Event) {
	s.events = append(s.events, ev)
	if len(s.events) > undoDepth {
		s.events = append(s.events[:0], s.events[len(s.events)-undoDepth:]...)
	}
	for _, l := range s.listeners {
		l.OnDrink(ev)
	}
}
