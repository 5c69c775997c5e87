package gesture

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/gulpwatch/internal/detector"
)

type recorder struct {
	drinks   []Event
	retracts []Event
}

func (r *recorder) OnDrink(e Event)   { r.drinks = append(r.drinks, e) }
func (r *recorder) OnRetract(e Event) { r.retracts = append(r.retracts, e) }

func newSession(t *testing.T, mutate func(*Config)) (*Session, *recorder) {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewSession(cfg)
	require.NoError(t, err)
	rec := &recorder{}
	s.Subscribe(rec)
	return s, rec
}

// Mouth at (0.5, 0.3); a grip with the wrist at y=0.45 is at the mouth and
// one at y=0.6 is resting below it, with its center near a container at
// (0.51, 0.53).
var mouth = detector.MouthAt(0.5, 0.3)

func atMouth() []detector.HandLandmarks {
	return hands(detector.GripLandmarks(0.5, 0.45))
}

func resting() []detector.HandLandmarks {
	return hands(detector.GripLandmarks(0.5, 0.6))
}

func bottle() detector.Object {
	return detector.ContainerAt("bottle", 0.7, 0.51, 0.53)
}

func TestNewSession_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FramesToConfirm = 0
	cfg.ScoreThreshold = 1.5

	_, err := NewSession(cfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "frames_to_confirm")
	assert.Contains(t, err.Error(), "score_threshold")
}

func TestSession_ConfirmsLiveContainer(t *testing.T) {
	s, rec := newSession(t, nil)

	snap, err := s.Evaluate(frame(0, atMouth(), mouth, bottle()))
	require.NoError(t, err)

	assert.True(t, snap.Qualifies)
	assert.True(t, snap.Confirmed)
	assert.Equal(t, SourceLive, snap.Container)
	require.Len(t, rec.drinks, 1)
	ev := rec.drinks[0]
	assert.Equal(t, t0, ev.Timestamp)
	assert.Equal(t, SourceLive, ev.Source)
	assert.False(t, ev.Manual)
	assert.NotEqual(t, uuid.Nil, ev.ID)
	assert.Equal(t, snap, ev.Snapshot)
}

func TestSession_CachedContainerBridgesGesture(t *testing.T) {
	s, rec := newSession(t, nil)

	frames := []*detector.Observation{
		frame(0, resting(), mouth, bottle()),
		frame(1*time.Second, resting(), mouth),
		frame(2*time.Second, resting(), mouth),
		frame(3*time.Second, atMouth(), mouth),
	}
	var snap Snapshot
	for _, f := range frames {
		var err error
		snap, err = s.Evaluate(f)
		require.NoError(t, err)
	}

	require.Len(t, rec.drinks, 1, "cached bottle must support the gulp at t=3s")
	assert.Equal(t, SourceCached, rec.drinks[0].Source)
	assert.False(t, snap.ContainerSeen)
}

func TestSession_DeskBottleDoesNotHideHeldCup(t *testing.T) {
	cup := detector.ContainerAt("cup", 0.5, 0.51, 0.53)
	desk := detector.ContainerAt("bottle", 0.9, 0.05, 0.9)

	t.Run("live", func(t *testing.T) {
		s, rec := newSession(t, nil)

		snap, err := s.Evaluate(frame(0, atMouth(), mouth, cup, desk))
		require.NoError(t, err)

		assert.True(t, snap.Qualifies)
		assert.True(t, snap.ContainerSeen)
		assert.Equal(t, SourceLive, snap.Container)
		require.Len(t, rec.drinks, 1)
		assert.Equal(t, "cup", s.Status().Container.Label)
	})

	t.Run("cached", func(t *testing.T) {
		s, rec := newSession(t, nil)

		frames := []*detector.Observation{
			frame(0, resting(), mouth, cup, desk),
			frame(1*time.Second, resting(), mouth, desk),
			frame(2*time.Second, resting(), mouth, desk),
			frame(3*time.Second, atMouth(), mouth, desk),
		}
		var snap Snapshot
		for _, f := range frames {
			var err error
			snap, err = s.Evaluate(f)
			require.NoError(t, err)
		}

		assert.False(t, snap.ContainerSeen)
		require.Len(t, rec.drinks, 1, "the tilted cup is still cached")
		assert.Equal(t, SourceCached, rec.drinks[0].Source)
	})
}

func TestSession_ExpiredCacheBlocksGesture(t *testing.T) {
	s, rec := newSession(t, nil)

	frames := []*detector.Observation{
		frame(0, resting(), mouth, bottle()),
		frame(1700*time.Millisecond, resting(), mouth),
		frame(3400*time.Millisecond, resting(), mouth),
		frame(5100*time.Millisecond, atMouth(), mouth),
	}
	for _, f := range frames {
		_, err := s.Evaluate(f)
		require.NoError(t, err)
	}

	assert.Empty(t, rec.drinks)
	assert.Equal(t, SourceNone, s.Snapshot().Container)
}

func TestSession_NoContainerRequired(t *testing.T) {
	s, rec := newSession(t, func(c *Config) { c.RequireContainer = false })

	_, err := s.Evaluate(frame(0, atMouth(), mouth))
	require.NoError(t, err)

	assert.Len(t, rec.drinks, 1)
	assert.Equal(t, SourceNone, rec.drinks[0].Source)
}

func TestSession_ContainerRequired(t *testing.T) {
	s, rec := newSession(t, nil)

	snap, err := s.Evaluate(frame(0, atMouth(), mouth))
	require.NoError(t, err)

	assert.False(t, snap.Qualifies)
	assert.Empty(t, rec.drinks)
}

func TestSession_Sensitivity(t *testing.T) {
	// A pointing hand at the mouth is close and tilted but not holding.
	pointing := hands(detector.PointingLandmarks(0.5, 0.45))

	tests := []struct {
		sensitivity Sensitivity
		want        int
	}{
		{SensitivityEasy, 1},
		{SensitivityMedium, 0},
		{SensitivityStrict, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.sensitivity), func(t *testing.T) {
			s, rec := newSession(t, func(c *Config) {
				c.Sensitivity = tt.sensitivity
				c.RequireContainer = false
			})
			_, err := s.Evaluate(frame(0, pointing, mouth))
			require.NoError(t, err)
			assert.Len(t, rec.drinks, tt.want)
		})
	}
}

func TestSession_StrictNeedsMotion(t *testing.T) {
	s, rec := newSession(t, func(c *Config) {
		c.Sensitivity = SensitivityStrict
		c.RequireContainer = false
	})

	// Raise the cup from the chest to the mouth.
	for i, y := range []float64{0.60, 0.55, 0.50, 0.45} {
		_, err := s.Evaluate(frame(time.Duration(i)*tick, hands(detector.GripLandmarks(0.5, y)), mouth))
		require.NoError(t, err)
	}

	require.Len(t, rec.drinks, 1)
	assert.True(t, rec.drinks[0].Snapshot.Criteria.UpwardMotion)
	assert.Equal(t, 4, rec.drinks[0].Snapshot.Met)
}

func TestSession_FramesToConfirmAndCooldown(t *testing.T) {
	s, rec := newSession(t, func(c *Config) {
		c.FramesToConfirm = 3
		c.Cooldown = 2 * time.Second
	})

	var at time.Duration
	step := func(hs []detector.HandLandmarks) {
		t.Helper()
		_, err := s.Evaluate(frame(at, hs, mouth, bottle()))
		require.NoError(t, err)
		at += tick
	}

	step(atMouth())
	step(atMouth())
	step(nil)
	assert.Empty(t, rec.drinks, "two qualifying frames and a miss do not confirm")
	assert.Equal(t, StateIdle, s.Status().State)

	step(atMouth())
	step(atMouth())
	step(atMouth())
	require.Len(t, rec.drinks, 1)
	assert.Equal(t, StateCooldown, s.Status().State)

	for at < 3*time.Second {
		step(atMouth())
	}
	require.Len(t, rec.drinks, 2)
	assert.GreaterOrEqual(t, rec.drinks[1].Timestamp.Sub(rec.drinks[0].Timestamp), 2*time.Second)
}

func TestSession_FrameGapResetsRun(t *testing.T) {
	s, rec := newSession(t, func(c *Config) { c.FramesToConfirm = 2 })

	_, err := s.Evaluate(frame(0, atMouth(), mouth, bottle()))
	require.NoError(t, err)
	_, err = s.Evaluate(frame(3*time.Second, atMouth(), mouth, bottle()))
	require.NoError(t, err)

	assert.Empty(t, rec.drinks, "a stall between frames is not a continuous run")
	assert.Equal(t, 1, s.Status().Run)
}

func TestSession_GapResetsRun(t *testing.T) {
	s, rec := newSession(t, func(c *Config) { c.FramesToConfirm = 2 })

	_, err := s.Evaluate(frame(0, atMouth(), mouth, bottle()))
	require.NoError(t, err)
	s.Gap(t0.Add(tick))
	_, err = s.Evaluate(frame(2*tick, atMouth(), mouth, bottle()))
	require.NoError(t, err)

	assert.Empty(t, rec.drinks)
}

func TestSession_Away(t *testing.T) {
	s, rec := newSession(t, func(c *Config) { c.RequireContainer = false })

	_, err := s.Evaluate(frame(0, nil, mouth))
	require.NoError(t, err)
	for i := 1; i <= 6; i++ {
		_, err = s.Evaluate(frame(time.Duration(i)*time.Second, nil, nil))
		require.NoError(t, err)
	}
	assert.True(t, s.Status().Away)

	snap, err := s.Evaluate(frame(6500*time.Millisecond, atMouth(), mouth))
	require.NoError(t, err)
	assert.False(t, snap.Away, "a face clears away immediately")
	assert.Len(t, rec.drinks, 1)
}

func TestSession_MalformedObservation(t *testing.T) {
	s, rec := newSession(t, nil)

	bad := frame(0, atMouth(), mouth)
	bad.Hands[0].Points[detector.Wrist].X = math.NaN()

	_, err := s.Evaluate(bad)
	assert.ErrorIs(t, err, detector.ErrMalformedObservation)

	_, err = s.Evaluate(nil)
	assert.ErrorIs(t, err, detector.ErrMalformedObservation)

	_, err = s.Evaluate(&detector.Observation{})
	assert.ErrorIs(t, err, detector.ErrMalformedObservation)

	assert.Empty(t, rec.drinks)
}

func TestSession_OutOfOrder(t *testing.T) {
	s, _ := newSession(t, nil)

	_, err := s.Evaluate(frame(time.Second, nil, mouth))
	require.NoError(t, err)
	_, err = s.Evaluate(frame(0, nil, mouth))

	assert.True(t, errors.Is(err, ErrOutOfOrder))
}

func TestSession_ManualAddAndUndo(t *testing.T) {
	s, rec := newSession(t, nil)

	added := s.ManualAdd(t0)
	assert.True(t, added.Manual)
	assert.Equal(t, SourceManual, added.Source)
	require.Len(t, rec.drinks, 1)

	// The manual add starts a cooldown.
	_, err := s.Evaluate(frame(time.Second, atMouth(), mouth, bottle()))
	require.NoError(t, err)
	assert.Len(t, rec.drinks, 1)

	undone, ok := s.UndoLast()
	require.True(t, ok)
	assert.Equal(t, added.ID, undone.ID)
	assert.Equal(t, added.Timestamp, undone.Timestamp)
	require.Len(t, rec.retracts, 1)
	assert.Equal(t, added.ID, rec.retracts[0].ID)
}

func TestSession_UndoWithoutEventsIsNoop(t *testing.T) {
	s, rec := newSession(t, nil)

	ev, ok := s.UndoLast()

	assert.False(t, ok)
	assert.Equal(t, Event{}, ev)
	assert.Empty(t, rec.retracts)

	s.ManualAdd(t0)
	_, ok = s.UndoLast()
	require.True(t, ok)
	_, ok = s.UndoLast()
	assert.False(t, ok, "undo past the first event is a no-op")
	assert.Len(t, rec.retracts, 1)
}

func TestSession_UndoWalksBack(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	next := 0
	cfg := DefaultConfig()
	s, err := NewSession(cfg, WithIDGenerator(func() uuid.UUID {
		id := ids[next]
		next++
		return id
	}))
	require.NoError(t, err)

	for i := range ids {
		s.ManualAdd(t0.Add(time.Duration(i) * time.Minute))
	}
	for i := len(ids) - 1; i >= 0; i-- {
		ev, ok := s.UndoLast()
		require.True(t, ok)
		assert.Equal(t, ids[i], ev.ID)
	}
}

func TestSession_DiagnosticsDoNotMutate(t *testing.T) {
	s, rec := newSession(t, func(c *Config) { c.FramesToConfirm = 2 })

	_, err := s.Evaluate(frame(0, atMouth(), mouth, bottle()))
	require.NoError(t, err)

	before := s.Status()
	for i := 0; i < 10; i++ {
		s.Snapshot()
		s.Status()
	}
	assert.Equal(t, before, s.Status())
	assert.Equal(t, 1, before.Run)
	assert.Equal(t, StateAccumulating, before.State)
	require.NotNil(t, before.Container)
	assert.Equal(t, "bottle", before.Container.Label)

	_, err = s.Evaluate(frame(tick, atMouth(), mouth, bottle()))
	require.NoError(t, err)
	assert.Len(t, rec.drinks, 1)
}

func TestSession_ListenerFuncs(t *testing.T) {
	s, _ := newSession(t, nil)
	var drinks, retracts int
	s.Subscribe(ListenerFuncs{Drink: func(Event) { drinks++ }})
	s.Subscribe(ListenerFuncs{Retract: func(Event) { retracts++ }})

	s.ManualAdd(t0)
	s.UndoLast()

	assert.Equal(t, 1, drinks)
	assert.Equal(t, 1, retracts)
}
