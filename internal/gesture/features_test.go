package gesture

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/gulpwatch/internal/detector"
)

var t0 = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func frame(at time.Duration, hands []detector.HandLandmarks, mouth []detector.Point3D, objects ...detector.Object) *detector.Observation {
	return &detector.Observation{
		Timestamp: t0.Add(at),
		Hands:     hands,
		Mouth:     mouth,
		Objects:   objects,
	}
}

func hands(h ...detector.HandLandmarks) []detector.HandLandmarks {
	return h
}

func TestFeatureExtractor_NoHands(t *testing.T) {
	e := NewFeatureExtractor(DefaultConfig().Features, HandBoth)

	f := e.Extract(frame(0, nil, detector.MouthAt(0.5, 0.4)))

	assert.Equal(t, Criteria{}, f.Criteria)
	assert.Nil(t, f.Hand)
	assert.True(t, math.IsNaN(f.Distance))
}

func TestFeatureExtractor_GripAtMouth(t *testing.T) {
	e := NewFeatureExtractor(DefaultConfig().Features, HandBoth)

	f := e.Extract(frame(0, hands(detector.GripLandmarks(0.5, 0.5)), detector.MouthAt(0.5, 0.4)))

	require.NotNil(t, f.Hand)
	assert.True(t, f.IsClose)
	assert.True(t, f.IsHolding)
	assert.True(t, f.IsDrinking)
	assert.False(t, f.UpwardMotion, "a single sample never shows motion")
	assert.InDelta(t, 0.045, f.Distance, 1e-9)
}

func TestFeatureExtractor_Criteria(t *testing.T) {
	tests := []struct {
		name  string
		hand  detector.HandLandmarks
		mouth []detector.Point3D
		want  Criteria
	}{
		{
			name:  "pointing finger near mouth is close but not holding",
			hand:  detector.PointingLandmarks(0.5, 0.5),
			mouth: detector.MouthAt(0.5, 0.4),
			want:  Criteria{IsClose: true, IsDrinking: true},
		},
		{
			name:  "grip at chest is holding but not close",
			hand:  detector.GripLandmarks(0.5, 0.9),
			mouth: detector.MouthAt(0.5, 0.4),
			want:  Criteria{IsHolding: true, IsDrinking: true},
		},
		{
			name:  "grip above the mouth is not drinking",
			hand:  detector.GripLandmarks(0.5, 0.3),
			mouth: detector.MouthAt(0.5, 0.4),
			want:  Criteria{IsClose: true, IsHolding: true},
		},
		{
			name: "grip without a face",
			hand: detector.GripLandmarks(0.5, 0.5),
			want: Criteria{IsHolding: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewFeatureExtractor(DefaultConfig().Features, HandBoth)
			f := e.Extract(frame(0, hands(tt.hand), tt.mouth))
			assert.Equal(t, tt.want, f.Criteria)
		})
	}
}

func TestFeatureExtractor_DrinkingHandFilter(t *testing.T) {
	e := NewFeatureExtractor(DefaultConfig().Features, HandLeft)

	f := e.Extract(frame(0, hands(detector.GripLandmarks(0.5, 0.5)), detector.MouthAt(0.5, 0.4)))

	assert.Nil(t, f.Hand, "right hand must be ignored when only the left may drink")
	assert.Equal(t, Criteria{}, f.Criteria)
}

func TestFeatureExtractor_PicksHandClosestToMouth(t *testing.T) {
	e := NewFeatureExtractor(DefaultConfig().Features, HandBoth)
	far := detector.GripLandmarks(0.2, 0.9)
	near := detector.GripLandmarks(0.5, 0.5)

	f := e.Extract(frame(0, hands(far, near), detector.MouthAt(0.5, 0.4)))

	require.NotNil(t, f.Hand)
	assert.Equal(t, near.Points[detector.Wrist], f.Hand.Points[detector.Wrist])
}

func TestFeatureExtractor_UpwardMotion(t *testing.T) {
	e := NewFeatureExtractor(DefaultConfig().Features, HandBoth)
	mouth := detector.MouthAt(0.5, 0.3)

	var f Features
	for i := 0; i < 4; i++ {
		y := 0.8 - 0.02*float64(i)
		f = e.Extract(frame(time.Duration(i)*100*time.Millisecond, hands(detector.GripLandmarks(0.5, y)), mouth))
	}
	assert.True(t, f.UpwardMotion, "wrist rising 0.2/s should count as upward motion")

	e.Reset()
	f = e.Extract(frame(time.Second, hands(detector.GripLandmarks(0.5, 0.7)), mouth))
	assert.False(t, f.UpwardMotion, "history is cleared by Reset")
}

func TestFeatureExtractor_StationaryOrFalling(t *testing.T) {
	e := NewFeatureExtractor(DefaultConfig().Features, HandBoth)
	mouth := detector.MouthAt(0.5, 0.3)

	var f Features
	for i := 0; i < 4; i++ {
		y := 0.6 + 0.02*float64(i)
		f = e.Extract(frame(time.Duration(i)*100*time.Millisecond, hands(detector.GripLandmarks(0.5, y)), mouth))
	}
	assert.False(t, f.UpwardMotion)
}

func TestFeatureExtractor_NoCarryOverWithoutHands(t *testing.T) {
	e := NewFeatureExtractor(DefaultConfig().Features, HandBoth)
	mouth := detector.MouthAt(0.5, 0.3)

	for i := 0; i < 3; i++ {
		e.Extract(frame(time.Duration(i)*100*time.Millisecond, hands(detector.GripLandmarks(0.5, 0.8-0.03*float64(i))), mouth))
	}
	f := e.Extract(frame(300*time.Millisecond, nil, mouth))

	assert.Equal(t, Criteria{}, f.Criteria)
}

func TestFeatureExtractor_MotionWindowDropsOldSamples(t *testing.T) {
	cfg := DefaultConfig().Features
	cfg.MotionWindow = 500 * time.Millisecond
	e := NewFeatureExtractor(cfg, HandBoth)
	mouth := detector.MouthAt(0.5, 0.3)

	e.Extract(frame(0, hands(detector.GripLandmarks(0.5, 0.9)), mouth))
	f := e.Extract(frame(time.Second, hands(detector.GripLandmarks(0.5, 0.6)), mouth))

	assert.False(t, f.UpwardMotion, "the only earlier sample is outside the window")
}

func TestHandTilt(t *testing.T) {
	hanging := detector.HandLandmarks{}
	horizontal := detector.HandLandmarks{}
	for _, i := range detector.FingertipIndices {
		hanging.Points[i] = detector.Point3D{X: 0, Y: 0.2}
		horizontal.Points[i] = detector.Point3D{X: 0.2, Y: 0}
	}
	open := detector.OpenPalmLandmarks()

	assert.InDelta(t, 0, HandTilt(&hanging), 1e-9)
	assert.InDelta(t, 90, HandTilt(&horizontal), 1e-9)
	assert.Greater(t, HandTilt(&open), 170.0)
	assert.Zero(t, HandTilt(&detector.HandLandmarks{}))
}
