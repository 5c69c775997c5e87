package app

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/gulpwatch/internal/capture"
	"github.com/ayusman/gulpwatch/internal/config"
	"github.com/ayusman/gulpwatch/internal/detector"
	"github.com/ayusman/gulpwatch/internal/gesture"
)

func fastCapture(c *config.Config) {
	c.IntervalMS = 10
	c.IdleFPS = 50
	c.ActiveFPS = 100
	c.IdleTimeoutMS = 100
	c.MotionThreshold = 0.5
}

func TestApp_Pipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	s := newStore(t)
	cfg := config.Default(t.TempDir())
	fastCapture(cfg)

	cam := capture.NewMockCamera(160, 120, nil)
	cam.SetMotion(true)
	det := detector.NewMockDetector()
	det.SetObservation(detector.Observation{
		Hands:   []detector.HandLandmarks{detector.GripLandmarks(0.5, 0.45)},
		Mouth:   detector.MouthAt(0.5, 0.3),
		Objects: []detector.Object{detector.ContainerAt("bottle", 0.7, 0.51, 0.45)},
	})

	a, err := New(Options{Config: cfg, Store: s, Camera: cam, Detector: det, Location: time.UTC})
	require.NoError(t, err)

	statuses := make(chan gesture.Status, 256)
	a.OnStatus(func(st gesture.Status) {
		select {
		case statuses <- st:
		default:
		}
	})

	require.NoError(t, a.Start())
	require.NoError(t, a.Start(), "second Start is a no-op")
	defer a.Stop()

	require.Eventually(t, func() bool { return a.Status().Events == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, gesture.StateCooldown, a.Status().State)

	p, err := a.Progress("")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Count)

	// Camera failures become gaps; the cooldown keeps a second drink out.
	cam.SetError(errors.New("usb unplugged"))
	calls := det.Calls()
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, det.Calls(), calls+1, "no perception without frames")
	cam.SetError(nil)

	require.NoError(t, a.SetEnabled(false))
	reads := cam.Reads()
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, cam.Reads(), reads+1, "disabled detection stops reading")

	assert.Equal(t, 1, a.Status().Events)
	assert.NotEmpty(t, statuses)
}

func TestApp_Pipeline_StillCameraSkipsPerception(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cfg := config.Default(t.TempDir())
	fastCapture(cfg)

	cam := capture.NewMockCamera(160, 120, nil)
	det := detector.NewMockDetector()

	a, err := New(Options{Config: cfg, Store: newStore(t), Camera: cam, Detector: det})
	require.NoError(t, err)
	require.NoError(t, a.Start())

	require.Eventually(t, func() bool { return cam.Reads() >= 5 }, 5*time.Second, 10*time.Millisecond)
	a.Stop()

	assert.Zero(t, det.Calls())
	assert.False(t, cam.IsOpen(), "Stop closes the camera")
}
