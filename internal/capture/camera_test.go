package capture

import (
	"errors"
	"testing"
	"time"
)

var stamp = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return stamp }

func TestNewCamera_Clock(t *testing.T) {
	tests := []struct {
		name  string
		clock func() time.Time
		check func(t *testing.T, got time.Time)
	}{
		{
			name:  "injected clock",
			clock: fixedClock,
			check: func(t *testing.T, got time.Time) {
				if !got.Equal(stamp) {
					t.Errorf("now() = %v, want %v", got, stamp)
				}
			},
		},
		{
			name:  "nil falls back to wall clock",
			clock: nil,
			check: func(t *testing.T, got time.Time) {
				if time.Since(got) > time.Minute || got.IsZero() {
					t.Errorf("now() = %v, want the current time", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam, ok := NewCamera(0, tt.clock).(*deviceCamera)
			if !ok {
				t.Fatal("NewCamera should return a device camera")
			}
			if cam.now == nil {
				t.Fatal("camera clock is nil")
			}
			tt.check(t, cam.now())
		})
	}
}

func TestNewCamera_Closed(t *testing.T) {
	for _, id := range []int{0, 3} {
		cam := NewCamera(id, fixedClock)
		if cam.IsOpen() {
			t.Errorf("device %d: camera should start closed", id)
		}
		if got := cam.FPS(); got != DefaultFPS {
			t.Errorf("device %d: FPS() = %d, want %d", id, got, DefaultFPS)
		}
	}
}

func TestCamera_SetFPSIgnoresNonPositive(t *testing.T) {
	cam := NewCamera(0, fixedClock)

	steps := []struct {
		set  int
		want int
	}{
		{15, 15},
		{1, 1},
		{0, 1},
		{-5, 1},
		{30, 30},
	}
	for _, s := range steps {
		cam.SetFPS(s.set)
		if got := cam.FPS(); got != s.want {
			t.Errorf("after SetFPS(%d): FPS() = %d, want %d", s.set, got, s.want)
		}
	}
}

func TestCamera_NotOpened(t *testing.T) {
	cam := NewCamera(0, fixedClock)

	if _, err := cam.Read(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("Read() error = %v, want ErrCameraNotOpen", err)
	}
	if err := cam.Close(); err != nil {
		t.Errorf("Close() on a closed camera = %v, want nil", err)
	}
}

func TestCamera_ReadStampsFrames_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam := NewCamera(0, fixedClock)
	if err := cam.Open(); err != nil {
		t.Skipf("camera not available: %v", err)
	}
	if !cam.IsOpen() {
		t.Error("IsOpen() should be true after Open()")
	}

	f, err := cam.Read()
	if err != nil {
		cam.Close()
		t.Fatalf("Read() failed: %v", err)
	}
	if f.Mat.Empty() {
		t.Error("Read() returned an empty frame")
	}
	if !f.At.Equal(stamp) {
		t.Errorf("frame stamped %v, want the injected %v", f.At, stamp)
	}
	f.Close()

	if err := cam.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if cam.IsOpen() {
		t.Error("IsOpen() should be false after Close()")
	}
}
