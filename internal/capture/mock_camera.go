package capture

import (
	"image"
	"image/color"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MockCamera produces synthetic frames for tests and camera-less runs. Each
// frame is black; while motion is on, a white block moves across it so the
// motion detector fires.
type MockCamera struct {
	width, height int
	now           func() time.Time

	mu     sync.Mutex
	open   bool
	motion bool
	err    error
	reads  int
	fps    int
}

// NewMockCamera creates a MockCamera producing width x height frames stamped
// with clock. A nil clock means time.Now.
func NewMockCamera(width, height int, clock func() time.Time) *MockCamera {
	if clock == nil {
		clock = time.Now
	}
	return &MockCamera{width: width, height: height, now: clock, fps: DefaultFPS}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

// SetMotion switches the moving block on or off.
func (c *MockCamera) SetMotion(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.motion = on
}

// SetError makes every Read fail with err until cleared with nil.
func (c *MockCamera) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Reads returns how many frames have been produced.
func (c *MockCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

func (c *MockCamera) Read() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return Frame{}, ErrCameraNotOpen
	}
	if c.err != nil {
		return Frame{}, c.err
	}

	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), c.height, c.width, gocv.MatTypeCV8UC3)
	if c.motion {
		side := c.height / 3
		x := (c.reads * side) % max(c.width-side, 1)
		gocv.Rectangle(&mat, image.Rect(x, side, x+side, 2*side), color.RGBA{255, 255, 255, 0}, -1)
	}
	c.reads++
	return Frame{Mat: mat, At: c.now()}, nil
}

func (c *MockCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}
