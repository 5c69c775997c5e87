// Package capture reads camera frames with GoCV (OpenCV) and decides how
// often they need to be analysed.
package capture

import (
	"errors"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 5
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when reading from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrNoFrame is returned when the device produced no usable image.
	ErrNoFrame = errors.New("no frame captured")
)

// Frame is one captured image and the time it was grabbed. The caller owns
// Mat and must Close the frame.
type Frame struct {
	Mat gocv.Mat
	At  time.Time
}

// Close releases the image.
func (f *Frame) Close() error {
	return f.Mat.Close()
}

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	Read() (Frame, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// deviceCamera manages video capture from a camera device using GoCV.
type deviceCamera struct {
	deviceID int
	now      func() time.Time

	mu      sync.Mutex
	capture *gocv.VideoCapture
	fps     int
}

// NewCamera creates a Camera for the given device index whose frames are
// stamped with clock. A nil clock means time.Now. It starts at DefaultFPS.
func NewCamera(deviceID int, clock func() time.Time) Camera {
	if clock == nil {
		clock = time.Now
	}
	return &deviceCamera{
		deviceID: deviceID,
		now:      clock,
		fps:      DefaultFPS,
	}
}

// Open opens the device at 640x480.
func (c *deviceCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return err
	}

	vc.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	vc.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	vc.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = vc
	return nil
}

// Close releases the device. Closing a closed camera is a no-op.
func (c *deviceCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	return err
}

// Read grabs the next frame.
func (c *deviceCamera) Read() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return Frame{}, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return Frame{}, ErrNoFrame
	}
	return Frame{Mat: mat, At: c.now()}, nil
}

// SetFPS changes the capture rate. Values <= 0 are ignored.
func (c *deviceCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps
	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (c *deviceCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *deviceCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture != nil
}
