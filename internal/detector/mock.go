package detector

import (
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	queue []Observation
	obs   Observation
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetObservation sets the observation returned by every Detect call once the
// queue is drained. Its timestamp is replaced with the frame timestamp.
func (m *MockDetector) SetObservation(obs Observation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obs = obs
}

// Enqueue adds observations that are returned, in order, before the default one.
func (m *MockDetector) Enqueue(obs ...Observation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, obs...)
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the next queued observation, the default one, or the configured error.
func (m *MockDetector) Detect(frame *gocv.Mat, ts time.Time) (*Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	obs := m.obs
	if len(m.queue) > 0 {
		obs = m.queue[0]
		m.queue = m.queue[1:]
	}
	obs.Timestamp = ts
	return &obs, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// MouthAt returns a three-point mouth cluster centered on (x, y).
func MouthAt(x, y float64) []Point3D {
	return []Point3D{
		{X: x - 0.02, Y: y},
		{X: x, Y: y},
		{X: x + 0.02, Y: y},
	}
}

// ContainerAt returns an object detection of the given label centered on (x, y).
func ContainerAt(label string, score, x, y float64) Object {
	return Object{
		Label: label,
		Score: score,
		Box:   Box{X: x - 0.04, Y: y - 0.08, W: 0.08, H: 0.16},
	}
}

// Translate returns a copy of the hand moved by (dx, dy).
func (h HandLandmarks) Translate(dx, dy float64) HandLandmarks {
	for i := range h.Points {
		h.Points[i].X += dx
		h.Points[i].Y += dy
	}
	return h
}

// fromOffsets builds a hand whose wrist sits at (x, y) with the given
// per-landmark offsets relative to the wrist.
func fromOffsets(x, y float64, offsets [NumLandmarks][2]float64) HandLandmarks {
	h := HandLandmarks{Handedness: "Right", Score: 0.95}
	for i, o := range offsets {
		h.Points[i] = Point3D{X: x + o[0], Y: y + o[1]}
	}
	return h
}

// GripLandmarks returns a right hand wrapped around a cylindrical container,
// tilted so the fingertips sit above the wrist, with the wrist at (x, y).
func GripLandmarks(x, y float64) HandLandmarks {
	return fromOffsets(x, y, [NumLandmarks][2]float64{
		Wrist:    {0, 0},
		ThumbCMC: {0.03, -0.03}, ThumbMCP: {0.05, -0.07}, ThumbIP: {0.06, -0.10}, ThumbTip: {0.06, -0.13},
		IndexMCP: {0.02, -0.10}, IndexPIP: {0.05, -0.12}, IndexDIP: {0.06, -0.10}, IndexTip: {0.05, -0.08},
		MiddleMCP: {0.0, -0.11}, MiddlePIP: {0.03, -0.13}, MiddleDIP: {0.04, -0.11}, MiddleTip: {0.03, -0.09},
		RingMCP: {-0.02, -0.10}, RingPIP: {0.01, -0.12}, RingDIP: {0.02, -0.10}, RingTip: {0.01, -0.08},
		PinkyMCP: {-0.04, -0.09}, PinkyPIP: {-0.01, -0.10}, PinkyDIP: {0.0, -0.09}, PinkyTip: {-0.01, -0.07},
	})
}

// PointingLandmarks returns a right hand with the index finger extended
// sideways and the rest curled, as when biting a nail or scratching.
func PointingLandmarks(x, y float64) HandLandmarks {
	return fromOffsets(x, y, [NumLandmarks][2]float64{
		Wrist:    {0, 0},
		ThumbCMC: {0.03, -0.03}, ThumbMCP: {0.05, -0.07}, ThumbIP: {0.06, -0.10}, ThumbTip: {0.06, -0.12},
		IndexMCP: {0.02, -0.10}, IndexPIP: {0.07, -0.13}, IndexDIP: {0.12, -0.15}, IndexTip: {0.17, -0.17},
		MiddleMCP: {0.0, -0.11}, MiddlePIP: {0.03, -0.13}, MiddleDIP: {0.04, -0.11}, MiddleTip: {0.03, -0.09},
		RingMCP: {-0.02, -0.10}, RingPIP: {0.01, -0.12}, RingDIP: {0.02, -0.10}, RingTip: {0.01, -0.08},
		PinkyMCP: {-0.04, -0.09}, PinkyPIP: {-0.01, -0.10}, PinkyDIP: {0.0, -0.09}, PinkyTip: {-0.01, -0.07},
	})
}

// OpenPalmLandmarks returns a preset HandLandmarks representing an open palm gesture.
// All fingers are extended outward.
func OpenPalmLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	// Wrist at base
	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb extended to the side
	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	landmarks.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	landmarks.Points[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	// Index finger extended upward
	landmarks.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	landmarks.Points[IndexPIP] = Point3D{X: 0.57, Y: 0.55, Z: 0.0}
	landmarks.Points[IndexDIP] = Point3D{X: 0.58, Y: 0.45, Z: 0.0}
	landmarks.Points[IndexTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	// Middle finger extended upward (slightly longer)
	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.0}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.52, Z: 0.0}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.40, Z: 0.0}
	landmarks.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.28, Z: 0.0}

	// Ring finger extended upward
	landmarks.Points[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: 0.0}
	landmarks.Points[RingPIP] = Point3D{X: 0.43, Y: 0.55, Z: 0.0}
	landmarks.Points[RingDIP] = Point3D{X: 0.42, Y: 0.45, Z: 0.0}
	landmarks.Points[RingTip] = Point3D{X: 0.42, Y: 0.35, Z: 0.0}

	// Pinky finger extended upward
	landmarks.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.70, Z: 0.0}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.37, Y: 0.60, Z: 0.0}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.35, Y: 0.50, Z: 0.0}
	landmarks.Points[PinkyTip] = Point3D{X: 0.34, Y: 0.42, Z: 0.0}

	return landmarks
}
