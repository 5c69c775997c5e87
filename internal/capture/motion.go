package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Motion detection constants
const (
	// GaussianBlurSize is the kernel size for Gaussian blur (21x21)
	GaussianBlurSize = 21
	// DiffThreshold is the binary threshold for difference detection
	DiffThreshold = 25
)

// MotionDetector compares consecutive frames using frame differencing with
// Gaussian blur for noise reduction.
type MotionDetector struct {
	mu        sync.Mutex
	threshold float64
	prevGray  gocv.Mat
	hasPrev   bool
}

// NewMotionDetector creates a MotionDetector. threshold is the percentage
// of pixels that must change, so 1.0 means 1%.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Detect reports whether frame differs from the previous one and the
// percentage of pixels that changed. The first frame only sets the baseline.
func (m *MotionDetector) Detect(frame gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: GaussianBlurSize, Y: GaussianBlurSize}, 0, 0, gocv.BorderDefault)

	if !m.hasPrev || blurred.Rows() != m.prevGray.Rows() || blurred.Cols() != m.prevGray.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.hasPrev = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0
	blurred.CopyTo(&m.prevGray)

	return changed > m.threshold, changed
}

// Reset drops the baseline so the next frame starts a new comparison.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hasPrev = false
}

// Close releases the baseline image.
func (m *MotionDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hasPrev = false
	err := m.prevGray.Close()
	m.prevGray = gocv.NewMat()
	return err
}

// Gate switches capture between an idle and an active rate. Motion makes
// it active at once; it falls back to idle after idleTimeout without motion.
type Gate struct {
	idleFPS     int
	activeFPS   int
	idleTimeout time.Duration

	active     bool
	lastMotion time.Time
}

// NewGate creates a Gate in idle mode.
func NewGate(idleFPS, activeFPS int, idleTimeout time.Duration) *Gate {
	return &Gate{idleFPS: idleFPS, activeFPS: activeFPS, idleTimeout: idleTimeout}
}

// Update records whether the frame at now moved and reports whether the
// mode changed.
func (g *Gate) Update(moving bool, now time.Time) bool {
	if moving {
		g.lastMotion = now
		if !g.active {
			g.active = true
			return true
		}
		return false
	}
	if g.active && now.Sub(g.lastMotion) > g.idleTimeout {
		g.active = false
		return true
	}
	return false
}

// Active reports whether frames should be analysed.
func (g *Gate) Active() bool {
	return g.active
}

// FPS returns the capture rate for the current mode.
func (g *Gate) FPS() int {
	if g.active {
		return g.activeFPS
	}
	return g.idleFPS
}

// Interval returns the frame period for the current mode.
func (g *Gate) Interval() time.Duration {
	return time.Second / time.Duration(max(g.FPS(), 1))
}
