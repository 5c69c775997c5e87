package detector

import (
	"time"

	"gocv.io/x/gocv"
)

// Detector defines the interface for perception implementations.
type Detector interface {
	// Detect analyzes a video frame captured at ts and returns what was seen.
	// A frame with nothing in it yields an empty Observation, not an error.
	Detect(frame *gocv.Mat, ts time.Time) (*Observation, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for the perception models.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// MinHandConfidence is the minimum hand detection confidence (0.0-1.0).
	MinHandConfidence float64

	// MinTrackingConf is the minimum hand tracking confidence (0.0-1.0).
	MinTrackingConf float64

	// MinFaceConfidence is the minimum face detection confidence (0.0-1.0).
	MinFaceConfidence float64

	// ObjectScoreThreshold is the floor passed to the object detector.
	// It is kept low so tilted containers still produce candidates.
	ObjectScoreThreshold float64

	// MaxObjects caps the number of object results per frame.
	MaxObjects int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:             2,
		MinHandConfidence:    0.7,
		MinTrackingConf:      0.5,
		MinFaceConfidence:    0.7,
		ObjectScoreThreshold: 0.25,
		MaxObjects:           5,
	}
}
