// Package detector defines the per-frame perception model (hands, mouth, objects)
// and the adapters that produce it from camera frames.
package detector

import (
	"encoding/json"
	"fmt"
	"math"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// FingertipIndices lists the five fingertip landmarks, thumb first.
var FingertipIndices = [5]int{ThumbTip, IndexTip, MiddleTip, RingTip, PinkyTip}

// Point3D represents a landmark in normalized image coordinates.
// X and Y are in [0,1] with Y growing downward; Z is relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// UnmarshalJSON decodes a hand and rejects one that does not carry exactly
// NumLandmarks points.
func (h *HandLandmarks) UnmarshalJSON(data []byte) error {
	var raw struct {
		Points     []Point3D `json:"points"`
		Handedness string    `json:"handedness"`
		Score      float64   `json:"score"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Points) != NumLandmarks {
		return fmt.Errorf("%w: hand has %d landmarks, want %d", ErrMalformedObservation, len(raw.Points), NumLandmarks)
	}
	copy(h.Points[:], raw.Points)
	h.Handedness = raw.Handedness
	h.Score = raw.Score
	return nil
}

// Distance2D returns the Euclidean distance between a and b in the image plane.
func Distance2D(a, b Point3D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// PalmCenter returns the midpoint between the wrist and the middle finger MCP.
func (h *HandLandmarks) PalmCenter() Point3D {
	w := h.Points[Wrist]
	m := h.Points[MiddleMCP]
	return Point3D{X: (w.X + m.X) / 2, Y: (w.Y + m.Y) / 2, Z: (w.Z + m.Z) / 2}
}

// FingertipCentroid returns the average position of the five fingertips.
func (h *HandLandmarks) FingertipCentroid() Point3D {
	var c Point3D
	for _, i := range FingertipIndices {
		c.X += h.Points[i].X
		c.Y += h.Points[i].Y
		c.Z += h.Points[i].Z
	}
	n := float64(len(FingertipIndices))
	return Point3D{X: c.X / n, Y: c.Y / n, Z: c.Z / n}
}

// Bounds returns the axis-aligned box enclosing all landmarks.
func (h *HandLandmarks) Bounds() Box {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range h.Points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Box{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Center returns the center of the hand's bounding box.
func (h *HandLandmarks) Center() Point3D {
	return h.Bounds().Center()
}
