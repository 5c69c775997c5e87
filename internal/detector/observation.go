package detector

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMalformedObservation is returned when a frame observation violates the
// perception contract (bad timestamp, non-finite coordinates, bad scores).
var ErrMalformedObservation = errors.New("malformed observation")

// Box is an axis-aligned bounding box in normalized image coordinates.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Center returns the center point of the box.
func (b Box) Center() Point3D {
	return Point3D{X: b.X + b.W/2, Y: b.Y + b.H/2}
}

// Expand grows the box by margin on every side, clipped to the image.
func (b Box) Expand(margin float64) Box {
	minX, minY := math.Max(0, b.X-margin), math.Max(0, b.Y-margin)
	maxX, maxY := math.Min(1, b.X+b.W+margin), math.Min(1, b.Y+b.H+margin)
	return Box{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Overlaps reports whether the two boxes share a region of positive area.
func (b Box) Overlaps(o Box) bool {
	w := math.Min(b.X+b.W, o.X+o.W) - math.Max(b.X, o.X)
	h := math.Min(b.Y+b.H, o.Y+o.H) - math.Max(b.Y, o.Y)
	return w > 0 && h > 0
}

// Object is a single object-detector result.
type Object struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Box   Box     `json:"box"`
}

// Observation is everything the perception layer saw in one camera frame.
// It is produced once per frame and never mutated afterwards.
type Observation struct {
	Timestamp time.Time       `json:"timestamp"`
	Hands     []HandLandmarks `json:"hands,omitempty"`
	Mouth     []Point3D       `json:"mouth,omitempty"`
	Objects   []Object        `json:"objects,omitempty"`
}

// HasFace reports whether a mouth cluster was observed.
func (o *Observation) HasFace() bool {
	return len(o.Mouth) > 0
}

// Validate checks the observation against the perception contract.
// Missing hands, face or objects are valid; corrupt values are not.
func (o *Observation) Validate() error {
	if o == nil {
		return fmt.Errorf("%w: nil observation", ErrMalformedObservation)
	}
	if o.Timestamp.IsZero() {
		return fmt.Errorf("%w: zero timestamp", ErrMalformedObservation)
	}

	for i := range o.Hands {
		for j, p := range o.Hands[i].Points {
			if !finite(p) {
				return fmt.Errorf("%w: hand %d landmark %d is not finite", ErrMalformedObservation, i, j)
			}
		}
		if s := o.Hands[i].Score; s < 0 || s > 1 || math.IsNaN(s) {
			return fmt.Errorf("%w: hand %d score %v outside [0,1]", ErrMalformedObservation, i, s)
		}
	}

	for i, p := range o.Mouth {
		if !finite(p) {
			return fmt.Errorf("%w: mouth point %d is not finite", ErrMalformedObservation, i)
		}
	}

	for i, obj := range o.Objects {
		if obj.Score < 0 || obj.Score > 1 || math.IsNaN(obj.Score) {
			return fmt.Errorf("%w: object %d (%s) score %v outside [0,1]", ErrMalformedObservation, i, obj.Label, obj.Score)
		}
		b := obj.Box
		if !finite(Point3D{X: b.X, Y: b.Y}) || !finite(Point3D{X: b.W, Y: b.H}) {
			return fmt.Errorf("%w: object %d (%s) box is not finite", ErrMalformedObservation, i, obj.Label)
		}
		if b.W < 0 || b.H < 0 {
			return fmt.Errorf("%w: object %d (%s) has negative box size", ErrMalformedObservation, i, obj.Label)
		}
	}

	return nil
}

func finite(p Point3D) bool {
	for _, v := range [3]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
