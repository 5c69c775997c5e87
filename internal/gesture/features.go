package gesture

import (
	"math"
	"time"

	"github.com/ayusman/gulpwatch/internal/detector"
)

// Criteria is the fixed set of per-frame drinking signals.
type Criteria struct {
	IsClose      bool `json:"is_close"`
	IsHolding    bool `json:"is_holding"`
	IsDrinking   bool `json:"is_drinking"`
	UpwardMotion bool `json:"upward_motion"`
}

// Met returns how many of the four criteria are true.
func (c Criteria) Met() int {
	n := 0
	for _, v := range [4]bool{c.IsClose, c.IsHolding, c.IsDrinking, c.UpwardMotion} {
		if v {
			n++
		}
	}
	return n
}

// Features is the output of one extraction: the criteria plus the hand they
// were computed for.
type Features struct {
	Criteria
	// Hand is the candidate hand, nil when no eligible hand was seen.
	Hand *detector.HandLandmarks
	// Distance is the palm-to-mouth distance, NaN without hand or mouth.
	Distance float64
}

type wristSample struct {
	y  float64
	at time.Time
}

// FeatureExtractor derives the four criteria from a frame and a short
// rolling window of wrist positions.
type FeatureExtractor struct {
	cfg     FeatureConfig
	hand    Hand
	history []wristSample
}

// NewFeatureExtractor creates a FeatureExtractor.
func NewFeatureExtractor(cfg FeatureConfig, hand Hand) *FeatureExtractor {
	return &FeatureExtractor{
		cfg:     cfg,
		hand:    hand,
		history: make([]wristSample, 0, cfg.HistorySize),
	}
}

// Extract computes the criteria for obs. Without an eligible hand every
// criterion is false.
func (e *FeatureExtractor) Extract(obs *detector.Observation) Features {
	out := Features{Distance: math.NaN()}

	hand, dist := e.candidate(obs)
	if hand == nil {
		return out
	}
	out.Hand = hand
	out.Distance = dist

	e.record(hand.Points[detector.Wrist].Y, obs.Timestamp)

	out.IsClose = !math.IsNaN(dist) && dist < e.cfg.ProximityThreshold
	out.IsHolding = e.isHolding(hand)
	if obs.HasFace() {
		out.IsDrinking = e.isDrinking(hand, mouthLevel(obs.Mouth))
	}
	out.UpwardMotion = e.upwardMotion()

	return out
}

// Reset clears the motion history.
func (e *FeatureExtractor) Reset() {
	e.history = e.history[:0]
}

// candidate picks the eligible hand whose palm is closest to the mouth.
// Without a mouth the first eligible hand is used and the distance is NaN.
func (e *FeatureExtractor) candidate(obs *detector.Observation) (*detector.HandLandmarks, float64) {
	var best *detector.HandLandmarks
	bestDist := math.Inf(1)

	for i := range obs.Hands {
		h := &obs.Hands[i]
		if !e.hand.Accepts(h.Handedness) {
			continue
		}
		if !obs.HasFace() {
			if best == nil {
				best = h
			}
			continue
		}
		palm := h.PalmCenter()
		for _, m := range obs.Mouth {
			if d := detector.Distance2D(palm, m); d < bestDist {
				bestDist = d
				best = h
			}
		}
	}

	if best == nil || math.IsInf(bestDist, 1) {
		return best, math.NaN()
	}
	return best, bestDist
}

// isHolding checks for a grip: fingers curled toward the palm and held
// together, as opposed to a single finger pointing out.
func (e *FeatureExtractor) isHolding(h *detector.HandLandmarks) bool {
	wrist := h.Points[detector.Wrist]
	fingers := [4][2]int{
		{detector.IndexTip, detector.IndexMCP},
		{detector.MiddleTip, detector.MiddleMCP},
		{detector.RingTip, detector.RingMCP},
		{detector.PinkyTip, detector.PinkyMCP},
	}

	var curl float64
	minX, maxX := math.Inf(1), math.Inf(-1)
	for _, f := range fingers {
		tip, mcp := h.Points[f[0]], h.Points[f[1]]
		curl += curlRatio(tip, mcp, wrist)
		minX = math.Min(minX, tip.X)
		maxX = math.Max(maxX, tip.X)
	}
	curl /= float64(len(fingers))

	return curl > e.cfg.HoldCurlMin && maxX-minX < e.cfg.HoldSpreadMax
}

// curlRatio is |mcp-wrist| / |tip-wrist|; it grows as the finger curls.
func curlRatio(tip, mcp, wrist detector.Point3D) float64 {
	mcpDist := detector.Distance2D(mcp, wrist)
	if mcpDist == 0 {
		return 0
	}
	return mcpDist / (detector.Distance2D(tip, wrist) + 0.001)
}

// isDrinking checks that the hand is tipped up and approaching the mouth
// from below.
func (e *FeatureExtractor) isDrinking(h *detector.HandLandmarks, mouthY float64) bool {
	if HandTilt(h) < e.cfg.TiltThresholdDegrees {
		return false
	}
	return h.PalmCenter().Y >= mouthY-e.cfg.MouthLevelMargin
}

// HandTilt returns the angle in degrees between the wrist-to-fingertips axis
// and straight down: 0 with fingers hanging, 90 horizontal, 180 pointing up.
func HandTilt(h *detector.HandLandmarks) float64 {
	wrist := h.Points[detector.Wrist]
	tips := h.FingertipCentroid()
	dx, dy := tips.X-wrist.X, tips.Y-wrist.Y
	norm := math.Hypot(dx, dy)
	if norm == 0 {
		return 0
	}
	// Image y grows downward, so "down" is (0, 1).
	cos := math.Max(-1, math.Min(1, dy/norm))
	return math.Acos(cos) * 180 / math.Pi
}

func mouthLevel(mouth []detector.Point3D) float64 {
	var y float64
	for _, p := range mouth {
		y += p.Y
	}
	return y / float64(len(mouth))
}

func (e *FeatureExtractor) record(y float64, at time.Time) {
	cutoff := at.Add(-e.cfg.MotionWindow)
	kept := e.history[:0]
	for _, s := range e.history {
		if !s.at.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	e.history = kept

	if len(e.history) >= e.cfg.HistorySize {
		copy(e.history, e.history[1:])
		e.history = e.history[:e.cfg.HistorySize-1]
	}
	e.history = append(e.history, wristSample{y: y, at: at})
}

// upwardMotion reports whether the wrist rose faster than the configured
// velocity across the window.
func (e *FeatureExtractor) upwardMotion() bool {
	if len(e.history) < 2 {
		return false
	}
	oldest, newest := e.history[0], e.history[len(e.history)-1]
	elapsed := newest.at.Sub(oldest.at).Seconds()
	if elapsed <= 0 {
		return false
	}
	return (oldest.y-newest.y)/elapsed > e.cfg.UpwardVelocity
}
