// Package gesture implements drink-gesture recognition: per-frame feature
// extraction, container presence tracking, criteria evaluation, and the
// confirmation/cooldown state machine that turns noisy frames into events.
package gesture

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid detection config")

// Sensitivity selects how many optional criteria must hold alongside is_close.
type Sensitivity string

const (
	SensitivityEasy   Sensitivity = "easy"
	SensitivityMedium Sensitivity = "medium"
	SensitivityStrict Sensitivity = "strict"
)

// ParseSensitivity converts a config string to a Sensitivity.
func ParseSensitivity(s string) (Sensitivity, error) {
	switch v := Sensitivity(strings.ToLower(strings.TrimSpace(s))); v {
	case SensitivityEasy, SensitivityMedium, SensitivityStrict:
		return v, nil
	default:
		return "", fmt.Errorf("%w: unknown sensitivity %q (want easy, medium or strict)", ErrInvalidConfig, s)
	}
}

// Required returns the total number of criteria that must be true,
// counting the mandatory is_close.
func (s Sensitivity) Required() int {
	switch s {
	case SensitivityEasy:
		return 2
	case SensitivityStrict:
		return 4
	default:
		return 3
	}
}

// Hand selects which hand(s) may perform the drinking gesture.
type Hand string

const (
	HandLeft  Hand = "left"
	HandRight Hand = "right"
	HandBoth  Hand = "both"
)

// ParseHand converts a config string to a Hand.
func ParseHand(s string) (Hand, error) {
	switch v := Hand(strings.ToLower(strings.TrimSpace(s))); v {
	case HandLeft, HandRight, HandBoth:
		return v, nil
	default:
		return "", fmt.Errorf("%w: unknown drinking hand %q (want left, right or both)", ErrInvalidConfig, s)
	}
}

// Accepts reports whether a hand with the given handedness label is eligible.
func (h Hand) Accepts(handedness string) bool {
	if h == HandBoth || h == "" || handedness == "" {
		return true
	}
	return strings.EqualFold(string(h), handedness)
}

// FeatureConfig holds the geometric thresholds of the feature extractor.
type FeatureConfig struct {
	// ProximityThreshold is the max palm-to-mouth distance for is_close.
	ProximityThreshold float64
	// HoldCurlMin is the minimum average finger curl ratio for is_holding.
	HoldCurlMin float64
	// HoldSpreadMax is the maximum horizontal fingertip spread for is_holding.
	HoldSpreadMax float64
	// TiltThresholdDegrees is the minimum hand-axis angle, measured from
	// straight down, for is_drinking.
	TiltThresholdDegrees float64
	// MouthLevelMargin lets the palm sit this far above the mouth and still
	// count as approaching from below.
	MouthLevelMargin float64
	// UpwardVelocity is the wrist rise, in normalized units per second,
	// required for upward_motion.
	UpwardVelocity float64
	// HistorySize is the number of wrist samples kept for motion.
	HistorySize int
	// MotionWindow drops wrist samples older than this.
	MotionWindow time.Duration
}

// Config is the complete, read-only configuration of a detection session.
type Config struct {
	Sensitivity      Sensitivity
	DrinkingHand     Hand
	Features         FeatureConfig
	FramesToConfirm  int
	Cooldown         time.Duration
	RequireContainer bool
	ContainerLabels  []string
	ScoreThreshold   float64
	CacheTTL         time.Duration
	// CacheHandTolerance is the per-axis distance between the hand and the
	// cached container anchor beyond which the cache entry is stale.
	CacheHandTolerance float64
	AwayTimeout        time.Duration
	// MaxFrameGap is the longest pause between frames that still counts as
	// a continuous run; longer gaps are treated as dropped frames.
	MaxFrameGap time.Duration
}

// DefaultConfig returns the defaults of the desktop application.
func DefaultConfig() Config {
	return Config{
		Sensitivity:  SensitivityMedium,
		DrinkingHand: HandBoth,
		Features: FeatureConfig{
			ProximityThreshold:   0.20,
			HoldCurlMin:          0.5,
			HoldSpreadMax:        0.15,
			TiltThresholdDegrees: 80,
			MouthLevelMargin:     0.1,
			UpwardVelocity:       0.05,
			HistorySize:          5,
			MotionWindow:         2 * time.Second,
		},
		FramesToConfirm:    1,
		Cooldown:           10 * time.Second,
		RequireContainer:   true,
		ContainerLabels:    []string{"cup", "bottle", "wine glass"},
		ScoreThreshold:     0.25,
		CacheTTL:           5 * time.Second,
		CacheHandTolerance: 0.25,
		AwayTimeout:        5 * time.Second,
		MaxFrameGap:        2 * time.Second,
	}
}

// Validate rejects nonsensical values. Nothing is clamped; every problem is
// reported.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if _, err := ParseSensitivity(string(c.Sensitivity)); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseHand(string(c.DrinkingHand)); err != nil {
		errs = append(errs, err)
	}
	if c.FramesToConfirm < 1 {
		bad("frames_to_confirm must be >= 1, got %d", c.FramesToConfirm)
	}
	if c.Cooldown < 0 {
		bad("cooldown_seconds must be >= 0, got %v", c.Cooldown)
	}
	if c.CacheTTL < 0 {
		bad("bottle_cache_seconds must be >= 0, got %v", c.CacheTTL)
	}
	if c.AwayTimeout < 0 {
		bad("away_timeout_seconds must be >= 0, got %v", c.AwayTimeout)
	}
	if c.MaxFrameGap <= 0 {
		bad("max_frame_gap_seconds must be > 0, got %v", c.MaxFrameGap)
	}
	if !inUnit(c.ScoreThreshold) {
		bad("score_threshold must be within [0,1], got %v", c.ScoreThreshold)
	}
	if !positive(c.Features.ProximityThreshold) {
		bad("proximity_threshold must be > 0, got %v", c.Features.ProximityThreshold)
	}
	if !positive(c.CacheHandTolerance) {
		bad("cache_hand_tolerance must be > 0, got %v", c.CacheHandTolerance)
	}
	if c.RequireContainer && len(c.ContainerLabels) == 0 {
		bad("require_container is set but container_labels is empty")
	}
	if !positive(c.Features.HoldCurlMin) {
		bad("hold_curl_min must be > 0, got %v", c.Features.HoldCurlMin)
	}
	if !positive(c.Features.HoldSpreadMax) {
		bad("hold_spread_max must be > 0, got %v", c.Features.HoldSpreadMax)
	}
	if t := c.Features.TiltThresholdDegrees; math.IsNaN(t) || t < 0 || t > 180 {
		bad("tilt_threshold_degrees must be within [0,180], got %v", t)
	}
	if m := c.Features.MouthLevelMargin; math.IsNaN(m) || m < 0 {
		bad("mouth_level_margin must be >= 0, got %v", m)
	}
	if v := c.Features.UpwardVelocity; math.IsNaN(v) || v < 0 {
		bad("upward_velocity must be >= 0, got %v", v)
	}
	if c.Features.HistorySize < 2 {
		bad("history_size must be >= 2, got %d", c.Features.HistorySize)
	}
	if c.Features.MotionWindow <= 0 {
		bad("motion_window_seconds must be > 0, got %v", c.Features.MotionWindow)
	}

	return errors.Join(errs...)
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func positive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
