package gesture

import (
	"math"
	"strings"
	"time"

	"github.com/ayusman/gulpwatch/internal/detector"
)

// Source says where container presence came from.
type Source string

const (
	SourceNone   Source = "none"
	SourceLive   Source = "live"
	SourceCached Source = "cached"
	SourceManual Source = "manual"
)

// CacheEntry remembers the last container seen in the candidate hand.
type CacheEntry struct {
	Label    string           `json:"label"`
	Score    float64          `json:"score"`
	Anchor   detector.Point3D `json:"anchor"`
	LastSeen time.Time        `json:"last_seen"`
	TTL      time.Duration    `json:"ttl"`
}

// Remaining returns how long the entry stays valid after now.
func (e CacheEntry) Remaining(now time.Time) time.Duration {
	r := e.TTL - now.Sub(e.LastSeen)
	if r < 0 {
		return 0
	}
	return r
}

// ContainerTracker keeps a short-lived memory of where a container was last
// recognized so a gulp can still be confirmed while the tilted container is
// no longer classified.
type ContainerTracker struct {
	labels    map[string]struct{}
	threshold float64
	ttl       time.Duration
	tolerance float64
	entry     *CacheEntry
}

// NewContainerTracker creates a tracker for the given config.
func NewContainerTracker(cfg Config) *ContainerTracker {
	labels := make(map[string]struct{}, len(cfg.ContainerLabels))
	for _, l := range cfg.ContainerLabels {
		labels[strings.ToLower(strings.TrimSpace(l))] = struct{}{}
	}
	return &ContainerTracker{
		labels:    labels,
		threshold: cfg.ScoreThreshold,
		ttl:       cfg.CacheTTL,
		tolerance: cfg.CacheHandTolerance,
	}
}

// holdMargin pads the hand box when matching it against container boxes.
const holdMargin = 0.05

// Observe refreshes the cache entry from the best container detection whose
// box overlaps hand. Containers away from the hand, such as one standing on
// the desk, leave the entry alone. It reports whether a held container was
// detected this frame.
func (t *ContainerTracker) Observe(objects []detector.Object, hand *detector.HandLandmarks, now time.Time) bool {
	var best *detector.Object
	if hand != nil {
		reach := hand.Bounds().Expand(holdMargin)
		for i := range objects {
			o := &objects[i]
			if _, ok := t.labels[strings.ToLower(o.Label)]; !ok || o.Score < t.threshold {
				continue
			}
			if !reach.Overlaps(o.Box) {
				continue
			}
			if best == nil || o.Score > best.Score {
				best = o
			}
		}
	}

	if best == nil {
		t.expire(now)
		return false
	}

	t.entry = &CacheEntry{
		Label:    strings.ToLower(best.Label),
		Score:    best.Score,
		Anchor:   best.Box.Center(),
		LastSeen: now,
		TTL:      t.ttl,
	}
	return true
}

// Present reports whether a container supports presence near hand at now.
func (t *ContainerTracker) Present(hand detector.Point3D, now time.Time) (bool, Source) {
	t.expire(now)
	if t.entry == nil {
		return false, SourceNone
	}

	dx := math.Abs(hand.X - t.entry.Anchor.X)
	dy := math.Abs(hand.Y - t.entry.Anchor.Y)
	if dx >= t.tolerance || dy >= t.tolerance {
		return false, SourceNone
	}

	if t.entry.LastSeen.Equal(now) {
		return true, SourceLive
	}
	return true, SourceCached
}

// Entry returns a copy of the current cache entry, if any. It does not
// expire entries and so never mutates the tracker.
func (t *ContainerTracker) Entry(now time.Time) (CacheEntry, bool) {
	if t.entry == nil || !t.live(now) {
		return CacheEntry{}, false
	}
	return *t.entry, true
}

// Clear drops the cache entry.
func (t *ContainerTracker) Clear() {
	t.entry = nil
}

func (t *ContainerTracker) live(now time.Time) bool {
	return t.entry.LastSeen.Equal(now) || now.Sub(t.entry.LastSeen) < t.entry.TTL
}

func (t *ContainerTracker) expire(now time.Time) {
	if t.entry != nil && !t.live(now) {
		t.entry = nil
	}
}
