package gesture

import "time"

// Snapshot is the immutable per-frame evaluation, used both for the
// confirmation decision and for diagnostics.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Criteria  Criteria  `json:"criteria"`
	Met       int       `json:"met"`
	Required  int       `json:"required"`

	ContainerRequired bool   `json:"container_required"`
	Container         Source `json:"container"`
	// ContainerSeen is set when a container overlapped the candidate hand.
	ContainerSeen bool `json:"container_seen"`

	Qualifies bool `json:"qualifies"`
	// Confirmed is set on the frame that fired an event.
	Confirmed bool `json:"confirmed"`

	HandDetected bool `json:"hand_detected"`
	FaceDetected bool `json:"face_detected"`
	Away         bool `json:"away"`
	// Distance is the palm-to-mouth distance, negative when unknown.
	Distance float64 `json:"distance"`
}

// Evaluate combines the criteria and container presence into a Snapshot.
// is_close is mandatory: without it a frame never qualifies.
func Evaluate(c Criteria, sensitivity Sensitivity, requireContainer bool, container Source) Snapshot {
	met := c.Met()
	required := sensitivity.Required()

	qualifies := c.IsClose && met >= required
	if requireContainer && (container == SourceNone || container == "") {
		qualifies = false
	}

	return Snapshot{
		Criteria:          c,
		Met:               met,
		Required:          required,
		ContainerRequired: requireContainer,
		Container:         container,
		Qualifies:         qualifies,
		Distance:          -1,
	}
}
