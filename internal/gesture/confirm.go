package gesture

import "time"

// State is a state of the confirmation machine.
type State int

const (
	// StateIdle has no qualifying run in progress.
	StateIdle State = iota
	// StateAccumulating has a run of 1..FramesToConfirm-1 qualifying frames.
	StateAccumulating
	// StateConfirmed is entered when the run reaches FramesToConfirm. It is
	// transient: the machine moves to StateCooldown in the same step.
	StateConfirmed
	// StateCooldown blocks new confirmations until the cooldown has elapsed.
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateConfirmed:
		return "confirmed"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Confirmer debounces qualifying frames into discrete confirmations and
// enforces a cooldown between them.
type Confirmer struct {
	framesToConfirm int
	cooldown        time.Duration

	state     State
	run       int
	lastEvent time.Time
	armed     bool
}

// NewConfirmer creates a Confirmer in StateIdle.
func NewConfirmer(framesToConfirm int, cooldown time.Duration) *Confirmer {
	return &Confirmer{
		framesToConfirm: framesToConfirm,
		cooldown:        cooldown,
		state:           StateIdle,
	}
}

// Step advances the machine by one frame and reports whether the frame
// confirmed an event.
func (c *Confirmer) Step(qualifies bool, now time.Time) bool {
	if c.state == StateCooldown {
		if now.Sub(c.lastEvent) < c.cooldown {
			c.run = 0
			return false
		}
		c.state = StateIdle
		c.run = 0
	}

	if !qualifies {
		c.state = StateIdle
		c.run = 0
		return false
	}

	c.run++
	if c.run < c.framesToConfirm {
		c.state = StateAccumulating
		return false
	}

	c.state = StateConfirmed
	c.Arm(now)
	return true
}

// Gap records a dropped frame. It never confirms.
func (c *Confirmer) Gap(now time.Time) {
	c.Step(false, now)
}

// Arm starts a cooldown at now and clears the run.
func (c *Confirmer) Arm(now time.Time) {
	c.lastEvent = now
	c.armed = true
	c.run = 0
	c.state = StateCooldown
}

// State returns the current state.
func (c *Confirmer) State() State {
	return c.state
}

// Run returns the current consecutive qualifying-frame count.
func (c *Confirmer) Run() int {
	return c.run
}

// CooldownRemaining returns the cooldown left at now, zero outside cooldown.
func (c *Confirmer) CooldownRemaining(now time.Time) time.Duration {
	if c.state != StateCooldown || !c.armed {
		return 0
	}
	r := c.cooldown - now.Sub(c.lastEvent)
	if r < 0 {
		return 0
	}
	return r
}
