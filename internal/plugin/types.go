// Package plugin discovers external notifier plugins and runs them when
// drinks are counted, undone, the daily goal is reached, or it is time to
// drink again.
package plugin

import (
	"encoding/json"
	"slices"
	"time"
)

// Event names a plugin can subscribe to.
const (
	EventDrink = "drink"
	EventUndo  = "undo"
	EventGoal  = "goal"
	// EventReminder fires when no drink was recorded for the reminder interval.
	EventReminder = "reminder"
)

// Manifest describes a plugin's metadata and the events it handles.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []string        `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Handles reports whether the manifest subscribes to event.
func (m Manifest) Handles(event string) bool {
	return slices.Contains(m.Events, event)
}

// Drink describes the drink an event refers to.
type Drink struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Manual    bool      `json:"manual"`
	ML        int       `json:"ml"`
}

// Progress is today's total after the event.
type Progress struct {
	Count   int     `json:"count"`
	ML      int     `json:"ml"`
	GoalML  int     `json:"goal_ml"`
	Percent float64 `json:"percent"`
}

// Request is written as JSON to the plugin's stdin.
type Request struct {
	Event    string   `json:"event"`
	Drink    Drink    `json:"drink"`
	Progress Progress `json:"progress"`
	// IdleMinutes is set on reminders: minutes since the last drink.
	IdleMinutes int             `json:"idle_minutes,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Response is read as JSON from the plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
