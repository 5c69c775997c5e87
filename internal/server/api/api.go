// Package api provides HTTP API handlers for gulpwatch.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/gulpwatch/internal/gesture"
	"github.com/ayusman/gulpwatch/internal/store"
)

// Tracker is the running drink tracker the handlers drive.
type Tracker interface {
	AddDrink() (gesture.Event, error)
	UndoDrink() (gesture.Event, bool, error)
	Status() gesture.Status
	Enabled() bool
	SetEnabled(enabled bool) error
	Today() string
	Progress(day string) (*store.Progress, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

type eventResponse struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Source    gesture.Source `json:"source"`
	Manual    bool           `json:"manual"`
}

func toEventResponse(ev gesture.Event) eventResponse {
	return eventResponse{
		ID:        ev.ID.String(),
		Timestamp: ev.Timestamp,
		Source:    ev.Source,
		Manual:    ev.Manual,
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// dayParam returns the ?day= query value, or today when absent.
func dayParam(r *http.Request, t Tracker) (string, error) {
	day := r.URL.Query().Get("day")
	if day == "" {
		return t.Today(), nil
	}
	if _, err := time.Parse(time.DateOnly, day); err != nil {
		return "", fmt.Errorf("invalid day %q, want YYYY-MM-DD", day)
	}
	return day, nil
}
