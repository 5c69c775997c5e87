package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/gulpwatch/internal/gesture"
)

// StatusHandler serves /api/status and /api/detection.
type StatusHandler struct {
	tracker Tracker
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(t Tracker) *StatusHandler {
	return &StatusHandler{tracker: t}
}

type statusResponse struct {
	Enabled bool           `json:"enabled"`
	Session gesture.Status `json:"session"`
}

type detectionRequest struct {
	Enabled *bool `json:"enabled"`
}

type detectionResponse struct {
	Enabled bool `json:"enabled"`
}

// Status handles GET /api/status.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Enabled: h.tracker.Enabled(),
		Session: h.tracker.Status(),
	})
}

// Detection handles GET and PUT /api/detection.
func (h *StatusHandler) Detection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req detectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "enabled is required")
			return
		}
		if err := h.tracker.SetEnabled(*req.Enabled); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save setting")
			return
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, detectionResponse{Enabled: h.tracker.Enabled()})
}
