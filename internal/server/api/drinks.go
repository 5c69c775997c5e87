package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/gulpwatch/internal/store"
)

// DrinkHandler serves /api/drinks and /api/progress.
type DrinkHandler struct {
	store   *store.Store
	tracker Tracker
}

// NewDrinkHandler creates a DrinkHandler.
func NewDrinkHandler(s *store.Store, t Tracker) *DrinkHandler {
	return &DrinkHandler{store: s, tracker: t}
}

type listDrinksResponse struct {
	Day    string         `json:"day"`
	Drinks []*store.Drink `json:"drinks"`
}

type drinkChangeResponse struct {
	Drink    eventResponse   `json:"drink"`
	Progress *store.Progress `json:"progress"`
}

// ServeHTTP routes:
//
//	GET    /api/drinks[?day=]  list a day's drinks
//	POST   /api/drinks         add a drink by hand
//	GET    /api/drinks/last    today's latest drink
//	DELETE /api/drinks/last    undo the latest drink
//	GET    /api/drinks/{id}    one drink
func (h *DrinkHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/drinks")
	path = strings.TrimPrefix(path, "/")

	switch {
	case path == "":
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.add(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case path == "last":
		switch r.Method {
		case http.MethodGet:
			h.last(w, r)
		case http.MethodDelete:
			h.undo(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	default:
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.get(w, r, path)
	}
}

func (h *DrinkHandler) list(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r, h.tracker)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	drinks, err := h.store.Drinks().ListByDay(day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list drinks")
		return
	}
	if drinks == nil {
		drinks = []*store.Drink{}
	}
	writeJSON(w, http.StatusOK, listDrinksResponse{Day: day, Drinks: drinks})
}

func (h *DrinkHandler) add(w http.ResponseWriter, r *http.Request) {
	ev, err := h.tracker.AddDrink()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record drink")
		return
	}
	h.writeChange(w, http.StatusCreated, toEventResponse(ev))
}

func (h *DrinkHandler) undo(w http.ResponseWriter, r *http.Request) {
	ev, ok, err := h.tracker.UndoDrink()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to remove drink")
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeChange(w, http.StatusOK, toEventResponse(ev))
}

// writeChange responds with the changed drink and today's progress.
func (h *DrinkHandler) writeChange(w http.ResponseWriter, status int, ev eventResponse) {
	p, err := h.tracker.Progress("")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read progress")
		return
	}
	writeJSON(w, status, drinkChangeResponse{Drink: ev, Progress: p})
}

func (h *DrinkHandler) last(w http.ResponseWriter, r *http.Request) {
	d, err := h.store.Drinks().Last(h.tracker.Today())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "No drinks today")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get drink")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *DrinkHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	d, err := h.store.Drinks().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Drink not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get drink")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Progress handles GET /api/progress[?day=].
func (h *DrinkHandler) Progress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	day, err := dayParam(r, h.tracker)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.tracker.Progress(day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read progress")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
