package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/isdelr/ender-watch/internal/models"
	"github.com/isdelr/ender-watch/internal/services"
	"github.com/rs/zerolog/log"
)

// EventHandler handles HTTP requests related to recorded events.
type EventHandler struct {
	service services.EventServiceProvider
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(service services.EventServiceProvider) *EventHandler {
	return &EventHandler{service: service}
}

// List returns events. With ?since= it returns every event at or after that
// time, otherwise the most recent ?limit= events (default 20).
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		events []models.LogEvent
		err    error
	)

	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		since, perr := parseSince(sinceStr)
		if perr != nil {
			http.Error(w, "Invalid since parameter", http.StatusBadRequest)
			return
		}
		events, err = h.service.Query(r.Context(), &since)
	} else {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 20 // Default limit
		}
		events, err = h.service.Recent(r.Context(), limit)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve events")
		http.Error(w, "Failed to retrieve events: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []models.LogEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}

// parseSince accepts the store's own timestamp format or RFC 3339.
func parseSince(s string) (time.Time, error) {
	if t, err := services.ParseTimestamp(s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
