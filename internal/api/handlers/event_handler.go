package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mvalenta/meetly-be/internal/services"
	"github.com/rs/zerolog/log"
)

const defaultEventLimit = 20

// EventHandler handles HTTP requests for the audit trail. Both endpoints are
// admin only: the global feed for operational overview, the per-meeting feed
// to answer "who changed this and when".
type EventHandler struct {
	service services.EventServiceProvider
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(service services.EventServiceProvider) *EventHandler {
	return &EventHandler{service: service}
}

// GetRecent returns the newest events across all meetings.
func (h *EventHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.GetRecentEvents(eventLimit(r))
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve events")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// GetForMeeting returns the newest events recorded against one meeting.
func (h *EventHandler) GetForMeeting(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "id")
	events, err := h.service.GetEventsForMeeting(meetingID, eventLimit(r))
	if err != nil {
		log.Error().Err(err).Str("meetingId", meetingID).Msg("Failed to retrieve meeting events")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func eventLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultEventLimit
	}
	return limit
}
