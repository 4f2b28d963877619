package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mvalenta/meetly-be/internal/services"
)

// MeetingHandler handles HTTP requests for meeting management.
type MeetingHandler struct {
	service services.MeetingServiceProvider
}

// NewMeetingHandler creates a new MeetingHandler.
func NewMeetingHandler(service services.MeetingServiceProvider) *MeetingHandler {
	return &MeetingHandler{service: service}
}

// GetAll handles listing meetings, optionally filtered by title substring
// and exact date.
func (h *MeetingHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	filter := services.MeetingFilter{
		Title: r.URL.Query().Get("title"),
		Date:  r.URL.Query().Get("date"),
	}
	meetings, err := h.service.ListMeetings(filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meetings)
}

// Get handles retrieving a single meeting by ID.
func (h *MeetingHandler) Get(w http.ResponseWriter, r *http.Request) {
	meeting, err := h.service.GetMeetingByID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meeting)
}

// Create handles the creation of a new meeting.
func (h *MeetingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.MeetingInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	meeting, err := h.service.CreateMeeting(input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, meeting)
}

// Update handles updating an existing meeting.
func (h *MeetingHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input services.MeetingInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateMeeting(chi.URLParam(r, "id"), input); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles removing a meeting and its roster.
func (h *MeetingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteMeeting(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddParticipant handles POST /meetings/{id}/users/{userId}.
func (h *MeetingHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "id")
	userID := chi.URLParam(r, "userId")
	if err := h.service.AddParticipant(meetingID, userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// AddParticipantViaBody handles POST /meetings/{id}/participants with
// the user id in the request body.
func (h *MeetingHandler) AddParticipantViaBody(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	meetingID := chi.URLParam(r, "id")
	if err := h.service.AddParticipant(meetingID, payload.UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// RemoveParticipant handles DELETE /meetings/{id}/users/{userId}.
func (h *MeetingHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "id")
	userID := chi.URLParam(r, "userId")
	if err := h.service.RemoveParticipant(meetingID, userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListParticipants handles GET /meetings/{id}/participants.
func (h *MeetingHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.service.ListParticipants(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, participants)
}
