package services

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/mvalenta/meetly-be/internal/models"
)

// EventServiceProvider defines the interface for audit event services.
type EventServiceProvider interface {
	CreateEvent(eventType, level, message string, meetingID *string) error
	GetRecentEvents(limit int) ([]models.Event, error)
	GetEventsForMeeting(meetingID string, limit int) ([]models.Event, error)
	DeleteEventsBefore(cutoff time.Time) (int64, error)
}

// EventService provides business logic for audit event management.
type EventService struct {
	db *sql.DB
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB) *EventService {
	return &EventService{db: db}
}

// CreateEvent logs a new event to the database.
func (s *EventService) CreateEvent(eventType, level, message string, meetingID *string) error {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Level:     level,
		Message:   message,
		MeetingID: meetingID,
	}

	stmt, err := s.db.Prepare("INSERT INTO events (id, type, level, message, meeting_id) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(event.ID, event.Type, event.Level, event.Message, event.MeetingID)
	return err
}

// GetRecentEvents retrieves the most recent events from the database.
func (s *EventService) GetRecentEvents(limit int) ([]models.Event, error) {
	rows, err := s.db.Query("SELECT id, type, level, message, meeting_id, created_at FROM events ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// GetEventsForMeeting retrieves the most recent events recorded against a
// single meeting. An empty result is not an error: meetings without history
// simply have none yet.
func (s *EventService) GetEventsForMeeting(meetingID string, limit int) ([]models.Event, error) {
	rows, err := s.db.Query("SELECT id, type, level, message, meeting_id, created_at FROM events WHERE meeting_id = ? ORDER BY created_at DESC LIMIT ?", meetingID, limit)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]models.Event, error) {
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var event models.Event
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &event.MeetingID, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// DeleteEventsBefore removes audit events older than the cutoff and reports
// how many rows were pruned. Used by the maintenance janitor.
func (s *EventService) DeleteEventsBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM events WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
