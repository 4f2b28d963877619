package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mvalenta/meetly-be/internal/models"
	"github.com/rs/zerolog/log"
)

// RecurrenceInput describes the repetition of a regular meeting.
type RecurrenceInput struct {
	Pattern  string `json:"pattern" validate:"required,oneof=None Weekly Monthly"`
	Interval int    `json:"interval" validate:"omitempty,min=1"`
}

// MeetingInput carries the fields accepted on create and update. The creator
// is fixed at creation time and never changes afterwards.
type MeetingInput struct {
	Title           string           `json:"title" validate:"required,max=255"`
	Date            string           `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string           `json:"startTime" validate:"required,datetime=15:04"`
	EndTime         string           `json:"endTime" validate:"required,datetime=15:04"`
	EndDate         *string          `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	ColorHex        *string          `json:"colorHex" validate:"omitempty,max=7"`
	IsRegular       bool             `json:"isRegular"`
	Interval        *int             `json:"interval" validate:"omitempty,min=1"`
	Recurrence      *RecurrenceInput `json:"recurrence"`
	CreatedByUserID string           `json:"createdByUserId"`
	Participants    []string         `json:"participants"`
}

// MeetingFilter narrows meeting listings. Zero-value fields do not filter.
type MeetingFilter struct {
	Title string // substring match
	Date  string // exact date, YYYY-MM-DD
}

// MeetingNotifier broadcasts meeting lifecycle changes to live feed clients.
type MeetingNotifier interface {
	NotifyMeeting(meetingID, action string, payload interface{})
}

// MeetingServiceProvider defines the interface for meeting services.
type MeetingServiceProvider interface {
	CreateMeeting(input MeetingInput) (models.Meeting, error)
	GetMeetingByID(id string) (models.Meeting, error)
	ListMeetings(filter MeetingFilter) ([]models.Meeting, error)
	UpdateMeeting(id string, input MeetingInput) error
	DeleteMeeting(id string) error
	AddParticipant(meetingID, userID string) error
	RemoveParticipant(meetingID, userID string) error
	ListParticipants(meetingID string) ([]models.User, error)
}

// MeetingService provides business logic for meeting and roster management.
type MeetingService struct {
	db           *sql.DB
	eventService EventServiceProvider
	notifier     MeetingNotifier
	validate     *validator.Validate
}

// NewMeetingService creates a new MeetingService. The notifier may be nil.
func NewMeetingService(db *sql.DB, eventService EventServiceProvider, notifier MeetingNotifier, validate *validator.Validate) *MeetingService {
	return &MeetingService{
		db:           db,
		eventService: eventService,
		notifier:     notifier,
		validate:     validate,
	}
}

// validateWindow checks the semantic time rules shared by create and update.
// Dates and clock times are zero-padded strings, so plain comparison matches
// chronological order; the struct validation has already checked the layouts.
func (s *MeetingService) validateWindow(input MeetingInput) *ValidationError {
	vErr := &ValidationError{}
	if input.EndTime <= input.StartTime {
		vErr.add("endTime", "must be after startTime")
	}
	if input.EndDate != nil && *input.EndDate < input.Date {
		vErr.add("endDate", "must not be before date")
	}
	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "must not be blank")
	}
	return vErr
}

// normalizedInterval applies the default interval of 1.
func normalizedInterval(interval *int) int {
	if interval == nil || *interval < 1 {
		return 1
	}
	return *interval
}

func (s *MeetingService) userExists(q interface {
	QueryRow(string, ...interface{}) *sql.Row
}, id string) (bool, error) {
	var one int
	err := q.QueryRow("SELECT 1 FROM users WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateMeeting validates the input and persists the meeting, its recurrence
// and the initial roster as a single transaction.
//
// Roster seeding is best-effort with respect to duplicates: a user id listed
// twice joins once and the creation still succeeds. Unknown user ids are not
// forgiven; referential integrity failures abort the whole creation.
func (s *MeetingService) CreateMeeting(input MeetingInput) (models.Meeting, error) {
	if err := s.validate.Struct(input); err != nil {
		return models.Meeting{}, fromValidator(err)
	}
	vErr := s.validateWindow(input)
	if input.CreatedByUserID == "" {
		vErr.add("createdByUserId", "is required")
	}
	if vErr.HasErrors() {
		return models.Meeting{}, vErr
	}

	tx, err := s.db.Begin()
	if err != nil {
		return models.Meeting{}, err
	}
	defer tx.Rollback()

	exists, err := s.userExists(tx, input.CreatedByUserID)
	if err != nil {
		return models.Meeting{}, err
	}
	if !exists {
		vErr.add("createdByUserId", "does not resolve to an existing user")
		return models.Meeting{}, vErr
	}

	meetingID := uuid.New().String()
	interval := normalizedInterval(input.Interval)

	var recurrenceID *string
	if input.IsRegular && input.Recurrence != nil {
		id := uuid.New().String()
		recInterval := input.Recurrence.Interval
		if recInterval < 1 {
			recInterval = interval
		}
		if _, err = tx.Exec("INSERT INTO recurrences (id, pattern, interval) VALUES (?, ?, ?)",
			id, input.Recurrence.Pattern, recInterval); err != nil {
			return models.Meeting{}, translateConstraintErr(err)
		}
		recurrenceID = &id
	}

	createdAt := time.Now().UTC()
	_, err = tx.Exec(`
		INSERT INTO meetings (id, title, date, start_time, end_time, end_date, color_hex, is_regular, interval, recurrence_id, created_by_user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meetingID, input.Title, input.Date, input.StartTime, input.EndTime, input.EndDate,
		input.ColorHex, input.IsRegular, interval, recurrenceID, input.CreatedByUserID, createdAt)
	if err != nil {
		return models.Meeting{}, translateConstraintErr(err)
	}

	for _, userID := range input.Participants {
		exists, err = s.userExists(tx, userID)
		if err != nil {
			return models.Meeting{}, err
		}
		if !exists {
			vErr.add("participants", fmt.Sprintf("user %s does not exist", userID))
			return models.Meeting{}, vErr
		}
		// Duplicates within the batch join once.
		if _, err = tx.Exec("INSERT OR IGNORE INTO meeting_participants (meeting_id, user_id) VALUES (?, ?)", meetingID, userID); err != nil {
			return models.Meeting{}, translateConstraintErr(err)
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Meeting{}, err
	}

	s.logEvent("meeting.create", "info", fmt.Sprintf("Meeting '%s' created.", input.Title), &meetingID)
	s.notify(meetingID, "meeting.create")
	return s.GetMeetingByID(meetingID)
}

// UpdateMeeting applies field changes under the same time rules as creation.
// The creator cannot be changed. Recurrence rows are owned per meeting, so an
// in-place pattern edit never affects another meeting.
func (s *MeetingService) UpdateMeeting(id string, input MeetingInput) error {
	if err := s.validate.Struct(input); err != nil {
		return fromValidator(err)
	}
	if vErr := s.validateWindow(input); vErr.HasErrors() {
		return vErr
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var currentRecurrence sql.NullString
	err = tx.QueryRow("SELECT recurrence_id FROM meetings WHERE id = ?", id).Scan(&currentRecurrence)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("meeting %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return err
	}

	wantRegular := input.IsRegular && input.Recurrence != nil
	var recurrenceID *string
	switch {
	case wantRegular && currentRecurrence.Valid:
		// Update the owned rule in place.
		recInterval := input.Recurrence.Interval
		if recInterval < 1 {
			recInterval = normalizedInterval(input.Interval)
		}
		if _, err = tx.Exec("UPDATE recurrences SET pattern = ?, interval = ? WHERE id = ?",
			input.Recurrence.Pattern, recInterval, currentRecurrence.String); err != nil {
			return translateConstraintErr(err)
		}
		recurrenceID = &currentRecurrence.String
	case wantRegular:
		newID := uuid.New().String()
		recInterval := input.Recurrence.Interval
		if recInterval < 1 {
			recInterval = normalizedInterval(input.Interval)
		}
		if _, err = tx.Exec("INSERT INTO recurrences (id, pattern, interval) VALUES (?, ?, ?)",
			newID, input.Recurrence.Pattern, recInterval); err != nil {
			return translateConstraintErr(err)
		}
		recurrenceID = &newID
	}

	updatedAt := time.Now().UTC()
	_, err = tx.Exec(`
		UPDATE meetings
		SET title = ?, date = ?, start_time = ?, end_time = ?, end_date = ?, color_hex = ?, is_regular = ?, interval = ?, recurrence_id = ?, updated_at = ?
		WHERE id = ?`,
		input.Title, input.Date, input.StartTime, input.EndTime, input.EndDate, input.ColorHex,
		input.IsRegular, normalizedInterval(input.Interval), recurrenceID, updatedAt, id)
	if err != nil {
		return translateConstraintErr(err)
	}

	// Unlinked rules are owned by this meeting only; drop the orphan.
	if currentRecurrence.Valid && !wantRegular {
		if _, err = tx.Exec("DELETE FROM recurrences WHERE id = ?", currentRecurrence.String); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	s.logEvent("meeting.update", "info", fmt.Sprintf("Meeting '%s' updated.", input.Title), &id)
	s.notify(id, "meeting.update")
	return nil
}

// DeleteMeeting removes the meeting, its roster and its owned recurrence rule
// atomically. Partial deletion is never observable.
func (s *MeetingService) DeleteMeeting(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var recurrenceID sql.NullString
	err = tx.QueryRow("SELECT recurrence_id FROM meetings WHERE id = ?", id).Scan(&recurrenceID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("meeting %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return err
	}

	if _, err = tx.Exec("DELETE FROM meeting_participants WHERE meeting_id = ?", id); err != nil {
		return err
	}
	if _, err = tx.Exec("DELETE FROM meetings WHERE id = ?", id); err != nil {
		return err
	}
	if recurrenceID.Valid {
		if _, err = tx.Exec("DELETE FROM recurrences WHERE id = ?", recurrenceID.String); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	s.logEvent("meeting.delete", "warn", fmt.Sprintf("Meeting %s was deleted.", id), nil)
	s.notify(id, "meeting.delete")
	return nil
}

// AddParticipant links a user to a meeting's roster. The composite primary
// key is the source of truth for duplicates: even if two concurrent requests
// pass the pre-check, the second insert fails and surfaces as a conflict.
func (s *MeetingService) AddParticipant(meetingID, userID string) error {
	if err := s.requireMeeting(meetingID); err != nil {
		return err
	}
	exists, err := s.userExists(s.db, userID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}

	var one int
	err = s.db.QueryRow("SELECT 1 FROM meeting_participants WHERE meeting_id = ? AND user_id = ?", meetingID, userID).Scan(&one)
	if err == nil {
		return fmt.Errorf("participant already added: %w", ErrConflict)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if _, err = s.db.Exec("INSERT INTO meeting_participants (meeting_id, user_id) VALUES (?, ?)", meetingID, userID); err != nil {
		if translated := translateConstraintErr(err); errors.Is(translated, ErrConflict) {
			return fmt.Errorf("participant already added: %w", ErrConflict)
		}
		return translateConstraintErr(err)
	}

	s.logEvent("participant.add", "info", fmt.Sprintf("User %s joined meeting %s.", userID, meetingID), &meetingID)
	s.notify(meetingID, "participant.add")
	return nil
}

// RemoveParticipant removes a user from a meeting's roster.
func (s *MeetingService) RemoveParticipant(meetingID, userID string) error {
	res, err := s.db.Exec("DELETE FROM meeting_participants WHERE meeting_id = ? AND user_id = ?", meetingID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("participation (%s, %s): %w", meetingID, userID, ErrNotFound)
	}

	s.logEvent("participant.remove", "info", fmt.Sprintf("User %s left meeting %s.", userID, meetingID), &meetingID)
	s.notify(meetingID, "participant.remove")
	return nil
}

// ListParticipants returns the full profiles of a meeting's roster, minus
// credential hashes. Order is not guaranteed by the contract; the query sorts
// by username for stable output.
func (s *MeetingService) ListParticipants(meetingID string) ([]models.User, error) {
	if err := s.requireMeeting(meetingID); err != nil {
		return nil, err
	}
	return s.queryParticipants(s.db, meetingID)
}

// GetMeetingByID returns the fully hydrated meeting.
func (s *MeetingService) GetMeetingByID(id string) (models.Meeting, error) {
	row := s.db.QueryRow(`
		SELECT id, title, date, start_time, end_time, end_date, color_hex, is_regular, interval, recurrence_id, created_by_user_id, created_at, updated_at
		FROM meetings WHERE id = ?`, id)
	meeting, err := s.scanMeeting(row)
	if err != nil {
		return models.Meeting{}, err
	}
	if err = s.hydrate(&meeting); err != nil {
		return models.Meeting{}, err
	}
	return meeting, nil
}

// ListMeetings returns hydrated meetings matching the filter. An empty filter
// returns everything.
func (s *MeetingService) ListMeetings(filter MeetingFilter) ([]models.Meeting, error) {
	query := `
		SELECT id, title, date, start_time, end_time, end_date, color_hex, is_regular, interval, recurrence_id, created_by_user_id, created_at, updated_at
		FROM meetings`
	var clauses []string
	var args []interface{}
	if filter.Title != "" {
		clauses = append(clauses, "title LIKE ?")
		args = append(args, "%"+filter.Title+"%")
	}
	if filter.Date != "" {
		clauses = append(clauses, "date = ?")
		args = append(args, filter.Date)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY date, start_time"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meetings []models.Meeting
	for rows.Next() {
		meeting, err := s.scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, meeting)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	for i := range meetings {
		if err = s.hydrate(&meetings[i]); err != nil {
			return nil, err
		}
	}
	return meetings, nil
}

func (s *MeetingService) requireMeeting(id string) error {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM meetings WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("meeting %s: %w", id, ErrNotFound)
	}
	return err
}

// hydrate loads the recurrence, creator and roster for a scanned meeting.
func (s *MeetingService) hydrate(meeting *models.Meeting) error {
	if meeting.RecurrenceID != nil {
		var rec models.MeetingRecurrence
		err := s.db.QueryRow("SELECT id, pattern, interval FROM recurrences WHERE id = ?", *meeting.RecurrenceID).
			Scan(&rec.ID, &rec.Pattern, &rec.Interval)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err == nil {
			meeting.Recurrence = &rec
		}
	}

	var creator models.User
	err := s.db.QueryRow(
		"SELECT id, username, email, first_name, last_name, role, is_admin, created_at FROM users WHERE id = ?", meeting.CreatedByID).
		Scan(&creator.ID, &creator.Username, &creator.Email, &creator.FirstName, &creator.LastName, &creator.Role, &creator.IsAdmin, &creator.CreatedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if err == nil {
		meeting.CreatedBy = &creator
	}

	participants, err := s.queryParticipants(s.db, meeting.ID)
	if err != nil {
		return err
	}
	meeting.Participants = participants
	return nil
}

func (s *MeetingService) queryParticipants(q interface {
	Query(string, ...interface{}) (*sql.Rows, error)
}, meetingID string) ([]models.User, error) {
	rows, err := q.Query(`
		SELECT u.id, u.username, u.email, u.first_name, u.last_name, u.role, u.is_admin, u.created_at
		FROM meeting_participants mp
		JOIN users u ON u.id = mp.user_id
		WHERE mp.meeting_id = ?
		ORDER BY u.username`, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.Role, &u.IsAdmin, &u.CreatedAt); err != nil {
			return nil, err
		}
		participants = append(participants, u)
	}
	return participants, rows.Err()
}

// scanMeeting reads the meeting columns from a row.
func (s *MeetingService) scanMeeting(scanner interface{ Scan(...interface{}) error }) (models.Meeting, error) {
	var meeting models.Meeting
	var recurrenceID sql.NullString
	var updatedAt sql.NullTime
	err := scanner.Scan(
		&meeting.ID,
		&meeting.Title,
		&meeting.Date,
		&meeting.StartTime,
		&meeting.EndTime,
		&meeting.EndDate,
		&meeting.ColorHex,
		&meeting.IsRegular,
		&meeting.Interval,
		&recurrenceID,
		&meeting.CreatedByID,
		&meeting.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Meeting{}, fmt.Errorf("meeting: %w", ErrNotFound)
		}
		return models.Meeting{}, err
	}
	if recurrenceID.Valid {
		meeting.RecurrenceID = &recurrenceID.String
	}
	if updatedAt.Valid {
		meeting.UpdatedAt = &updatedAt.Time
	}
	return meeting, nil
}

// logEvent records an audit event; failures are logged, not propagated.
func (s *MeetingService) logEvent(eventType, level, message string, meetingID *string) {
	if s.eventService == nil {
		return
	}
	if err := s.eventService.CreateEvent(eventType, level, message, meetingID); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("Failed to record audit event")
	}
}

func (s *MeetingService) notify(meetingID, action string) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyMeeting(meetingID, action, map[string]string{"meetingId": meetingID})
}
