package services

import (
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/mvalenta/meetly-be/internal/database"
	"github.com/mvalenta/meetly-be/internal/models"
	"github.com/stretchr/testify/require"
)

// newTestDB opens a fresh in-memory database with the full schema applied.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

type testEnv struct {
	db       *sql.DB
	users    *UserService
	meetings *MeetingService
	events   *EventService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	validate := validator.New()
	events := NewEventService(db)
	return &testEnv{
		db:       db,
		users:    NewUserService(db, validate),
		meetings: NewMeetingService(db, events, nil, validate),
		events:   events,
	}
}

// mustRegister creates a user and fails the test on error.
func (e *testEnv) mustRegister(t *testing.T, username string) models.User {
	t.Helper()
	user, err := e.users.Register(RegisterInput{
		Username: username,
		Password: "correct-horse",
		Email:    username + "@example.com",
	})
	require.NoError(t, err)
	return user
}

// mustCreateMeeting creates a plain one-off meeting owned by creatorID.
func (e *testEnv) mustCreateMeeting(t *testing.T, title, creatorID string) models.Meeting {
	t.Helper()
	meeting, err := e.meetings.CreateMeeting(MeetingInput{
		Title:           title,
		Date:            "2024-01-01",
		StartTime:       "09:00",
		EndTime:         "09:15",
		CreatedByUserID: creatorID,
	})
	require.NoError(t, err)
	return meeting
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
