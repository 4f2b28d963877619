package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mvalenta/meetly-be/internal/auth"
	"github.com/mvalenta/meetly-be/internal/database"
	"github.com/mvalenta/meetly-be/internal/models"
	"github.com/mvalenta/meetly-be/internal/services"
	"github.com/mvalenta/meetly-be/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiTestEnv struct {
	router     http.Handler
	users      *services.UserService
	meetings   *services.MeetingService
	adminToken string
	userToken  string
	admin      models.User
	user       models.User
}

func newAPITestEnv(t *testing.T) *apiTestEnv {
	t.Helper()
	auth.Init("router-test-secret", time.Hour)

	db, err := database.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })

	validate := validator.New()
	eventService := services.NewEventService(db)
	userService := services.NewUserService(db, validate)
	hub := websocket.NewHub()
	go hub.Run()
	meetingService := services.NewMeetingService(db, eventService, hub, validate)

	admin, err := userService.ProvisionUser(services.ProvisionUserInput{
		RegisterInput: services.RegisterInput{
			Username: "root",
			Password: "root-password",
			Email:    "root@example.com",
		},
		Role: models.RoleAdmin,
	})
	require.NoError(t, err)

	user, err := userService.Register(services.RegisterInput{
		Username: "alice",
		Password: "alice-password",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)

	adminToken, err := auth.GenerateJWT(admin)
	require.NoError(t, err)
	userToken, err := auth.GenerateJWT(user)
	require.NoError(t, err)

	return &apiTestEnv{
		router:     NewRouter(hub, meetingService, userService, eventService, "http://localhost:3000"),
		users:      userService,
		meetings:   meetingService,
		adminToken: adminToken,
		userToken:  userToken,
		admin:      admin,
		user:       user,
	}
}

func (e *apiTestEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *apiTestEnv) createMeeting(t *testing.T, title string) models.Meeting {
	t.Helper()
	meeting, err := e.meetings.CreateMeeting(services.MeetingInput{
		Title:           title,
		Date:            "2024-01-01",
		StartTime:       "09:00",
		EndTime:         "09:15",
		CreatedByUserID: e.admin.ID,
	})
	require.NoError(t, err)
	return meeting
}

func TestRegisterAndLogin(t *testing.T) {
	env := newAPITestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "bob",
		"password": "bob-password1",
		"email":    "bob@example.com",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Duplicate username conflicts.
	rec = env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "bob",
		"password": "bob-password1",
		"email":    "bob2@example.com",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "bob",
		"password": "bob-password1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var loginResp struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginResp))
	assert.NotEmpty(t, loginResp.Token)
	assert.Equal(t, "bob", loginResp.User.Username)

	// Bad credentials and unknown user both come back as 401.
	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "bob",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "stranger",
		"password": "whatever",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReadEndpointsRequireToken(t *testing.T) {
	env := newAPITestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/meetings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/meetings", env.userToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExpiredTokenRejectedEverywhere(t *testing.T) {
	env := newAPITestEnv(t)

	auth.Init("router-test-secret", time.Millisecond)
	expired, err := auth.GenerateJWT(env.admin)
	require.NoError(t, err)
	auth.Init("router-test-secret", time.Hour)
	time.Sleep(10 * time.Millisecond)

	rec := env.do(t, http.MethodGet, "/api/v1/meetings", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/meetings", expired, map[string]interface{}{
		"title": "Nope", "date": "2024-01-01", "startTime": "09:00", "endTime": "10:00",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMutationsRequireAdmin(t *testing.T) {
	env := newAPITestEnv(t)
	meeting := env.createMeeting(t, "Standup")

	input := map[string]interface{}{
		"title":           "Planning",
		"date":            "2024-01-02",
		"startTime":       "10:00",
		"endTime":         "11:00",
		"createdByUserId": env.admin.ID,
	}

	cases := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodPost, "/api/v1/meetings", input},
		{http.MethodPut, "/api/v1/meetings/" + meeting.ID, input},
		{http.MethodDelete, "/api/v1/meetings/" + meeting.ID, nil},
		{http.MethodPost, fmt.Sprintf("/api/v1/meetings/%s/users/%s", meeting.ID, env.user.ID), nil},
		{http.MethodDelete, fmt.Sprintf("/api/v1/meetings/%s/users/%s", meeting.ID, env.user.ID), nil},
		{http.MethodPut, "/api/v1/users/" + env.user.ID, map[string]string{"email": "x@example.com"}},
		{http.MethodDelete, "/api/v1/users/" + env.user.ID, nil},
		{http.MethodGet, "/api/v1/events", nil},
	}

	for _, tc := range cases {
		rec := env.do(t, tc.method, tc.path, env.userToken, tc.body)
		assert.Equalf(t, http.StatusForbidden, rec.Code, "%s %s must be admin-only", tc.method, tc.path)
	}

	// The same read endpoints accept the non-admin token.
	rec := env.do(t, http.MethodGet, "/api/v1/meetings/"+meeting.ID, env.userToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/meetings/"+meeting.ID+"/participants", env.userToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/users", env.userToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/auth/me", env.userToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateMeetingEndpoint(t *testing.T) {
	env := newAPITestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/meetings", env.adminToken, map[string]interface{}{
		"title":           "Standup",
		"date":            "2024-01-01",
		"startTime":       "09:00",
		"endTime":         "09:15",
		"createdByUserId": env.admin.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var meeting models.Meeting
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meeting))
	assert.NotEmpty(t, meeting.ID)
	assert.False(t, meeting.CreatedAt.IsZero())
	assert.Nil(t, meeting.Recurrence)

	// Inverted time window is a 400.
	rec = env.do(t, http.MethodPost, "/api/v1/meetings", env.adminToken, map[string]interface{}{
		"title":           "Backwards",
		"date":            "2024-01-01",
		"startTime":       "09:15",
		"endTime":         "09:00",
		"createdByUserId": env.admin.ID,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParticipantEndpoints(t *testing.T) {
	env := newAPITestEnv(t)
	meeting := env.createMeeting(t, "Standup")

	path := fmt.Sprintf("/api/v1/meetings/%s/users/%s", meeting.ID, env.user.ID)
	rec := env.do(t, http.MethodPost, path, env.adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Second add conflicts.
	rec = env.do(t, http.MethodPost, path, env.adminToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/meetings/%s/participants", meeting.ID), env.userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var participants []models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &participants))
	require.Len(t, participants, 1)
	assert.Equal(t, "alice", participants[0].Username)

	rec = env.do(t, http.MethodDelete, path, env.adminToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodDelete, path, env.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteMeetingEndpoint(t *testing.T) {
	env := newAPITestEnv(t)
	meeting := env.createMeeting(t, "Doomed")
	require.NoError(t, env.meetings.AddParticipant(meeting.ID, env.user.ID))

	rec := env.do(t, http.MethodDelete, "/api/v1/meetings/"+meeting.ID, env.adminToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/meetings/"+meeting.ID, env.userToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserListingHidesAdmins(t *testing.T) {
	env := newAPITestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/users", env.userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)

	// Fetching an admin account via the public endpoint is a 404.
	rec = env.do(t, http.MethodGet, "/api/v1/users/"+env.admin.ID, env.userToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventsEndpoint(t *testing.T) {
	env := newAPITestEnv(t)
	meeting := env.createMeeting(t, "Audited")
	env.createMeeting(t, "Other")

	rec := env.do(t, http.MethodGet, "/api/v1/events", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []models.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.NotEmpty(t, events)

	// The per-meeting feed only shows that meeting's history.
	rec = env.do(t, http.MethodGet, "/api/v1/meetings/"+meeting.ID+"/events", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	require.NotNil(t, events[0].MeetingID)
	assert.Equal(t, meeting.ID, *events[0].MeetingID)

	rec = env.do(t, http.MethodGet, "/api/v1/meetings/"+meeting.ID+"/events", env.userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
