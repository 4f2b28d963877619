package models

import "time"

// Recurrence patterns supported for regular meetings.
const (
	PatternNone    = "None"
	PatternWeekly  = "Weekly"
	PatternMonthly = "Monthly"
)

// MeetingRecurrence describes how a regular meeting repeats. Each meeting
// owns its own recurrence row; editing one meeting's recurrence never
// affects another meeting.
type MeetingRecurrence struct {
	ID       string `json:"id"`
	Pattern  string `json:"pattern"`
	Interval int    `json:"interval"`
}

// Meeting represents a scheduled event with a time window, an optional
// recurrence and a participant roster.
//
// Date and EndDate use the "2006-01-02" layout, StartTime and EndTime use
// "15:04". Both layouts compare correctly as plain strings, which lets the
// database enforce the time-window checks as TEXT constraints.
type Meeting struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Date         string             `json:"date"`
	StartTime    string             `json:"startTime"`
	EndTime      string             `json:"endTime"`
	EndDate      *string            `json:"endDate,omitempty"`
	ColorHex     *string            `json:"colorHex,omitempty"`
	IsRegular    bool               `json:"isRegular"`
	Interval     int                `json:"interval"`
	RecurrenceID *string            `json:"recurrenceId,omitempty"`
	Recurrence   *MeetingRecurrence `json:"recurrence,omitempty"`
	CreatedByID  string             `json:"createdByUserId"`
	CreatedBy    *User              `json:"createdByUser,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    *time.Time         `json:"updatedAt,omitempty"`
	Participants []User             `json:"participants"`
}

// Participant links a user to a meeting. The (MeetingID, UserID) pair is
// unique per meeting.
type Participant struct {
	MeetingID string `json:"meetingId"`
	UserID    string `json:"userId"`
}
