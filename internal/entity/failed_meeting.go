package entity

import "time"

// FailedMeeting mirrors the `meeting_failures` PostgreSQL table schema.
type FailedMeeting struct {
	PlayerURI            string
	Title                string
	MeetingDatetime      time.Time
	FailureReason        string
	LastAttemptTimestamp time.Time
	AttemptCount         int
}
