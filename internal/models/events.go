package models

import (
	"encoding/json"
	"time"
)

// Push event names delivered over the push channel. Listeners treat payloads
// as invalidation signals and re-fetch the authoritative record; only fields
// explicitly carried in the payload (date/time on confirmation) may be
// rendered optimistically.
const (
	EventAuthenticate      = "authenticate"
	EventBookingUpdated    = "booking_updated"
	EventCounselorAssigned = "counselor_assigned"
	EventMeetingConfirmed  = "meeting_confirmed"
	EventParticipantStatus = "participant_status"
	EventGracePeriod       = "grace_period"
	EventSessionCompleted  = "session_completed"
	EventAdminUpdate       = "admin_update"
)

// PushFrame — один кадр на WebSocket-з'єднанні, в обидва боки.
type PushFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type CounselorAssignedPayload struct {
	MeetingID     string `json:"meetingId"`
	CounselorID   string `json:"counselorId"`
	CounselorName string `json:"counselorName,omitempty"`
	AutoAssigned  bool   `json:"autoAssigned"`
}

type MeetingConfirmedPayload struct {
	MeetingID   string `json:"meetingId"`
	MeetingDate string `json:"meetingDate"`
	MeetingTime string `json:"meetingTime"`
}

type ParticipantStatusPayload struct {
	MeetingID string    `json:"meetingId"`
	Role      string    `json:"role"`   // client | counselor
	Status    string    `json:"status"` // joined | left
	Timestamp time.Time `json:"timestamp"`
}

type GracePeriodPayload struct {
	MeetingID    string    `json:"meetingId"`
	GraceEndTime time.Time `json:"graceEndTime"`
	Participant  string    `json:"participant"` // role that disconnected
}

type SessionCompletedPayload struct {
	MeetingID string `json:"meetingId"`
}

// AdminUpdatePayload is scoped to the admin role.
type AdminUpdatePayload struct {
	Type string `json:"type"` // new_booking | meeting_requests_fetched
}
