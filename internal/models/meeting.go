package models

import (
	"errors"
	"fmt"
	"time"
)

// MeetingStatus описує поточний етап життєвого циклу зустрічі.
type MeetingStatus string

const (
	StatusRequestPending    MeetingStatus = "request_pending"
	StatusCounselorAssigned MeetingStatus = "counselor_assigned"
	StatusTimeSelected      MeetingStatus = "time_selected"
	StatusConfirmed         MeetingStatus = "confirmed"
	StatusCancelled         MeetingStatus = "cancelled"
	StatusCompleted         MeetingStatus = "completed"
	StatusAbandoned         MeetingStatus = "abandoned"
)

// MeetingType — формат проведення зустрічі.
type MeetingType string

const (
	MeetingVirtual  MeetingType = "virtual"
	MeetingPhysical MeetingType = "physical"
)

// Meeting is the canonical booking/session record. The server is the single
// source of truth; every local copy is a cache invalidated by push events.
type Meeting struct {
	ID                 string        `json:"id"`
	MeetingType        MeetingType   `json:"meetingType"`
	IssueDescription   string        `json:"issueDescription"`
	Status             MeetingStatus `json:"status"`
	MeetingDate        string        `json:"meetingDate,omitempty"` // YYYY-MM-DD
	MeetingTime        string        `json:"meetingTime,omitempty"` // HH:MM
	ClientID           string        `json:"clientId"`
	CounselorID        string        `json:"counselorId,omitempty"`
	AutoAssigned       bool          `json:"autoAssigned"`
	CancellationReason string        `json:"cancellationReason,omitempty"`
	NoShowReason       string        `json:"noShowReason,omitempty"`
	NoShowReportedBy   string        `json:"noShowReportedBy,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

var ErrNoSchedule = errors.New("meeting has no usable date/time")

// StartTime збирає MeetingDate і MeetingTime у конкретний момент часу.
// Повертає ErrNoSchedule, якщо поля відсутні або не парсяться.
func (m *Meeting) StartTime() (time.Time, error) {
	if m.MeetingDate == "" || m.MeetingTime == "" {
		return time.Time{}, ErrNoSchedule
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", m.MeetingDate+" "+m.MeetingTime, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrNoSchedule, err)
	}
	return t, nil
}

// Terminal reports whether the status is a final one.
func Terminal(status MeetingStatus) bool {
	switch status {
	case StatusCancelled, StatusCompleted, StatusAbandoned:
		return true
	}
	return false
}

// Lifecycle actions as the client issues them.
const (
	ActionAssignCounselor = "assign_counselor"
	ActionSelectTime      = "select_time"
	ActionConfirm         = "confirm"
	ActionCancel          = "cancel"
	ActionComplete        = "complete"
	ActionAbandon         = "abandon"
)

// transitionMap: дія -> статуси, з яких вона дозволена. Щасливий шлях
// монотонний: request_pending -> counselor_assigned -> time_selected ->
// confirmed -> completed. cancel та abandon термінальні з будь-якого
// нетермінального статусу.
var transitionMap = map[string][]MeetingStatus{
	ActionAssignCounselor: {StatusRequestPending},
	ActionSelectTime:      {StatusCounselorAssigned},
	ActionConfirm:         {StatusTimeSelected},
	ActionComplete:        {StatusConfirmed},
	ActionCancel:          {StatusRequestPending, StatusCounselorAssigned, StatusTimeSelected, StatusConfirmed},
	ActionAbandon:         {StatusRequestPending, StatusCounselorAssigned, StatusTimeSelected, StatusConfirmed},
}

var ErrInvalidTransition = errors.New("invalid status transition")

// ValidTransition reports whether the action is allowed from the given status.
func ValidTransition(action string, from MeetingStatus) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}

// GuardTransition is the local monotonicity check performed before a request
// is issued. The server remains authoritative; this only rejects requests the
// server would certainly reject.
func GuardTransition(action string, from MeetingStatus) error {
	if !ValidTransition(action, from) {
		return fmt.Errorf("%w: %s from %q", ErrInvalidTransition, action, from)
	}
	return nil
}

// Roles recognised by the push channel and the server.
const (
	RoleClient    = "client"
	RoleCounselor = "counselor"
	RoleAdmin     = "admin"
)

// Identity is what the push channel authenticates with.
type Identity struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}
