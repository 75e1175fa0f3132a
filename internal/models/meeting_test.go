package models_test

import (
	"testing"
	"time"

	"counselgo/client/internal/models"

	"github.com/stretchr/testify/assert"
)

// TestValidTransition_HappyPath verifies the monotonic happy path
// request_pending -> counselor_assigned -> time_selected -> confirmed -> completed.
func TestValidTransition_HappyPath(t *testing.T) {
	assert.True(t, models.ValidTransition(models.ActionAssignCounselor, models.StatusRequestPending))
	assert.True(t, models.ValidTransition(models.ActionSelectTime, models.StatusCounselorAssigned))
	assert.True(t, models.ValidTransition(models.ActionConfirm, models.StatusTimeSelected))
	assert.True(t, models.ValidTransition(models.ActionComplete, models.StatusConfirmed))
}

// TestValidTransition_NoBackwardSteps verifies that once confirmed, no action
// can move the meeting back toward request_pending or counselor_assigned.
func TestValidTransition_NoBackwardSteps(t *testing.T) {
	assert.False(t, models.ValidTransition(models.ActionAssignCounselor, models.StatusConfirmed))
	assert.False(t, models.ValidTransition(models.ActionSelectTime, models.StatusConfirmed))
	assert.False(t, models.ValidTransition(models.ActionSelectTime, models.StatusTimeSelected))
	assert.False(t, models.ValidTransition(models.ActionAssignCounselor, models.StatusTimeSelected))
}

// TestValidTransition_TerminalStatuses verifies cancel/abandon are reachable
// from every non-terminal status and from no terminal one.
func TestValidTransition_TerminalStatuses(t *testing.T) {
	nonTerminal := []models.MeetingStatus{
		models.StatusRequestPending,
		models.StatusCounselorAssigned,
		models.StatusTimeSelected,
		models.StatusConfirmed,
	}
	for _, status := range nonTerminal {
		assert.True(t, models.ValidTransition(models.ActionCancel, status), "cancel from %s", status)
		assert.True(t, models.ValidTransition(models.ActionAbandon, status), "abandon from %s", status)
	}

	terminal := []models.MeetingStatus{
		models.StatusCancelled,
		models.StatusCompleted,
		models.StatusAbandoned,
	}
	for _, status := range terminal {
		assert.True(t, models.Terminal(status))
		assert.False(t, models.ValidTransition(models.ActionCancel, status), "cancel from %s", status)
		assert.False(t, models.ValidTransition(models.ActionComplete, status), "complete from %s", status)
	}
}

func TestGuardTransition_RejectsUnknownAction(t *testing.T) {
	err := models.GuardTransition("teleport", models.StatusConfirmed)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

// TestMeetingStartTime verifies date/time assembly and the defensive error on
// malformed fields.
func TestMeetingStartTime(t *testing.T) {
	m := &models.Meeting{MeetingDate: "2025-03-01", MeetingTime: "14:00"}

	start, err := m.StartTime()
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 14, 0, 0, 0, time.Local), start)
}

func TestMeetingStartTime_Malformed(t *testing.T) {
	cases := []models.Meeting{
		{},
		{MeetingDate: "2025-03-01"},
		{MeetingTime: "14:00"},
		{MeetingDate: "not-a-date", MeetingTime: "14:00"},
		{MeetingDate: "2025-03-01", MeetingTime: "25:99"},
	}
	for _, m := range cases {
		_, err := m.StartTime()
		assert.ErrorIs(t, err, models.ErrNoSchedule)
	}
}
