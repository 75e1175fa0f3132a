package models

import "time"

// Request/response contracts for the REST endpoints the client consumes.

type InitiateRequest struct {
	MeetingType      MeetingType `json:"meetingType"`
	IssueDescription string      `json:"issueDescription"`
}

type SelectTimeRequest struct {
	MeetingID   string `json:"meetingId"`
	MeetingDate string `json:"meetingDate"`
	MeetingTime string `json:"meetingTime"`
}

type CancelRequest struct {
	MeetingID string `json:"meetingId"`
	Reason    string `json:"reason,omitempty"`
}

type AssignCounselorRequest struct {
	MeetingID   string `json:"meetingId"`
	CounselorID string `json:"counselorId"`
}

type AcceptRequest struct {
	MeetingID string `json:"meetingId"`
}

type ReportNoShowRequest struct {
	MeetingID    string `json:"meetingId"`
	NoShowReason string `json:"noShowReason"`
}

type LeaveRequest struct {
	GracePeriod bool `json:"gracePeriod"`
}

type RateRequest struct {
	Score   int    `json:"score"`
	Comment string `json:"comment,omitempty"`
}

type RatingStatus struct {
	Rated bool `json:"rated"`
	Score int  `json:"score,omitempty"`
}

// TimeSlot — вільний слот у розкладі консультанта.
type TimeSlot struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// Counselor as listed for the admin assignment view. The server filters the
// list to counselors with remaining capacity.
type Counselor struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Specialty     string `json:"specialty,omitempty"`
	ActiveClients int    `json:"activeClients"`
	Capacity      int    `json:"capacity"`
}

type PendingCount struct {
	Count int `json:"count"`
}

// MeetingToken carries the live-session transport credentials.
type MeetingToken struct {
	Token    string `json:"token"`
	RoomID   string `json:"roomId"`
	Provider string `json:"provider,omitempty"`
}

// SessionStatus is the poll view of a live meeting, used to resync grace
// state on rejoin.
type SessionStatus struct {
	MeetingID       string        `json:"meetingId"`
	Status          MeetingStatus `json:"status"`
	ClientJoined    bool          `json:"clientJoined"`
	CounselorJoined bool          `json:"counselorJoined"`
	InGracePeriod   bool          `json:"inGracePeriod"`
	GraceEndTime    *time.Time    `json:"graceEndTime,omitempty"`
}
