package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"counselgo/client/internal/models"
)

// Resource tags for the invalidation cache.
const (
	TagActiveBooking   = "active-booking"
	TagPendingRequests = "pending-requests"
	TagHistory         = "history"
)

// Initiate creates a new meeting request in request_pending.
func (c *Client) Initiate(ctx context.Context, req models.InitiateRequest) (*models.Meeting, error) {
	var meeting models.Meeting
	if err := c.do(ctx, http.MethodPost, "/initiate", req, &meeting); err != nil {
		return nil, err
	}
	c.Invalidate(TagActiveBooking)
	return &meeting, nil
}

// ActiveBooking fetches the caller's current non-terminal meeting. Having no
// active booking is not an error: the method returns (nil, nil).
func (c *Client) ActiveBooking(ctx context.Context) (*models.Meeting, error) {
	var meeting models.Meeting
	err := c.do(ctx, http.MethodGet, "/active-booking", nil, &meeting)
	if err != nil {
		var apiErr *ApiError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	if meeting.ID == "" {
		return nil, nil
	}
	return &meeting, nil
}

func (c *Client) AvailableSlots(ctx context.Context, date, counselorID string) ([]models.TimeSlot, error) {
	q := url.Values{}
	q.Set("date", date)
	q.Set("counselorId", counselorID)
	var slots []models.TimeSlot
	if err := c.do(ctx, http.MethodGet, "/available-slots?"+q.Encode(), nil, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func (c *Client) SelectTime(ctx context.Context, req models.SelectTimeRequest) (*models.Meeting, error) {
	var meeting models.Meeting
	if err := c.do(ctx, http.MethodPost, "/select-time", req, &meeting); err != nil {
		return nil, err
	}
	c.Invalidate(TagActiveBooking)
	return &meeting, nil
}

func (c *Client) Cancel(ctx context.Context, req models.CancelRequest) (*models.Meeting, error) {
	var meeting models.Meeting
	if err := c.do(ctx, http.MethodPost, "/cancel", req, &meeting); err != nil {
		return nil, err
	}
	c.Invalidate(TagActiveBooking)
	return &meeting, nil
}

// --- Admin ---

func (c *Client) PendingRequests(ctx context.Context) ([]models.Meeting, error) {
	var meetings []models.Meeting
	if err := c.do(ctx, http.MethodGet, "/meetings/requests", nil, &meetings); err != nil {
		return nil, err
	}
	return meetings, nil
}

func (c *Client) PendingCount(ctx context.Context) (int, error) {
	var count models.PendingCount
	if err := c.do(ctx, http.MethodGet, "/meetings/requests/count", nil, &count); err != nil {
		return 0, err
	}
	return count.Count, nil
}

func (c *Client) ActiveCounselors(ctx context.Context) ([]models.Counselor, error) {
	var counselors []models.Counselor
	if err := c.do(ctx, http.MethodGet, "/counselors/active", nil, &counselors); err != nil {
		return nil, err
	}
	return counselors, nil
}

func (c *Client) AssignCounselor(ctx context.Context, req models.AssignCounselorRequest) (*models.Meeting, error) {
	var meeting models.Meeting
	if err := c.do(ctx, http.MethodPost, "/assign-counselor", req, &meeting); err != nil {
		return nil, err
	}
	c.Invalidate(TagPendingRequests)
	return &meeting, nil
}

// --- Counselor ---

func (c *Client) CounselorMeetings(ctx context.Context) ([]models.Meeting, error) {
	var meetings []models.Meeting
	if err := c.do(ctx, http.MethodGet, "/counselor/meetings", nil, &meetings); err != nil {
		return nil, err
	}
	return meetings, nil
}

func (c *Client) CounselorPending(ctx context.Context) ([]models.Meeting, error) {
	var meetings []models.Meeting
	if err := c.do(ctx, http.MethodGet, "/counselor/pending", nil, &meetings); err != nil {
		return nil, err
	}
	return meetings, nil
}

func (c *Client) Accept(ctx context.Context, meetingID string) (*models.Meeting, error) {
	var meeting models.Meeting
	if err := c.do(ctx, http.MethodPost, "/accept", models.AcceptRequest{MeetingID: meetingID}, &meeting); err != nil {
		return nil, err
	}
	return &meeting, nil
}

func (c *Client) CounselorActiveSession(ctx context.Context) (*models.Meeting, error) {
	var meeting models.Meeting
	err := c.do(ctx, http.MethodGet, "/counselor/active-session", nil, &meeting)
	if err != nil {
		var apiErr *ApiError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	if meeting.ID == "" {
		return nil, nil
	}
	return &meeting, nil
}

// --- History and feedback ---

func (c *Client) ClientHistory(ctx context.Context) ([]models.Meeting, error) {
	var meetings []models.Meeting
	if err := c.do(ctx, http.MethodGet, "/client/history", nil, &meetings); err != nil {
		return nil, err
	}
	return meetings, nil
}

func (c *Client) CounselorHistory(ctx context.Context) ([]models.Meeting, error) {
	var meetings []models.Meeting
	if err := c.do(ctx, http.MethodGet, "/counselor/history", nil, &meetings); err != nil {
		return nil, err
	}
	return meetings, nil
}

func (c *Client) Rate(ctx context.Context, meetingID string, req models.RateRequest) error {
	return c.do(ctx, http.MethodPost, "/rate/"+meetingID, req, nil)
}

func (c *Client) RatingStatus(ctx context.Context, meetingID string) (*models.RatingStatus, error) {
	var status models.RatingStatus
	if err := c.do(ctx, http.MethodGet, "/rate/status/"+meetingID, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// --- Live session ---

func (c *Client) MeetingToken(ctx context.Context, meetingID string) (*models.MeetingToken, error) {
	var token models.MeetingToken
	if err := c.do(ctx, http.MethodGet, "/meeting-token/"+meetingID, nil, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// NotifyJoin повідомляє сервер про приєднання. Best-effort: не є джерелом
// правди про завершення сесії.
func (c *Client) NotifyJoin(ctx context.Context, meetingID string) error {
	return c.do(ctx, http.MethodPost, "/participant/"+meetingID+"/join", nil, nil)
}

func (c *Client) NotifyLeave(ctx context.Context, meetingID string, gracePeriod bool) error {
	return c.do(ctx, http.MethodPost, "/participant/"+meetingID+"/leave", models.LeaveRequest{GracePeriod: gracePeriod}, nil)
}

func (c *Client) Complete(ctx context.Context, meetingID string) error {
	err := c.do(ctx, http.MethodPost, "/complete/"+meetingID, nil, nil)
	if err == nil {
		c.Invalidate(TagActiveBooking)
	}
	return err
}

func (c *Client) CompleteExtended(ctx context.Context, meetingID string) error {
	err := c.do(ctx, http.MethodPost, "/complete-extended/"+meetingID, nil, nil)
	if err == nil {
		c.Invalidate(TagActiveBooking)
	}
	return err
}

func (c *Client) ReportNoShow(ctx context.Context, req models.ReportNoShowRequest) error {
	return c.do(ctx, http.MethodPost, "/report-no-show", req, nil)
}

func (c *Client) SessionStatus(ctx context.Context, meetingID string) (*models.SessionStatus, error) {
	var status models.SessionStatus
	if err := c.do(ctx, http.MethodGet, "/session/"+meetingID+"/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
