package watchdog_test

import (
	"context"
	"testing"
	"time"

	"counselgo/client/internal/models"
	"counselgo/client/internal/watchdog"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) SessionStatus(ctx context.Context, meetingID string) (*models.SessionStatus, error) {
	args := m.Called(ctx, meetingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SessionStatus), args.Error(1)
}

func (m *MockAPI) ReportNoShow(ctx context.Context, req models.ReportNoShowRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

var checkTime = time.Date(2025, 3, 1, 14, 0, 0, 0, time.Local)

func confirmedMeeting(start time.Time) *models.Meeting {
	return &models.Meeting{
		ID:          "m-1",
		Status:      models.StatusConfirmed,
		MeetingDate: start.Format("2006-01-02"),
		MeetingTime: start.Format("15:04"),
	}
}

func newWatchdog(api *MockAPI, meeting *models.Meeting) *watchdog.Watchdog {
	w := watchdog.New(api, func() *models.Meeting { return meeting }, zap.NewNop())
	w.SetClock(func() time.Time { return checkTime })
	return w
}

// TestRunOnce_ReportsOnce verifies a meeting sixteen minutes past its start
// with nobody joined is reported exactly once across repeated sweeps.
func TestRunOnce_ReportsOnce(t *testing.T) {
	api := new(MockAPI)
	w := newWatchdog(api, confirmedMeeting(checkTime.Add(-16*time.Minute)))
	api.On("SessionStatus", mock.Anything, "m-1").
		Return(&models.SessionStatus{MeetingID: "m-1"}, nil)
	api.On("ReportNoShow", mock.Anything, mock.MatchedBy(func(req models.ReportNoShowRequest) bool {
		return req.MeetingID == "m-1" && req.NoShowReason != ""
	})).Return(nil)

	w.RunOnce(context.Background())
	w.RunOnce(context.Background())
	w.RunOnce(context.Background())

	api.AssertNumberOfCalls(t, "ReportNoShow", 1)
}

func TestRunOnce_BeforeThreshold(t *testing.T) {
	api := new(MockAPI)
	w := newWatchdog(api, confirmedMeeting(checkTime.Add(-14*time.Minute)))

	w.RunOnce(context.Background())
	api.AssertNotCalled(t, "ReportNoShow", mock.Anything, mock.Anything)
}

func TestRunOnce_SomeoneJoined(t *testing.T) {
	api := new(MockAPI)
	w := newWatchdog(api, confirmedMeeting(checkTime.Add(-20*time.Minute)))
	api.On("SessionStatus", mock.Anything, "m-1").
		Return(&models.SessionStatus{MeetingID: "m-1", ClientJoined: true}, nil)

	w.RunOnce(context.Background())
	api.AssertNotCalled(t, "ReportNoShow", mock.Anything, mock.Anything)
}

func TestRunOnce_PastSessionWindow(t *testing.T) {
	api := new(MockAPI)
	w := newWatchdog(api, confirmedMeeting(checkTime.Add(-50*time.Minute)))

	w.RunOnce(context.Background())
	api.AssertNotCalled(t, "SessionStatus", mock.Anything, mock.Anything)
}

func TestRunOnce_NonConfirmedIgnored(t *testing.T) {
	api := new(MockAPI)
	meeting := confirmedMeeting(checkTime.Add(-20 * time.Minute))
	meeting.Status = models.StatusTimeSelected
	w := newWatchdog(api, meeting)

	w.RunOnce(context.Background())
	api.AssertNotCalled(t, "SessionStatus", mock.Anything, mock.Anything)
}

func TestRunOnce_MalformedScheduleIsSkipped(t *testing.T) {
	api := new(MockAPI)
	meeting := &models.Meeting{ID: "m-1", Status: models.StatusConfirmed, MeetingDate: "bogus", MeetingTime: "14:00"}
	w := newWatchdog(api, meeting)

	w.RunOnce(context.Background())
	api.AssertNotCalled(t, "SessionStatus", mock.Anything, mock.Anything)
}
