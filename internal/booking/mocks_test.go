package booking_test

import (
	"context"

	"counselgo/client/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockAPI is a testify mock of the booking.API interface.
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) Initiate(ctx context.Context, req models.InitiateRequest) (*models.Meeting, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Meeting), args.Error(1)
}

func (m *MockAPI) ActiveBooking(ctx context.Context) (*models.Meeting, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Meeting), args.Error(1)
}

func (m *MockAPI) AvailableSlots(ctx context.Context, date, counselorID string) ([]models.TimeSlot, error) {
	args := m.Called(ctx, date, counselorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TimeSlot), args.Error(1)
}

func (m *MockAPI) SelectTime(ctx context.Context, req models.SelectTimeRequest) (*models.Meeting, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Meeting), args.Error(1)
}

func (m *MockAPI) Cancel(ctx context.Context, req models.CancelRequest) (*models.Meeting, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Meeting), args.Error(1)
}

func (m *MockAPI) PendingRequests(ctx context.Context) ([]models.Meeting, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Meeting), args.Error(1)
}

func (m *MockAPI) PendingCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockAPI) ActiveCounselors(ctx context.Context) ([]models.Counselor, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Counselor), args.Error(1)
}

func (m *MockAPI) AssignCounselor(ctx context.Context, req models.AssignCounselorRequest) (*models.Meeting, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Meeting), args.Error(1)
}

func (m *MockAPI) Accept(ctx context.Context, meetingID string) (*models.Meeting, error) {
	args := m.Called(ctx, meetingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Meeting), args.Error(1)
}

func (m *MockAPI) ClientHistory(ctx context.Context) ([]models.Meeting, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Meeting), args.Error(1)
}

func (m *MockAPI) CounselorHistory(ctx context.Context) ([]models.Meeting, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Meeting), args.Error(1)
}

func (m *MockAPI) Rate(ctx context.Context, meetingID string, req models.RateRequest) error {
	args := m.Called(ctx, meetingID, req)
	return args.Error(0)
}

func (m *MockAPI) RatingStatus(ctx context.Context, meetingID string) (*models.RatingStatus, error) {
	args := m.Called(ctx, meetingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RatingStatus), args.Error(1)
}
