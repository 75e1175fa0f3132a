package session_test

import (
	"context"

	"counselgo/client/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) MeetingToken(ctx context.Context, meetingID string) (*models.MeetingToken, error) {
	args := m.Called(ctx, meetingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MeetingToken), args.Error(1)
}

func (m *MockAPI) NotifyJoin(ctx context.Context, meetingID string) error {
	args := m.Called(ctx, meetingID)
	return args.Error(0)
}

func (m *MockAPI) NotifyLeave(ctx context.Context, meetingID string, gracePeriod bool) error {
	args := m.Called(ctx, meetingID, gracePeriod)
	return args.Error(0)
}

func (m *MockAPI) Complete(ctx context.Context, meetingID string) error {
	args := m.Called(ctx, meetingID)
	return args.Error(0)
}

func (m *MockAPI) CompleteExtended(ctx context.Context, meetingID string) error {
	args := m.Called(ctx, meetingID)
	return args.Error(0)
}

func (m *MockAPI) SessionStatus(ctx context.Context, meetingID string) (*models.SessionStatus, error) {
	args := m.Called(ctx, meetingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SessionStatus), args.Error(1)
}
