package notify

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"counselgo/client/internal/localization"
	"counselgo/client/internal/models"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func TestBookingEvent_LocalizedFallback(t *testing.T) {
	loc, err := localization.NewDefault()
	assert.NoError(t, err)

	sender := new(MockSender)
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 42 &&
			msg.Text == "A counselor has been assigned to your request"
	})).Return(tgbotapi.Message{}, nil)

	n := newWithSender(sender, 42, loc, zap.NewNop())
	n.BookingEvent(models.EventCounselorAssigned, "")

	sender.AssertExpectations(t)
}

func TestBookingEvent_ExplicitMessageWins(t *testing.T) {
	loc, err := localization.NewDefault()
	assert.NoError(t, err)

	sender := new(MockSender)
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.Text == "custom text"
	})).Return(tgbotapi.Message{}, nil)

	n := newWithSender(sender, 42, loc, zap.NewNop())
	n.BookingEvent(models.EventMeetingConfirmed, "custom text")

	sender.AssertExpectations(t)
}
