// Package notify forwards booking notifications to a Telegram chat, so a
// headless agent still reaches its operator when a counselor is assigned or
// a session is confirmed.
package notify

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"counselgo/client/internal/localization"
	"counselgo/client/internal/models"
)

// Sender — мінімальний зріз Bot API, потрібний нотифікатору.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramNotifier struct {
	bot       Sender
	chatID    int64
	localizer *localization.Localizer
	logger    *zap.Logger
	lang      string
}

func NewTelegramNotifier(token string, chatID int64, loc *localization.Localizer, logger *zap.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	logger.Info("telegram notifier authorized", zap.String("account", bot.Self.UserName))
	return newWithSender(bot, chatID, loc, logger), nil
}

func newWithSender(bot Sender, chatID int64, loc *localization.Localizer, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		bot:       bot,
		chatID:    chatID,
		localizer: loc,
		logger:    logger,
		lang:      "en",
	}
}

// BookingEvent перекладає push-подію бронювання в повідомлення оператору.
// Підходить напряму як OnNotification-хук сервісу бронювання.
func (n *TelegramNotifier) BookingEvent(event, message string) {
	text := message
	if text == "" {
		switch event {
		case models.EventCounselorAssigned:
			text = n.localizer.GetString(n.lang, "booking.counselor_assigned")
		default:
			text = event
		}
	}
	n.Notify(text)
}

func (n *TelegramNotifier) Notify(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Warn("telegram notification failed", zap.Error(err))
	}
}
