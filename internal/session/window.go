package session

import (
	"time"

	"counselgo/client/internal/config"
	"counselgo/client/internal/models"
)

// Joinable reports whether now falls inside the join window: from five
// minutes before the scheduled start until the scheduled end. Both ends are
// inclusive.
func Joinable(meeting *models.Meeting, now time.Time) (bool, error) {
	start, err := meeting.StartTime()
	if err != nil {
		return false, err
	}
	opens := start.Add(-config.PreJoinWindow)
	closes := start.Add(config.SessionDuration)
	return !now.Before(opens) && !now.After(closes), nil
}

// AvailabilityMessage повертає текст зворотного відліку до відкриття вікна
// або повідомлення про закрите вікно, якщо сесія вже минула.
func (c *Controller) AvailabilityMessage(now time.Time) string {
	start, err := c.meeting.StartTime()
	if err != nil {
		return c.localizer.GetString(c.lang, "join.window_closed")
	}
	opens := start.Add(-config.PreJoinWindow)
	if now.After(start.Add(config.SessionDuration)) {
		return c.localizer.GetString(c.lang, "join.window_closed")
	}
	until := opens.Sub(now)
	if until <= 0 {
		return ""
	}
	// Округлюємо вгору: 61 секунда показується як 2 хвилини.
	minutes := int((until + time.Minute - 1) / time.Minute)
	if minutes >= 60 {
		return c.localizer.Sprintf(c.lang, "join.available_hours", minutes/60, minutes%60)
	}
	return c.localizer.Sprintf(c.lang, "join.available_minutes", minutes)
}
