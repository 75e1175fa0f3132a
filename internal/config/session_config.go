package config

import "time"

const (
	// Join window
	PreJoinWindow   = 5 * time.Minute
	SessionDuration = 45 * time.Minute
	EndWarningLead  = 5 * time.Minute

	// Abandonment
	AbandonThreshold = 15 * time.Minute
	NoShowReason     = "no one joined within 15 minutes of scheduled time"

	// Grace period. Серверний graceEndTime авторитетний; це лише запасне
	// значення для відображення, коли подія прийшла без часу.
	DefaultGracePeriod = 5 * time.Minute

	// Push channel reconnection
	ReconnectAttempts = 5
	ReconnectDelay    = 1 * time.Second

	// Countdown refresh
	CountdownTick = 1 * time.Minute
)
