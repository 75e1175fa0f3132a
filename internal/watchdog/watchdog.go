// Package watchdog sweeps confirmed meetings where nobody showed up. A
// meeting whose start is more than fifteen minutes past with neither
// participant joined is reported as a no-show exactly once; the server then
// marks it abandoned and frees the slot.
package watchdog

import (
	"context"
	"sync"
	"time"

	"counselgo/client/internal/config"
	"counselgo/client/internal/models"

	"go.uber.org/zap"
)

type API interface {
	SessionStatus(ctx context.Context, meetingID string) (*models.SessionStatus, error)
	ReportNoShow(ctx context.Context, req models.ReportNoShowRequest) error
}

// MeetingSource віддає поточну підтверджену зустріч для перевірки.
// nil означає, що перевіряти нічого.
type MeetingSource func() *models.Meeting

type Watchdog struct {
	api      API
	source   MeetingSource
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	reported map[string]bool
	stop     chan struct{}
}

func New(api API, source MeetingSource, logger *zap.Logger) *Watchdog {
	return &Watchdog{
		api:      api,
		source:   source,
		logger:   logger,
		interval: time.Minute,
		now:      time.Now,
		reported: make(map[string]bool),
	}
}

// SetClock замінює годинник (тільки для тестів).
func (w *Watchdog) SetClock(now func() time.Time) { w.now = now }

// Start launches the periodic sweep. Stop with Stop or by cancelling ctx.
func (w *Watchdog) Start(ctx context.Context) {
	w.mu.Lock()
	if w.stop != nil {
		w.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	w.stop = stop
	w.mu.Unlock()

	w.logger.Info("abandonment watchdog started", zap.Duration("interval", w.interval))
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.RunOnce(ctx)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stop != nil {
		close(w.stop)
		w.stop = nil
	}
}

// RunOnce performs a single sweep. Exported so the caller can force an
// immediate check on startup.
func (w *Watchdog) RunOnce(ctx context.Context) {
	meeting := w.source()
	if meeting == nil || meeting.Status != models.StatusConfirmed {
		return
	}

	start, err := meeting.StartTime()
	if err != nil {
		// Зіпсований розклад не валить нагляд: лог і пропуск.
		w.logger.Warn("watchdog skipped meeting with malformed schedule",
			zap.String("meetingId", meeting.ID), zap.Error(err))
		return
	}

	now := w.now()
	// Спрацьовуємо лише всередині сесійного вікна: після нього сервер
	// вже сам закрив зустріч.
	if !now.After(start.Add(config.AbandonThreshold)) || now.After(start.Add(config.SessionDuration)) {
		return
	}

	w.mu.Lock()
	if w.reported[meeting.ID] {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	status, err := w.api.SessionStatus(ctx, meeting.ID)
	if err != nil {
		w.logger.Warn("watchdog status check failed", zap.Error(err))
		return
	}
	if status.ClientJoined || status.CounselorJoined {
		return
	}

	if err := w.api.ReportNoShow(ctx, models.ReportNoShowRequest{
		MeetingID:    meeting.ID,
		NoShowReason: config.NoShowReason,
	}); err != nil {
		w.logger.Warn("no-show report failed", zap.String("meetingId", meeting.ID), zap.Error(err))
		return
	}

	w.mu.Lock()
	w.reported[meeting.ID] = true
	w.mu.Unlock()
	w.logger.Info("meeting reported as no-show", zap.String("meetingId", meeting.ID))
}
