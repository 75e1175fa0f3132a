// Package session gates live-session entry to the join window and manages
// mid-session disconnect recovery (grace period). The controller owns every
// timer it starts and the live transport state; both are torn down on every
// exit path. Client-side timing is advisory and for display only; the server
// remains authoritative for session completion and abandonment.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"counselgo/client/internal/config"
	"counselgo/client/internal/localization"
	"counselgo/client/internal/models"
	"counselgo/client/internal/pushchannel"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Phase описує стан контролера сесії.
type Phase string

const (
	PhaseNotYetOpen Phase = "not-yet-open"
	PhaseOpen       Phase = "open"
	PhaseActive     Phase = "active"
	PhaseGrace      Phase = "grace-period"
	PhaseEnded      Phase = "ended"
)

var (
	ErrOutsideJoinWindow = errors.New("join window is not open")
	ErrLeaveInProgress   = errors.New("leave already in progress")
)

// API is the slice of the REST client the controller needs. Join/leave are
// best-effort notifications; Complete/CompleteExtended are authoritative.
type API interface {
	MeetingToken(ctx context.Context, meetingID string) (*models.MeetingToken, error)
	NotifyJoin(ctx context.Context, meetingID string) error
	NotifyLeave(ctx context.Context, meetingID string, gracePeriod bool) error
	Complete(ctx context.Context, meetingID string) error
	CompleteExtended(ctx context.Context, meetingID string) error
	SessionStatus(ctx context.Context, meetingID string) (*models.SessionStatus, error)
}

type Controller struct {
	api       API
	localizer *localization.Localizer
	logger    *zap.Logger
	meeting   models.Meeting
	role      string // власна роль: client або counselor
	lang      string

	// now is injectable so window arithmetic is testable.
	now func() time.Time

	// Callbacks toward the presentation layer. All optional.
	OnPhaseChange func(Phase)
	OnCountdown   func(text string)
	OnEndWarning  func(remaining time.Duration)
	OnGraceTick   func(remaining time.Duration)
	OnAlert       func(message string) // recoverable transport alerts

	mu              sync.Mutex
	phase           Phase
	token           *models.MeetingToken
	leaveInProgress bool
	teardownOnce    sync.Once

	countdownTicker *time.Ticker
	countdownStop   chan struct{}
	warningTimer    *time.Timer
	endTimer        *time.Timer
	graceStop       chan struct{}
}

func NewController(api API, meeting models.Meeting, role string, loc *localization.Localizer, logger *zap.Logger) *Controller {
	c := &Controller{
		api:       api,
		localizer: loc,
		logger:    logger,
		meeting:   meeting,
		role:      role,
		lang:      "en",
		now:       time.Now,
		phase:     PhaseNotYetOpen,
	}
	if joinable, _ := Joinable(&meeting, c.now()); joinable {
		c.phase = PhaseOpen
	}
	return c
}

// SetClock замінює годинник (тільки для тестів).
func (c *Controller) SetClock(now func() time.Time) { c.now = now }

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) setPhase(phase Phase) {
	c.mu.Lock()
	if c.phase == phase || c.phase == PhaseEnded {
		c.mu.Unlock()
		return
	}
	c.phase = phase
	callback := c.OnPhaseChange
	c.mu.Unlock()

	c.logger.Info("session phase changed",
		zap.String("meetingId", c.meeting.ID),
		zap.String("phase", string(phase)),
	)
	if callback != nil {
		callback(phase)
	}
}

// Watch запускає щохвилинний перерахунок доступності до відкриття вікна.
// Таймер належить контролеру та гаситься в Exit.
func (c *Controller) Watch() {
	c.mu.Lock()
	if c.countdownTicker != nil {
		c.mu.Unlock()
		return
	}
	ticker := time.NewTicker(config.CountdownTick)
	stop := make(chan struct{})
	c.countdownTicker = ticker
	c.countdownStop = stop
	c.mu.Unlock()

	c.publishCountdown()

	go func() {
		for {
			select {
			case <-ticker.C:
				c.publishCountdown()
			case <-stop:
				return
			}
		}
	}()
}

func (c *Controller) publishCountdown() {
	now := c.now()
	joinable, err := Joinable(&c.meeting, now)
	if err != nil {
		// Зіпсовані дата/час: показуємо закрите вікно, не падаємо.
		c.logger.Warn("countdown skipped, malformed schedule", zap.Error(err))
		return
	}
	if joinable {
		c.setPhase(PhaseOpen)
		return
	}
	if c.OnCountdown != nil {
		c.OnCountdown(c.AvailabilityMessage(now))
	}
}

// Enter joins the live session: fetches transport credentials, notifies the
// server, and arms the end-warning and force-end timers. Valid only inside
// the join window.
func (c *Controller) Enter(ctx context.Context) error {
	now := c.now()
	joinable, err := Joinable(&c.meeting, now)
	if err != nil {
		return err
	}
	if !joinable {
		return ErrOutsideJoinWindow
	}

	token, err := c.api.MeetingToken(ctx, c.meeting.ID)
	if err != nil {
		// Помилка транспорту відновлювана: статус зустрічі не змінюється.
		c.alert("session.transport_error")
		return err
	}
	c.inspectToken(token)

	if err := c.api.NotifyJoin(ctx, c.meeting.ID); err != nil {
		// Best-effort: приєднання триває, сервер наздожене стан.
		c.logger.Warn("join notification failed", zap.Error(err))
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	c.setPhase(PhaseActive)
	c.armSessionTimers(now)
	return nil
}

// armSessionTimers ставить попередження за 5 хвилин до кінця та примусове
// завершення на позначці 45 хвилин.
func (c *Controller) armSessionTimers(now time.Time) {
	start, err := c.meeting.StartTime()
	if err != nil {
		c.logger.Warn("session timers skipped, malformed schedule", zap.Error(err))
		return
	}
	sessionEnd := start.Add(config.SessionDuration)
	warningAt := sessionEnd.Add(-config.EndWarningLead)

	c.mu.Lock()
	defer c.mu.Unlock()

	if d := warningAt.Sub(now); d > 0 {
		c.warningTimer = time.AfterFunc(d, func() {
			if c.Phase() != PhaseActive {
				return
			}
			if c.OnEndWarning != nil {
				c.OnEndWarning(config.EndWarningLead)
			}
		})
	}
	if d := sessionEnd.Sub(now); d > 0 {
		c.endTimer = time.AfterFunc(d, c.forceEnd)
	}
}

// forceEnd спрацьовує на 45-й хвилині, якщо сесію ще не завершено.
func (c *Controller) forceEnd() {
	if phase := c.Phase(); phase != PhaseActive && phase != PhaseGrace {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.api.CompleteExtended(ctx, c.meeting.ID); err != nil {
		c.logger.Warn("force end failed", zap.Error(err))
	}
	c.setPhase(PhaseEnded)
	c.teardown()
}

// Leave повідомляє сервер про вихід. gracePeriod=true означає тимчасовий
// розрив: сервер почне grace-період для другої сторони. Прапорець
// leaveInProgress захищає від подвійного teardown.
func (c *Controller) Leave(ctx context.Context, gracePeriod bool) error {
	c.mu.Lock()
	if c.leaveInProgress {
		c.mu.Unlock()
		return ErrLeaveInProgress
	}
	c.leaveInProgress = true
	c.mu.Unlock()

	if err := c.api.NotifyLeave(ctx, c.meeting.ID, gracePeriod); err != nil {
		c.logger.Warn("leave notification failed", zap.Error(err))
	}

	c.mu.Lock()
	c.leaveInProgress = false
	c.mu.Unlock()

	if !gracePeriod {
		c.setPhase(PhaseEnded)
		c.teardown()
	}
	return nil
}

// Rejoin restores an active session after a temporary disconnect and resyncs
// grace state from the server.
func (c *Controller) Rejoin(ctx context.Context) error {
	if err := c.api.NotifyJoin(ctx, c.meeting.ID); err != nil {
		c.alert("session.transport_error")
		return err
	}
	status, err := c.api.SessionStatus(ctx, c.meeting.ID)
	if err == nil && status.InGracePeriod && status.GraceEndTime != nil {
		c.startGrace(*status.GraceEndTime, "")
		return nil
	}
	c.stopGrace()
	c.setPhase(PhaseActive)
	return nil
}

// EndNow завершує сесію негайно, пропускаючи залишок grace-періоду.
// Це авторитетний виклик завершення.
func (c *Controller) EndNow(ctx context.Context) error {
	if err := c.api.Complete(ctx, c.meeting.ID); err != nil {
		return err
	}
	c.setPhase(PhaseEnded)
	c.teardown()
	return nil
}

// Exit гарантовано гасить усі таймери та прибирає транспорт на будь-якому
// шляху виходу. Якщо Leave у польоті, teardown лишається за ним.
func (c *Controller) Exit() {
	c.mu.Lock()
	inFlight := c.leaveInProgress
	c.mu.Unlock()
	if inFlight {
		return
	}
	c.teardown()
}

func (c *Controller) teardown() {
	c.teardownOnce.Do(func() {
		c.mu.Lock()
		if c.countdownTicker != nil {
			c.countdownTicker.Stop()
			close(c.countdownStop)
			c.countdownTicker = nil
		}
		if c.warningTimer != nil {
			c.warningTimer.Stop()
			c.warningTimer = nil
		}
		if c.endTimer != nil {
			c.endTimer.Stop()
			c.endTimer = nil
		}
		if c.graceStop != nil {
			close(c.graceStop)
			c.graceStop = nil
		}
		c.token = nil
		c.mu.Unlock()
		c.logger.Info("session torn down", zap.String("meetingId", c.meeting.ID))
	})
}

// BindPushChannel підписує контролер на події учасників та grace-періоду.
// Обробники ідемпотентні: подія для чужої зустрічі або після завершення
// ігнорується.
func (c *Controller) BindPushChannel(ch *pushchannel.Channel) {
	ch.On(models.EventGracePeriod, func(data json.RawMessage) {
		var payload models.GracePeriodPayload
		if err := json.Unmarshal(data, &payload); err != nil || payload.MeetingID != c.meeting.ID {
			return
		}
		end := payload.GraceEndTime
		if end.IsZero() {
			// Сервер не надіслав час: запасне значення лише для дисплея.
			end = c.now().Add(config.DefaultGracePeriod)
		}
		c.startGrace(end, payload.Participant)
	})

	ch.On(models.EventParticipantStatus, func(data json.RawMessage) {
		var payload models.ParticipantStatusPayload
		if err := json.Unmarshal(data, &payload); err != nil || payload.MeetingID != c.meeting.ID {
			return
		}
		// Повернення другої сторони знімає паузу.
		if payload.Status == "joined" && payload.Role != c.role && c.Phase() == PhaseGrace {
			c.stopGrace()
			c.setPhase(PhaseActive)
		}
	})

	ch.On(models.EventSessionCompleted, func(data json.RawMessage) {
		var payload models.SessionCompletedPayload
		if err := json.Unmarshal(data, &payload); err != nil || payload.MeetingID != c.meeting.ID {
			return
		}
		c.setPhase(PhaseEnded)
		c.teardown()
	})
}

// startGrace shows the paused state with a live countdown to graceEndTime.
// At zero the paused UI clears by itself; the server's next push settles the
// real outcome.
func (c *Controller) startGrace(graceEnd time.Time, participant string) {
	if c.Phase() == PhaseEnded {
		return
	}
	c.stopGrace()

	c.mu.Lock()
	stop := make(chan struct{})
	c.graceStop = stop
	c.mu.Unlock()

	c.setPhase(PhaseGrace)
	if participant != "" && c.OnAlert != nil {
		c.OnAlert(c.localizer.Sprintf(c.lang, "session.paused", participant))
	}

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				remaining := graceEnd.Sub(c.now())
				if remaining <= 0 {
					if c.OnGraceTick != nil {
						c.OnGraceTick(0)
					}
					// Grace вичерпано без повернення: сервер завершить
					// сесію; пауза знімається без дії користувача.
					c.setPhase(PhaseEnded)
					c.teardown()
					return
				}
				if c.OnGraceTick != nil {
					c.OnGraceTick(remaining)
				}
			case <-stop:
				return
			}
		}
	}()
}

func (c *Controller) stopGrace() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.graceStop != nil {
		close(c.graceStop)
		c.graceStop = nil
	}
}

// inspectToken зазирає в строк дії транспортного токена без перевірки
// підпису; прострочений токен означає відновлювану помилку транспорту.
func (c *Controller) inspectToken(token *models.MeetingToken) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token.Token, claims); err != nil {
		return // непрозорий токен, не JWT: нічого перевіряти
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}
	if exp.Before(c.now()) {
		c.logger.Warn("meeting token already expired", zap.String("meetingId", c.meeting.ID))
		c.alert("session.transport_error")
	}
}

func (c *Controller) alert(key string) {
	if c.OnAlert != nil {
		c.OnAlert(c.localizer.GetString(c.lang, key))
	}
}
