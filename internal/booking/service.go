// Package booking drives the client's view of the meeting lifecycle and
// gates which actions are available for the current status. The server stays
// authoritative: push events only trigger re-fetches of the real record.
package booking

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"counselgo/client/internal/models"
	"counselgo/client/internal/pushchannel"
	"counselgo/client/internal/store"

	"go.uber.org/zap"
)

// API is the slice of the REST client the booking service needs.
type API interface {
	Initiate(ctx context.Context, req models.InitiateRequest) (*models.Meeting, error)
	ActiveBooking(ctx context.Context) (*models.Meeting, error)
	AvailableSlots(ctx context.Context, date, counselorID string) ([]models.TimeSlot, error)
	SelectTime(ctx context.Context, req models.SelectTimeRequest) (*models.Meeting, error)
	Cancel(ctx context.Context, req models.CancelRequest) (*models.Meeting, error)
	PendingRequests(ctx context.Context) ([]models.Meeting, error)
	PendingCount(ctx context.Context) (int, error)
	ActiveCounselors(ctx context.Context) ([]models.Counselor, error)
	AssignCounselor(ctx context.Context, req models.AssignCounselorRequest) (*models.Meeting, error)
	Accept(ctx context.Context, meetingID string) (*models.Meeting, error)
	ClientHistory(ctx context.Context) ([]models.Meeting, error)
	CounselorHistory(ctx context.Context) ([]models.Meeting, error)
	Rate(ctx context.Context, meetingID string, req models.RateRequest) error
	RatingStatus(ctx context.Context, meetingID string) (*models.RatingStatus, error)
}

type Service struct {
	api    API
	store  *store.Store
	logger *zap.Logger

	// OnNotification, якщо задано, отримує користувацькі повідомлення
	// (наприклад "консультанта призначено").
	OnNotification func(event string, message string)
	// OnAdminUpdate fires on admin_update pushes so admin views re-fetch
	// their lists.
	OnAdminUpdate func(updateType string)

	refetchTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func NewService(api API, st *store.Store, logger *zap.Logger) *Service {
	return &Service{
		api:            api,
		store:          st,
		logger:         logger,
		refetchTimeout: 10 * time.Second,
	}
}

// Close marks the service as torn down; push handlers arriving afterwards
// no-op safely.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Service) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Initiate creates a new meeting request. The server enforces the one
// active booking per client rule.
func (s *Service) Initiate(ctx context.Context, meetingType models.MeetingType, issue string) (*models.Meeting, error) {
	meeting, err := s.api.Initiate(ctx, models.InitiateRequest{
		MeetingType:      meetingType,
		IssueDescription: issue,
	})
	if err != nil {
		return nil, err
	}
	s.store.SetActiveMeeting(meeting)
	s.logger.Info("booking initiated", zap.String("meetingId", meeting.ID))
	return meeting, nil
}

// LoadActiveBooking fetches the caller's current non-terminal meeting and
// refreshes the cache. (nil, nil) means no active booking.
func (s *Service) LoadActiveBooking(ctx context.Context) (*models.Meeting, error) {
	meeting, err := s.api.ActiveBooking(ctx)
	if err != nil {
		return nil, err
	}
	s.store.SetActiveMeeting(meeting)
	return meeting, nil
}

func (s *Service) AvailableSlots(ctx context.Context, date, counselorID string) ([]models.TimeSlot, error) {
	return s.api.AvailableSlots(ctx, date, counselorID)
}

// SelectTime is valid only when the cached status is counselor_assigned.
// Slot availability itself is validated by the server.
func (s *Service) SelectTime(ctx context.Context, meetingID, date, timeOfDay string) (*models.Meeting, error) {
	if cached := s.store.ActiveMeeting(); cached != nil && cached.ID == meetingID {
		if err := models.GuardTransition(models.ActionSelectTime, cached.Status); err != nil {
			return nil, err
		}
	}
	meeting, err := s.api.SelectTime(ctx, models.SelectTimeRequest{
		MeetingID:   meetingID,
		MeetingDate: date,
		MeetingTime: timeOfDay,
	})
	if err != nil {
		return nil, err
	}
	s.store.SetActiveMeeting(meeting)
	s.logger.Info("time selected",
		zap.String("meetingId", meetingID),
		zap.String("date", date),
		zap.String("time", timeOfDay),
	)
	return meeting, nil
}

// Cancel is valid from any non-terminal status; reason is optional.
func (s *Service) Cancel(ctx context.Context, meetingID, reason string) (*models.Meeting, error) {
	if cached := s.store.ActiveMeeting(); cached != nil && cached.ID == meetingID {
		if err := models.GuardTransition(models.ActionCancel, cached.Status); err != nil {
			return nil, err
		}
	}
	meeting, err := s.api.Cancel(ctx, models.CancelRequest{MeetingID: meetingID, Reason: reason})
	if err != nil {
		return nil, err
	}
	// Скасована зустріч термінальна: кеш активного бронювання очищується.
	s.store.SetActiveMeeting(nil)
	s.logger.Info("booking cancelled", zap.String("meetingId", meetingID))
	return meeting, nil
}

// --- Admin operations ---

func (s *Service) PendingRequests(ctx context.Context) ([]models.Meeting, error) {
	return s.api.PendingRequests(ctx)
}

func (s *Service) PendingCount(ctx context.Context) (int, error) {
	return s.api.PendingCount(ctx)
}

func (s *Service) ActiveCounselors(ctx context.Context) ([]models.Counselor, error) {
	return s.api.ActiveCounselors(ctx)
}

// AssignCounselor is admin-only and valid only from request_pending. The
// capacity check belongs to the server; its rejection message is surfaced
// verbatim.
func (s *Service) AssignCounselor(ctx context.Context, meeting *models.Meeting, counselorID string) (*models.Meeting, error) {
	if meeting != nil {
		if err := models.GuardTransition(models.ActionAssignCounselor, meeting.Status); err != nil {
			return nil, err
		}
	}
	meetingID := ""
	if meeting != nil {
		meetingID = meeting.ID
	}
	updated, err := s.api.AssignCounselor(ctx, models.AssignCounselorRequest{
		MeetingID:   meetingID,
		CounselorID: counselorID,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("counselor assigned",
		zap.String("meetingId", meetingID),
		zap.String("counselorId", counselorID),
	)
	return updated, nil
}

// --- Counselor operations ---

func (s *Service) Accept(ctx context.Context, meetingID string) (*models.Meeting, error) {
	return s.api.Accept(ctx, meetingID)
}

// --- History and feedback ---

func (s *Service) History(ctx context.Context, role string) ([]models.Meeting, error) {
	if role == models.RoleCounselor {
		return s.api.CounselorHistory(ctx)
	}
	return s.api.ClientHistory(ctx)
}

func (s *Service) Rate(ctx context.Context, meetingID string, score int, comment string) error {
	return s.api.Rate(ctx, meetingID, models.RateRequest{Score: score, Comment: comment})
}

func (s *Service) RatingStatus(ctx context.Context, meetingID string) (*models.RatingStatus, error) {
	return s.api.RatingStatus(ctx, meetingID)
}

// --- Push wiring ---

// BindPushChannel підписує сервіс на події каналу. Будь-яка подія, що
// стосується активної зустрічі, викликає негайний re-fetch; payload — лише
// сигнал інвалідації.
func (s *Service) BindPushChannel(ch *pushchannel.Channel) {
	ch.On(models.EventBookingUpdated, func(json.RawMessage) {
		s.refetch()
	})

	ch.On(models.EventCounselorAssigned, func(data json.RawMessage) {
		var payload models.CounselorAssignedPayload
		if err := json.Unmarshal(data, &payload); err == nil && s.OnNotification != nil {
			s.OnNotification(models.EventCounselorAssigned, "A counselor has been assigned to your request")
		}
		s.refetch()
	})

	ch.On(models.EventMeetingConfirmed, func(data json.RawMessage) {
		// Дата/час явно приходять у payload: дозволено оптимістично
		// показати їх до завершення re-fetch.
		var payload models.MeetingConfirmedPayload
		if err := json.Unmarshal(data, &payload); err == nil {
			if cached := s.store.ActiveMeeting(); cached != nil && cached.ID == payload.MeetingID {
				cached.MeetingDate = payload.MeetingDate
				cached.MeetingTime = payload.MeetingTime
				s.store.SetActiveMeeting(cached)
			}
		}
		s.refetch()
	})

	ch.On(models.EventSessionCompleted, func(json.RawMessage) {
		s.refetch()
	})

	ch.On(models.EventAdminUpdate, func(data json.RawMessage) {
		if s.OnAdminUpdate == nil {
			return
		}
		var payload models.AdminUpdatePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return
		}
		s.OnAdminUpdate(payload.Type)
	})
}

// refetch тягне авторитетний запис. Перекриття двох re-fetch безпечне:
// останній запис у кеш виграє, а наступна подія виправить минуще старіння.
func (s *Service) refetch() {
	if s.isClosed() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.refetchTimeout)
	defer cancel()

	meeting, err := s.api.ActiveBooking(ctx)
	if err != nil {
		s.logger.Warn("active booking re-fetch failed", zap.Error(err))
		return
	}
	if s.isClosed() {
		return
	}
	s.store.SetActiveMeeting(meeting)
}
