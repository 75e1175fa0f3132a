// Package stubserver is a self-contained booking backend over an in-memory
// store: the full REST surface the client consumes plus the websocket push
// channel. It exists for local development and integration tests; it keeps
// the same state machine and push contract as the production service.
package stubserver

import (
	"errors"
	"net/http"
	"time"

	"counselgo/client/internal/config"
	"counselgo/client/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var errMeetingNotFound = errors.New("meeting not found")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Дозволяє з'єднання з будь-якого домену. Лише для локальної розробки!
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	engine     *gin.Engine
	hub        *Hub
	store      *memoryStore
	logger     *zap.Logger
	counselors []models.Counselor
	grace      time.Duration
	secret     []byte
	now        func() time.Time
}

func New(logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine: gin.New(),
		hub:    NewHub(logger),
		store:  newMemoryStore(),
		logger: logger,
		counselors: []models.Counselor{
			{ID: "c-ivanna", Name: "Ivanna", Specialty: "couples", Capacity: 5},
			{ID: "c-oleh", Name: "Oleh", Specialty: "family", Capacity: 5},
			{ID: "c-maria", Name: "Maria", Specialty: "individual", Capacity: 3},
		},
		grace:  config.DefaultGracePeriod,
		secret: []byte("counselgo-stub-secret"),
		now:    time.Now,
	}
	s.routes()
	return s
}

// SetGracePeriod скорочує grace-період (тільки для тестів).
func (s *Server) SetGracePeriod(d time.Duration) { s.grace = d }

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) Run(addr string) error {
	s.logger.Info("stub backend listening", zap.String("addr", addr))
	return s.engine.Run(addr)
}

func (s *Server) routes() {
	s.engine.GET("/auth/anon", s.anonSession)
	s.engine.GET("/push", s.servePush)

	authed := s.engine.Group("/", s.requireAuth)
	{
		authed.POST("/initiate", s.initiate)
		authed.GET("/active-booking", s.activeBooking)
		authed.GET("/available-slots", s.availableSlots)
		authed.POST("/select-time", s.selectTime)
		authed.POST("/cancel", s.cancel)

		authed.GET("/meetings/requests", s.pendingRequests)
		authed.GET("/meetings/requests/count", s.pendingCount)
		authed.GET("/counselors/active", s.activeCounselors)
		authed.POST("/assign-counselor", s.assignCounselor)

		authed.GET("/counselor/meetings", s.counselorMeetings)
		authed.GET("/counselor/pending", s.counselorPending)
		authed.POST("/accept", s.accept)
		authed.GET("/counselor/active-session", s.counselorActiveSession)

		authed.GET("/client/history", s.clientHistory)
		authed.GET("/counselor/history", s.counselorHistory)
		authed.POST("/rate/:id", s.rate)
		authed.GET("/rate/status/:id", s.ratingStatus)

		authed.GET("/meeting-token/:id", s.meetingToken)
		authed.POST("/participant/:id/join", s.participantJoin)
		authed.POST("/participant/:id/leave", s.participantLeave)
		authed.POST("/complete/:id", s.complete)
		authed.POST("/complete-extended/:id", s.complete)
		authed.POST("/report-no-show", s.reportNoShow)
		authed.GET("/session/:id/status", s.sessionStatus)
	}
}

// servePush оновлює HTTP-з'єднання до WebSocket та передає його хабу.
// Автентифікація — першим кадром authenticate, а не заголовком.
func (s *Server) servePush(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	s.hub.HandleConnection(conn)
}

// notifyParties шле подію обом сторонам зустрічі.
func (s *Server) notifyParties(meeting *models.Meeting, event string, payload any) {
	s.hub.Emit(models.Identity{UserID: meeting.ClientID, Role: models.RoleClient}, event, payload)
	if meeting.CounselorID != "" {
		s.hub.Emit(models.Identity{UserID: meeting.CounselorID, Role: models.RoleCounselor}, event, payload)
	}
}

func (s *Server) notifyAdmins(updateType string) {
	s.hub.EmitRole(models.RoleAdmin, models.EventAdminUpdate, models.AdminUpdatePayload{Type: updateType})
}

// --- Booking ---

func (s *Server) initiate(c *gin.Context) {
	identity := callerIdentity(c)
	var req models.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if _, ok := s.store.activeFor(identity.UserID, models.RoleClient); ok {
		c.JSON(http.StatusConflict, gin.H{"error": "an active booking already exists"})
		return
	}

	now := s.now()
	rec := &meetingRecord{Meeting: models.Meeting{
		ID:               uuid.New().String(),
		MeetingType:      req.MeetingType,
		IssueDescription: req.IssueDescription,
		Status:           models.StatusRequestPending,
		ClientID:         identity.UserID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}}
	s.store.put(rec)

	s.logger.Info("booking initiated", zap.String("meetingId", rec.ID))
	s.notifyAdmins("new_booking")
	c.JSON(http.StatusCreated, rec.Meeting)
}

func (s *Server) activeBooking(c *gin.Context) {
	identity := callerIdentity(c)
	rec, ok := s.store.activeFor(identity.UserID, models.RoleClient)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active booking"})
		return
	}
	c.JSON(http.StatusOK, rec.Meeting)
}

// availableSlots віддає годинну сітку 09:00–17:00 на вказану дату;
// зайняті живими зустрічами слоти позначаються недоступними.
func (s *Server) availableSlots(c *gin.Context) {
	date := c.Query("date")
	counselorID := c.Query("counselorId")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required"})
		return
	}
	var slots []models.TimeSlot
	for hour := 9; hour <= 17; hour++ {
		at := time.Date(0, 1, 1, hour, 0, 0, 0, time.UTC).Format("15:04")
		slots = append(slots, models.TimeSlot{
			Date:      date,
			Time:      at,
			Available: !s.store.slotTaken(counselorID, date, at, ""),
		})
	}
	c.JSON(http.StatusOK, slots)
}

func (s *Server) selectTime(c *gin.Context) {
	var req models.SelectTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	meeting, err := s.store.update(req.MeetingID, func(rec *meetingRecord) error {
		if err := models.GuardTransition(models.ActionSelectTime, rec.Status); err != nil {
			return err
		}
		if s.store.slotTakenLocked(rec.CounselorID, req.MeetingDate, req.MeetingTime, rec.ID) {
			return errSlotTaken
		}
		rec.MeetingDate = req.MeetingDate
		rec.MeetingTime = req.MeetingTime
		rec.Status = models.StatusTimeSelected
		return nil
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.notifyParties(meeting, models.EventBookingUpdated, gin.H{"meetingId": meeting.ID})
	c.JSON(http.StatusOK, meeting)
}

func (s *Server) cancel(c *gin.Context) {
	var req models.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	meeting, err := s.store.update(req.MeetingID, func(rec *meetingRecord) error {
		if err := models.GuardTransition(models.ActionCancel, rec.Status); err != nil {
			return err
		}
		rec.Status = models.StatusCancelled
		rec.CancellationReason = req.Reason
		return nil
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.logger.Info("booking cancelled", zap.String("meetingId", meeting.ID))
	s.notifyParties(meeting, models.EventBookingUpdated, gin.H{"meetingId": meeting.ID})
	s.notifyAdmins("new_booking")
	c.JSON(http.StatusOK, meeting)
}

// --- Admin ---

func (s *Server) pendingRequests(c *gin.Context) {
	records := s.store.find(func(rec *meetingRecord) bool {
		return rec.Status == models.StatusRequestPending
	})
	meetings := make([]models.Meeting, 0, len(records))
	for _, rec := range records {
		meetings = append(meetings, rec.Meeting)
	}
	c.JSON(http.StatusOK, meetings)
}

func (s *Server) pendingCount(c *gin.Context) {
	records := s.store.find(func(rec *meetingRecord) bool {
		return rec.Status == models.StatusRequestPending
	})
	c.JSON(http.StatusOK, models.PendingCount{Count: len(records)})
}

// activeCounselors віддає консультантів із вільною місткістю.
func (s *Server) activeCounselors(c *gin.Context) {
	out := make([]models.Counselor, 0, len(s.counselors))
	for _, counselor := range s.counselors {
		active := len(s.store.find(func(rec *meetingRecord) bool {
			return rec.CounselorID == counselor.ID && !models.Terminal(rec.Status)
		}))
		if active >= counselor.Capacity {
			continue
		}
		counselor.ActiveClients = active
		out = append(out, counselor)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) assignCounselor(c *gin.Context) {
	var req models.AssignCounselorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var counselorName string
	for _, counselor := range s.counselors {
		if counselor.ID == req.CounselorID {
			counselorName = counselor.Name
		}
	}
	if counselorName == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "counselor not found"})
		return
	}

	meeting, err := s.store.update(req.MeetingID, func(rec *meetingRecord) error {
		if err := models.GuardTransition(models.ActionAssignCounselor, rec.Status); err != nil {
			return err
		}
		rec.CounselorID = req.CounselorID
		rec.Status = models.StatusCounselorAssigned
		return nil
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.logger.Info("counselor assigned",
		zap.String("meetingId", meeting.ID),
		zap.String("counselorId", req.CounselorID),
	)
	s.hub.Emit(models.Identity{UserID: meeting.ClientID, Role: models.RoleClient},
		models.EventCounselorAssigned, models.CounselorAssignedPayload{
			MeetingID:     meeting.ID,
			CounselorID:   req.CounselorID,
			CounselorName: counselorName,
		})
	s.notifyAdmins("new_booking")
	c.JSON(http.StatusOK, meeting)
}

// --- Counselor ---

func (s *Server) counselorMeetings(c *gin.Context) {
	identity := callerIdentity(c)
	records := s.store.find(func(rec *meetingRecord) bool {
		return rec.CounselorID == identity.UserID && !models.Terminal(rec.Status)
	})
	meetings := make([]models.Meeting, 0, len(records))
	for _, rec := range records {
		meetings = append(meetings, rec.Meeting)
	}
	c.JSON(http.StatusOK, meetings)
}

func (s *Server) counselorPending(c *gin.Context) {
	identity := callerIdentity(c)
	records := s.store.find(func(rec *meetingRecord) bool {
		return rec.CounselorID == identity.UserID && rec.Status == models.StatusTimeSelected
	})
	meetings := make([]models.Meeting, 0, len(records))
	for _, rec := range records {
		meetings = append(meetings, rec.Meeting)
	}
	c.JSON(http.StatusOK, meetings)
}

func (s *Server) accept(c *gin.Context) {
	var req models.AcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	meeting, err := s.store.update(req.MeetingID, func(rec *meetingRecord) error {
		return s.confirmLocked(rec)
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.notifyParties(meeting, models.EventMeetingConfirmed, models.MeetingConfirmedPayload{
		MeetingID:   meeting.ID,
		MeetingDate: meeting.MeetingDate,
		MeetingTime: meeting.MeetingTime,
	})
	c.JSON(http.StatusOK, meeting)
}

func (s *Server) confirmLocked(rec *meetingRecord) error {
	if err := models.GuardTransition(models.ActionConfirm, rec.Status); err != nil {
		return err
	}
	rec.Status = models.StatusConfirmed
	return nil
}

func (s *Server) counselorActiveSession(c *gin.Context) {
	identity := callerIdentity(c)
	rec, ok := s.store.activeFor(identity.UserID, models.RoleCounselor)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}
	c.JSON(http.StatusOK, rec.Meeting)
}

// --- History and feedback ---

func (s *Server) clientHistory(c *gin.Context) {
	identity := callerIdentity(c)
	records := s.store.find(func(rec *meetingRecord) bool {
		return rec.ClientID == identity.UserID && models.Terminal(rec.Status)
	})
	meetings := make([]models.Meeting, 0, len(records))
	for _, rec := range records {
		meetings = append(meetings, rec.Meeting)
	}
	c.JSON(http.StatusOK, meetings)
}

func (s *Server) counselorHistory(c *gin.Context) {
	identity := callerIdentity(c)
	records := s.store.find(func(rec *meetingRecord) bool {
		return rec.CounselorID == identity.UserID && models.Terminal(rec.Status)
	})
	meetings := make([]models.Meeting, 0, len(records))
	for _, rec := range records {
		meetings = append(meetings, rec.Meeting)
	}
	c.JSON(http.StatusOK, meetings)
}

func (s *Server) rate(c *gin.Context) {
	var req models.RateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Score < 1 || req.Score > 5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "score must be between 1 and 5"})
		return
	}

	_, err := s.store.update(c.Param("id"), func(rec *meetingRecord) error {
		if rec.Status != models.StatusCompleted {
			return errNotCompleted
		}
		if rec.Rating != nil {
			return errAlreadyRated
		}
		rec.Rating = &req
		return nil
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) ratingStatus(c *gin.Context) {
	rec, ok := s.store.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errMeetingNotFound.Error()})
		return
	}
	status := models.RatingStatus{}
	if rec.Rating != nil {
		status.Rated = true
		status.Score = rec.Rating.Score
	}
	c.JSON(http.StatusOK, status)
}

// --- Live session ---

func (s *Server) meetingToken(c *gin.Context) {
	identity := callerIdentity(c)
	rec, ok := s.store.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errMeetingNotFound.Error()})
		return
	}
	if rec.Status != models.StatusConfirmed {
		c.JSON(http.StatusConflict, gin.H{"error": "meeting is not confirmed"})
		return
	}

	token, err := s.issueToken(identity.UserID, identity.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
		return
	}
	c.JSON(http.StatusOK, models.MeetingToken{
		Token:    token,
		RoomID:   "room-" + rec.ID,
		Provider: "stub",
	})
}

func (s *Server) participantJoin(c *gin.Context) {
	identity := callerIdentity(c)
	meeting, err := s.store.update(c.Param("id"), func(rec *meetingRecord) error {
		rec.setJoined(identity.Role, true)
		// Повернення учасника знімає його grace-період.
		if rec.GraceEnd != nil && rec.GraceRole == identity.Role {
			rec.GraceEnd = nil
			rec.GraceRole = ""
		}
		return nil
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.notifyParties(meeting, models.EventParticipantStatus, models.ParticipantStatusPayload{
		MeetingID: meeting.ID,
		Role:      identity.Role,
		Status:    "joined",
		Timestamp: s.now(),
	})
	c.Status(http.StatusNoContent)
}

func (s *Server) participantLeave(c *gin.Context) {
	identity := callerIdentity(c)
	var req models.LeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var graceEnd time.Time
	meeting, err := s.store.update(c.Param("id"), func(rec *meetingRecord) error {
		rec.setJoined(identity.Role, false)
		if req.GracePeriod {
			graceEnd = s.now().Add(s.grace)
			rec.GraceEnd = &graceEnd
			rec.GraceRole = identity.Role
		}
		return nil
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	if req.GracePeriod {
		s.notifyParties(meeting, models.EventGracePeriod, models.GracePeriodPayload{
			MeetingID:    meeting.ID,
			GraceEndTime: graceEnd,
			Participant:  identity.Role,
		})
		s.armGraceExpiry(meeting.ID, graceEnd)
	} else {
		s.notifyParties(meeting, models.EventParticipantStatus, models.ParticipantStatusPayload{
			MeetingID: meeting.ID,
			Role:      identity.Role,
			Status:    "left",
			Timestamp: s.now(),
		})
	}
	c.Status(http.StatusNoContent)
}

// armGraceExpiry завершує сесію, якщо учасник не повернувся до дедлайну.
// Застарілий таймер (grace вже знято чи перезапущено) нічого не робить.
func (s *Server) armGraceExpiry(meetingID string, graceEnd time.Time) {
	time.AfterFunc(time.Until(graceEnd), func() {
		meeting, err := s.store.update(meetingID, func(rec *meetingRecord) error {
			if rec.GraceEnd == nil || !rec.GraceEnd.Equal(graceEnd) {
				return errStaleGrace
			}
			if err := models.GuardTransition(models.ActionComplete, rec.Status); err != nil {
				return err
			}
			rec.Status = models.StatusCompleted
			rec.GraceEnd = nil
			rec.GraceRole = ""
			return nil
		})
		if err != nil {
			return
		}
		s.logger.Info("grace period expired, session completed", zap.String("meetingId", meetingID))
		s.notifyParties(meeting, models.EventSessionCompleted, models.SessionCompletedPayload{MeetingID: meetingID})
		s.notifyParties(meeting, models.EventBookingUpdated, gin.H{"meetingId": meetingID})
	})
}

func (s *Server) complete(c *gin.Context) {
	meeting, err := s.store.update(c.Param("id"), func(rec *meetingRecord) error {
		if err := models.GuardTransition(models.ActionComplete, rec.Status); err != nil {
			return err
		}
		rec.Status = models.StatusCompleted
		rec.GraceEnd = nil
		rec.GraceRole = ""
		return nil
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.logger.Info("session completed", zap.String("meetingId", meeting.ID))
	s.notifyParties(meeting, models.EventSessionCompleted, models.SessionCompletedPayload{MeetingID: meeting.ID})
	s.notifyParties(meeting, models.EventBookingUpdated, gin.H{"meetingId": meeting.ID})
	c.JSON(http.StatusOK, meeting)
}

func (s *Server) reportNoShow(c *gin.Context) {
	identity := callerIdentity(c)
	var req models.ReportNoShowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	meeting, err := s.store.update(req.MeetingID, func(rec *meetingRecord) error {
		if err := models.GuardTransition(models.ActionAbandon, rec.Status); err != nil {
			return err
		}
		rec.Status = models.StatusAbandoned
		rec.NoShowReason = req.NoShowReason
		rec.NoShowReportedBy = identity.Role
		return nil
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.logger.Info("meeting abandoned",
		zap.String("meetingId", meeting.ID),
		zap.String("reportedBy", identity.Role),
	)
	s.notifyParties(meeting, models.EventBookingUpdated, gin.H{"meetingId": meeting.ID})
	s.notifyAdmins("new_booking")
	c.JSON(http.StatusOK, meeting)
}

func (s *Server) sessionStatus(c *gin.Context) {
	rec, ok := s.store.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errMeetingNotFound.Error()})
		return
	}
	status := models.SessionStatus{
		MeetingID:       rec.ID,
		Status:          rec.Status,
		ClientJoined:    rec.ClientJoined,
		CounselorJoined: rec.CounselorJoined,
	}
	if rec.GraceEnd != nil {
		status.InGracePeriod = true
		status.GraceEndTime = rec.GraceEnd
	}
	c.JSON(http.StatusOK, status)
}

// --- Errors ---

var (
	errSlotTaken    = errors.New("slot already taken")
	errNotCompleted = errors.New("meeting is not completed")
	errAlreadyRated = errors.New("meeting already rated")
	errStaleGrace   = errors.New("grace period no longer active")
)

func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errMeetingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, errSlotTaken), errors.Is(err, errAlreadyRated),
		errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, errNotCompleted), errors.Is(err, errStaleGrace):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
