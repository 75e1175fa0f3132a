package stubserver_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"counselgo/client/internal/apiclient"
	"counselgo/client/internal/models"
	"counselgo/client/internal/pushchannel"
	"counselgo/client/internal/stubserver"
	"counselgo/client/internal/watchdog"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type party struct {
	api     *apiclient.Client
	session *apiclient.AnonSession
}

// startBackend spins the stub up behind httptest and logs three parties in.
func startBackend(t *testing.T) (server *stubserver.Server, baseURL string, client, counselor, admin party) {
	t.Helper()
	server = stubserver.New(zap.NewNop())
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	baseURL = ts.URL

	login := func(role string) party {
		api := apiclient.New(ts.URL, zap.NewNop())
		session, err := api.NewAnonSession(context.Background(), role)
		assert.NoError(t, err)
		api.TokenProvider = func() string { return session.Token }
		return party{api: api, session: session}
	}
	return server, baseURL, login(models.RoleClient), login(models.RoleCounselor), login(models.RoleAdmin)
}

func connectPush(t *testing.T, baseURL string, session *apiclient.AnonSession) *pushchannel.Channel {
	t.Helper()
	ch := pushchannel.New("ws"+strings.TrimPrefix(baseURL, "http")+"/push", zap.NewNop())
	t.Cleanup(ch.Disconnect)
	assert.NoError(t, ch.Connect(context.Background(),
		models.Identity{UserID: session.UserID, Role: session.Role}))
	return ch
}

func awaitEvent(t *testing.T, events <-chan json.RawMessage, name string) json.RawMessage {
	t.Helper()
	select {
	case data := <-events:
		return data
	case <-time.After(3 * time.Second):
		t.Fatalf("%s event never arrived", name)
		return nil
	}
}

// TestFullBookingLifecycle drives a booking from the initial request through
// assignment, scheduling, confirmation and a live session, checking the push
// events each side receives along the way.
func TestFullBookingLifecycle(t *testing.T) {
	server, baseURL, client, counselor, admin := startBackend(t)
	server.SetGracePeriod(400 * time.Millisecond)
	ctx := context.Background()

	clientPush := connectPush(t, baseURL, client.session)
	adminPush := connectPush(t, baseURL, admin.session)

	assigned := make(chan json.RawMessage, 1)
	confirmed := make(chan json.RawMessage, 1)
	grace := make(chan json.RawMessage, 1)
	completed := make(chan json.RawMessage, 1)
	adminUpdates := make(chan json.RawMessage, 4)
	clientPush.On(models.EventCounselorAssigned, func(data json.RawMessage) { assigned <- data })
	clientPush.On(models.EventMeetingConfirmed, func(data json.RawMessage) { confirmed <- data })
	clientPush.On(models.EventGracePeriod, func(data json.RawMessage) { grace <- data })
	clientPush.On(models.EventSessionCompleted, func(data json.RawMessage) { completed <- data })
	adminPush.On(models.EventAdminUpdate, func(data json.RawMessage) { adminUpdates <- data })

	// Запит від клієнта
	meeting, err := client.api.Initiate(ctx, models.InitiateRequest{
		MeetingType:      models.MeetingVirtual,
		IssueDescription: "we keep arguing about money",
	})
	assert.NoError(t, err)
	assert.Equal(t, models.StatusRequestPending, meeting.Status)
	awaitEvent(t, adminUpdates, "admin_update")

	// Повторний запит при живому бронюванні відхиляється
	_, err = client.api.Initiate(ctx, models.InitiateRequest{MeetingType: models.MeetingVirtual})
	assert.Error(t, err)

	// Адмін бачить запит і призначає консультанта
	pending, err := admin.api.PendingRequests(ctx)
	assert.NoError(t, err)
	assert.Len(t, pending, 1)

	counselors, err := admin.api.ActiveCounselors(ctx)
	assert.NoError(t, err)
	assert.NotEmpty(t, counselors)

	// Невідомий консультант відхиляється
	_, err = admin.api.AssignCounselor(ctx, models.AssignCounselorRequest{
		MeetingID: meeting.ID, CounselorID: "c-nobody",
	})
	assert.Error(t, err)

	meeting, err = admin.api.AssignCounselor(ctx, models.AssignCounselorRequest{
		MeetingID: pending[0].ID, CounselorID: counselors[0].ID,
	})
	assert.NoError(t, err)
	assert.Equal(t, models.StatusCounselorAssigned, meeting.Status)

	var assignedPayload models.CounselorAssignedPayload
	assert.NoError(t, json.Unmarshal(awaitEvent(t, assigned, "counselor_assigned"), &assignedPayload))
	assert.Equal(t, meeting.ID, assignedPayload.MeetingID)
	assert.NotEmpty(t, assignedPayload.CounselorName)

	// Вибір часу
	slots, err := client.api.AvailableSlots(ctx, "2025-03-01", counselors[0].ID)
	assert.NoError(t, err)
	assert.NotEmpty(t, slots)

	meeting, err = client.api.SelectTime(ctx, models.SelectTimeRequest{
		MeetingID: meeting.ID, MeetingDate: "2025-03-01", MeetingTime: "14:00",
	})
	assert.NoError(t, err)
	assert.Equal(t, models.StatusTimeSelected, meeting.Status)

	// Повторний вибір часу з time_selected — недопустимий перехід
	_, err = client.api.SelectTime(ctx, models.SelectTimeRequest{
		MeetingID: meeting.ID, MeetingDate: "2025-03-01", MeetingTime: "15:00",
	})
	assert.Error(t, err)

	// Підтвердження: у стабі підтверджує будь-який автентифікований
	// виклик accept
	meeting, err = counselor.api.Accept(ctx, meeting.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, meeting.Status)

	var confirmedPayload models.MeetingConfirmedPayload
	assert.NoError(t, json.Unmarshal(awaitEvent(t, confirmed, "meeting_confirmed"), &confirmedPayload))
	assert.Equal(t, "2025-03-01", confirmedPayload.MeetingDate)
	assert.Equal(t, "14:00", confirmedPayload.MeetingTime)

	// Жива сесія: обидва приєдналися
	assert.NoError(t, client.api.NotifyJoin(ctx, meeting.ID))
	assert.NoError(t, counselor.api.NotifyJoin(ctx, meeting.ID))

	status, err := client.api.SessionStatus(ctx, meeting.ID)
	assert.NoError(t, err)
	assert.True(t, status.ClientJoined)
	assert.True(t, status.CounselorJoined)

	// Консультант тимчасово випадає: клієнт отримує grace-подію з
	// серверним дедлайном
	assert.NoError(t, counselor.api.NotifyLeave(ctx, meeting.ID, true))
	var gracePayload models.GracePeriodPayload
	assert.NoError(t, json.Unmarshal(awaitEvent(t, grace, "grace_period"), &gracePayload))
	assert.Equal(t, models.RoleCounselor, gracePayload.Participant)
	assert.False(t, gracePayload.GraceEndTime.IsZero())

	// Ніхто не повернувся: grace спливає, сервер завершує сесію
	var completedPayload models.SessionCompletedPayload
	assert.NoError(t, json.Unmarshal(awaitEvent(t, completed, "session_completed"), &completedPayload))
	assert.Equal(t, meeting.ID, completedPayload.MeetingID)

	active, err := client.api.ActiveBooking(ctx)
	assert.NoError(t, err)
	assert.Nil(t, active, "completed meeting is no longer the active booking")

	// Оцінка завершеної сесії
	assert.NoError(t, client.api.Rate(ctx, meeting.ID, models.RateRequest{Score: 5, Comment: "helpful"}))
	rating, err := client.api.RatingStatus(ctx, meeting.ID)
	assert.NoError(t, err)
	assert.True(t, rating.Rated)
	assert.Equal(t, 5, rating.Score)

	history, err := client.api.ClientHistory(ctx)
	assert.NoError(t, err)
	assert.Len(t, history, 1)
}

// TestSlotConflict verifies two bookings cannot land on the same counselor
// slot.
func TestSlotConflict(t *testing.T) {
	_, baseURL, client, _, admin := startBackend(t)
	ctx := context.Background()

	book := func(p party) *models.Meeting {
		meeting, err := p.api.Initiate(ctx, models.InitiateRequest{MeetingType: models.MeetingPhysical})
		assert.NoError(t, err)
		counselors, err := admin.api.ActiveCounselors(ctx)
		assert.NoError(t, err)
		meeting, err = admin.api.AssignCounselor(ctx, models.AssignCounselorRequest{
			MeetingID: meeting.ID, CounselorID: counselors[0].ID,
		})
		assert.NoError(t, err)
		return meeting
	}

	first := book(client)
	_, err := client.api.SelectTime(ctx, models.SelectTimeRequest{
		MeetingID: first.ID, MeetingDate: "2025-03-02", MeetingTime: "10:00",
	})
	assert.NoError(t, err)

	// Друге бронювання від іншого клієнта на той самий слот
	other := party{api: apiclient.New(baseURL, zap.NewNop())}
	session, err := other.api.NewAnonSession(ctx, models.RoleClient)
	assert.NoError(t, err)
	other.api.TokenProvider = func() string { return session.Token }
	other.session = session

	second := book(other)
	_, err = other.api.SelectTime(ctx, models.SelectTimeRequest{
		MeetingID: second.ID, MeetingDate: "2025-03-02", MeetingTime: "10:00",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "slot already taken")

	slots, err := other.api.AvailableSlots(ctx, "2025-03-02", first.CounselorID)
	assert.NoError(t, err)
	for _, slot := range slots {
		if slot.Time == "10:00" {
			assert.False(t, slot.Available)
		}
	}
}

// TestWatchdogAbandonsNoShow books a meeting whose start is sixteen minutes
// past, runs the abandonment sweep against the live backend and verifies the
// meeting ends up abandoned with the canonical reason.
func TestWatchdogAbandonsNoShow(t *testing.T) {
	_, _, client, _, admin := startBackend(t)
	ctx := context.Background()

	meeting, err := client.api.Initiate(ctx, models.InitiateRequest{MeetingType: models.MeetingVirtual})
	assert.NoError(t, err)
	counselors, err := admin.api.ActiveCounselors(ctx)
	assert.NoError(t, err)
	meeting, err = admin.api.AssignCounselor(ctx, models.AssignCounselorRequest{
		MeetingID: meeting.ID, CounselorID: counselors[0].ID,
	})
	assert.NoError(t, err)

	start := time.Now().Add(-16 * time.Minute)
	meeting, err = client.api.SelectTime(ctx, models.SelectTimeRequest{
		MeetingID:   meeting.ID,
		MeetingDate: start.Format("2006-01-02"),
		MeetingTime: start.Format("15:04"),
	})
	assert.NoError(t, err)
	meeting, err = client.api.Accept(ctx, meeting.ID)
	assert.NoError(t, err)

	w := watchdog.New(client.api, func() *models.Meeting { return meeting }, zap.NewNop())
	w.RunOnce(ctx)

	active, err := client.api.ActiveBooking(ctx)
	assert.NoError(t, err)
	assert.Nil(t, active, "abandoned meeting is no longer active")

	history, err := client.api.ClientHistory(ctx)
	assert.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, models.StatusAbandoned, history[0].Status)
	assert.NotEmpty(t, history[0].NoShowReason)
}
