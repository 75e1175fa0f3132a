package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"counselgo/client/internal/apiclient"
	"counselgo/client/internal/booking"
	"counselgo/client/internal/config"
	"counselgo/client/internal/localization"
	"counselgo/client/internal/logging"
	"counselgo/client/internal/models"
	"counselgo/client/internal/notify"
	"counselgo/client/internal/pushchannel"
	"counselgo/client/internal/session"
	"counselgo/client/internal/store"
	"counselgo/client/internal/stubserver"
	"counselgo/client/internal/watchdog"

	"go.uber.org/zap"
)

func main() {
	stubMode := flag.Bool("stub", false, "run an in-process stub backend and connect to it")
	stubAddr := flag.String("stub-addr", ":8080", "listen address for the stub backend")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *stubMode {
		cfg = &config.Config{
			APIBaseURL:  "http://localhost" + *stubAddr,
			PushURL:     "ws://localhost" + *stubAddr + "/push",
			UserRole:    models.RoleClient,
			Environment: "development",
		}
	} else {
		cfg, err = config.Load()
		if err != nil {
			log.Fatalf("configuration error: %v", err)
		}
	}

	logger := logging.New(cfg.Environment)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *stubMode {
		backend := stubserver.New(logger)
		go func() {
			if err := backend.Run(*stubAddr); err != nil {
				logger.Fatal("stub backend failed", zap.Error(err))
			}
		}()
		// Даємо стабу піднятися перед першим запитом
		time.Sleep(200 * time.Millisecond)
	}

	api := apiclient.New(cfg.APIBaseURL, logger)
	st := store.New()
	api.TokenProvider = st.Token

	identity := models.Identity{UserID: cfg.UserID, Role: cfg.UserRole}
	token := cfg.APIToken
	if token == "" {
		// Без готового токена запитуємо свіжу анонімну особу
		anon, err := api.NewAnonSession(ctx, cfg.UserRole)
		if err != nil {
			logger.Fatal("anonymous session request failed", zap.Error(err))
		}
		identity = models.Identity{UserID: anon.UserID, Role: anon.Role}
		token = anon.Token
	}
	st.Login(identity, token)
	logger.Info("agent identity ready",
		zap.String("userId", identity.UserID),
		zap.String("role", identity.Role),
	)

	loc, err := localization.NewDefault()
	if err != nil {
		logger.Fatal("failed to load locales", zap.Error(err))
	}

	ch := pushchannel.New(cfg.PushURL, logger)
	if err := ch.Connect(ctx, identity); err != nil {
		logger.Fatal("push channel connect failed", zap.Error(err))
	}
	defer ch.Disconnect()

	svc := booking.NewService(api, st, logger)
	defer svc.Close()
	svc.BindPushChannel(ch)

	if cfg.TelegramToken != "" {
		chatID, err := strconv.ParseInt(cfg.TelegramChatID, 10, 64)
		if err != nil {
			logger.Fatal("TELEGRAM_CHAT_ID must be an integer", zap.Error(err))
		}
		notifier, err := notify.NewTelegramNotifier(cfg.TelegramToken, chatID, loc, logger)
		if err != nil {
			logger.Fatal("telegram notifier failed", zap.Error(err))
		}
		svc.OnNotification = notifier.BookingEvent
	}

	sessions := &sessionManager{api: api, ch: ch, loc: loc, logger: logger, role: identity.Role}
	unsubscribe := st.Subscribe(sessions.onState)
	defer unsubscribe()
	defer sessions.shutdown()

	w := watchdog.New(api, st.ActiveMeeting, logger)
	w.Start(ctx)
	defer w.Stop()

	if _, err := svc.LoadActiveBooking(ctx); err != nil {
		logger.Warn("initial booking load failed", zap.Error(err))
	}
	w.RunOnce(ctx)

	logger.Info("agent running")
	<-ctx.Done()
	logger.Info("shutting down")
}

// sessionManager tracks the confirmed meeting in the store and keeps exactly
// one session controller alive for it.
type sessionManager struct {
	api    *apiclient.Client
	ch     *pushchannel.Channel
	loc    *localization.Localizer
	logger *zap.Logger
	role   string

	mu        sync.Mutex
	ctrl      *session.Controller
	meetingID string
}

func (m *sessionManager) onState(state store.State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	meeting := state.ActiveMeeting
	if meeting == nil || meeting.Status != models.StatusConfirmed {
		if m.ctrl != nil {
			m.ctrl.Exit()
			m.ctrl = nil
			m.meetingID = ""
		}
		return
	}
	if m.ctrl != nil && m.meetingID == meeting.ID {
		return
	}
	if m.ctrl != nil {
		m.ctrl.Exit()
	}

	ctrl := session.NewController(m.api, *meeting, m.role, m.loc, m.logger)
	ctrl.OnCountdown = func(text string) {
		m.logger.Info("session availability", zap.String("message", text))
	}
	ctrl.OnPhaseChange = func(phase session.Phase) {
		m.logger.Info("session phase", zap.String("phase", string(phase)))
	}
	ctrl.OnEndWarning = func(remaining time.Duration) {
		m.logger.Info("session ending soon", zap.Duration("remaining", remaining))
	}
	ctrl.OnGraceTick = func(remaining time.Duration) {
		m.logger.Info("waiting for the other participant", zap.Duration("remaining", remaining))
	}
	ctrl.OnAlert = func(message string) {
		m.logger.Warn("session alert", zap.String("message", message))
	}
	ctrl.BindPushChannel(m.ch)
	ctrl.Watch()

	m.ctrl = ctrl
	m.meetingID = meeting.ID
}

func (m *sessionManager) shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctrl != nil {
		m.ctrl.Exit()
		m.ctrl = nil
	}
}
