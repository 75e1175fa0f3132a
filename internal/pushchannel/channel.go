// Package pushchannel maintains the persistent WebSocket connection that
// delivers asynchronous lifecycle events (counselor assigned, meeting
// confirmed, participant status, grace period, session completed).
//
// The channel is a standalone service object: Connect(identity) opens one
// authenticated connection per session, On(event, handler) subscribes, and
// Disconnect() must be called on logout or identity change so a stale
// authenticated session is never leaked. Events are invalidation signals;
// subscribers re-fetch authoritative state over REST.
package pushchannel

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"counselgo/client/internal/config"
	"counselgo/client/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler отримує сирий payload події. Викликається послідовно на одній
// goroutine читання; обробники мають бути ідемпотентними до запізнілих та
// продубльованих подій.
type Handler func(data json.RawMessage)

var (
	ErrAlreadyConnected = errors.New("push channel already connected")
	ErrChannelClosed    = errors.New("push channel closed")
)

// Channel represents the client's single push connection.
type Channel struct {
	url    string
	logger *zap.Logger

	Dialer *websocket.Dialer

	// Bounded reconnection policy. Defaults follow the production values;
	// tests shorten them.
	ReconnectAttempts int
	ReconnectDelay    time.Duration

	mu       sync.Mutex
	handlers map[string][]Handler
	conn     *websocket.Conn
	send     chan models.PushFrame
	stop     chan struct{}
	identity models.Identity
	started  bool
}

func New(url string, logger *zap.Logger) *Channel {
	return &Channel{
		url:               url,
		logger:            logger,
		Dialer:            websocket.DefaultDialer,
		ReconnectAttempts: config.ReconnectAttempts,
		ReconnectDelay:    config.ReconnectDelay,
		handlers:          make(map[string][]Handler),
	}
}

// On registers a handler for an inbound event name. Subscriptions survive
// reconnects; they belong to the channel, not to the socket.
func (c *Channel) On(event string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], handler)
}

// Connect dials the push endpoint, sends the authenticate frame and starts
// the read/write pumps. The connection then lives in the background until
// Disconnect or until the bounded reconnection gives up.
func (c *Channel) Connect(ctx context.Context, identity models.Identity) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.started = true
	c.identity = identity
	c.send = make(chan models.PushFrame, 16)
	c.stop = make(chan struct{})
	c.mu.Unlock()

	conn, _, err := c.Dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		return err
	}

	c.setConn(conn)
	c.enqueueAuthenticate()
	go c.supervise(conn)

	c.logger.Info("push channel connected",
		zap.String("userId", identity.UserID),
		zap.String("role", identity.Role),
	)
	return nil
}

// Disconnect explicitly tears the channel down. Safe to call more than once.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	c.started = false
	close(c.stop)
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.logger.Info("push channel disconnected")
}

// Connected reports whether the channel currently holds a live socket.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started && c.conn != nil
}

func (c *Channel) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Channel) stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.started
}

// enqueueAuthenticate ставить у чергу кадр {userId, role}; сервер після
// нього неявно підписує з'єднання на події цієї особи.
func (c *Channel) enqueueAuthenticate() {
	c.mu.Lock()
	identity := c.identity
	send := c.send
	c.mu.Unlock()

	data, err := json.Marshal(identity)
	if err != nil {
		c.logger.Error("encode authenticate frame", zap.Error(err))
		return
	}
	select {
	case send <- models.PushFrame{Event: models.EventAuthenticate, Data: data}:
	default:
		c.logger.Warn("send queue full, dropping authenticate frame")
	}
}

// dispatch fans a frame out to subscribers. Connection errors never reach
// handlers; an unknown event is simply ignored.
func (c *Channel) dispatch(frame models.PushFrame) {
	c.mu.Lock()
	handlers := append([]Handler(nil), c.handlers[frame.Event]...)
	c.mu.Unlock()

	for _, handler := range handlers {
		handler(frame.Data)
	}
}
