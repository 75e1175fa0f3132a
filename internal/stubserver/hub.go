package stubserver

import (
	"encoding/json"
	"sync"
	"time"

	"counselgo/client/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// subscriber — одне активне push-з'єднання після автентифікації.
type subscriber struct {
	identity models.Identity
	conn     *websocket.Conn
	send     chan models.PushFrame
}

// Hub fans push events out to connected subscribers, addressed by user
// identity or by role. A user may hold several connections at once; every
// one of them receives the event.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	logger      *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]struct{}),
		logger:      logger,
	}
}

// HandleConnection приймає з'єднання: чекає кадр authenticate, реєструє
// підписника та запускає його насоси. Блокується до розриву з'єднання.
func (h *Hub) HandleConnection(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(pongWait))

	var frame models.PushFrame
	if err := conn.ReadJSON(&frame); err != nil || frame.Event != models.EventAuthenticate {
		conn.Close()
		return
	}
	var identity models.Identity
	if err := json.Unmarshal(frame.Data, &identity); err != nil || identity.UserID == "" {
		conn.Close()
		return
	}

	sub := &subscriber{
		identity: identity,
		conn:     conn,
		send:     make(chan models.PushFrame, 16),
	}
	h.register(sub)
	h.logger.Info("push subscriber connected",
		zap.String("userId", identity.UserID),
		zap.String("role", identity.Role),
	)

	go sub.writePump()
	sub.readPump() // блокується; повернення означає розрив
	h.unregister(sub)
}

func (h *Hub) register(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[sub] = struct{}{}
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.send)
	}
}

// Emit надсилає подію всім з'єднанням користувача.
func (h *Hub) Emit(target models.Identity, event string, payload any) {
	h.deliver(event, payload, func(sub *subscriber) bool {
		return sub.identity == target
	})
}

// EmitRole надсилає подію всім користувачам з роллю (адмінські оновлення).
func (h *Hub) EmitRole(role, event string, payload any) {
	h.deliver(event, payload, func(sub *subscriber) bool {
		return sub.identity.Role == role
	})
}

func (h *Hub) deliver(event string, payload any, match func(*subscriber) bool) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("push payload marshal failed", zap.String("event", event), zap.Error(err))
		return
	}
	frame := models.PushFrame{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers {
		if !match(sub) {
			continue
		}
		select {
		case sub.send <- frame:
		default:
			// Повільний підписник: кадр скидається, стан наздожене re-fetch.
			h.logger.Warn("push subscriber too slow, frame dropped",
				zap.String("userId", sub.identity.UserID))
		}
	}
}

// Close розриває всі активні з'єднання.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		sub.conn.Close()
	}
}

func (s *subscriber) readPump() {
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
