package pushchannel

import (
	"encoding/json"
	"time"

	"counselgo/client/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// supervise керує життям одного з'єднання та обмеженим перепідключенням.
// Повертається лише після Disconnect або коли спроби вичерпано.
func (c *Channel) supervise(conn *websocket.Conn) {
	for {
		c.runSession(conn)

		if c.stopped() {
			return
		}

		next, err := c.redial()
		if err != nil {
			// Вичерпано спроби: деградуємо мовчки, без блокуючих помилок.
			// Відновлення можливе лише повним перемонтуванням (re-login).
			c.logger.Warn("push channel gave up reconnecting", zap.Error(err))
			return
		}
		conn = next
	}
}

// runSession запускає write pump та блокується в read pump до втрати
// з'єднання.
func (c *Channel) runSession(conn *websocket.Conn) {
	done := make(chan struct{})
	go c.writePump(conn, done)
	c.readPump(conn)
	close(done)
	conn.Close()
}

func (c *Channel) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("push channel read error", zap.Error(err))
			}
			return
		}

		var frame models.PushFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.logger.Warn("push channel dropped malformed frame", zap.Error(err))
			continue
		}

		c.dispatch(frame)
	}
}

func (c *Channel) writePump(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	c.mu.Lock()
	send := c.send
	c.mu.Unlock()

	for {
		select {
		case frame := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				c.logger.Warn("push channel write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

// redial робить обмежену кількість спроб із фіксованою паузою.
func (c *Channel) redial() (*websocket.Conn, error) {
	for attempt := 1; attempt <= c.ReconnectAttempts; attempt++ {
		select {
		case <-c.stop:
			return nil, ErrChannelClosed
		case <-time.After(c.ReconnectDelay):
		}

		conn, _, err := c.Dialer.Dial(c.url, nil)
		if err != nil {
			c.logger.Warn("push channel reconnect failed",
				zap.Int("attempt", attempt),
				zap.Int("maxAttempts", c.ReconnectAttempts),
				zap.Error(err),
			)
			continue
		}

		c.setConn(conn)
		c.enqueueAuthenticate()
		c.logger.Info("push channel reconnected", zap.Int("attempt", attempt))
		return conn, nil
	}
	return nil, ErrChannelClosed
}
