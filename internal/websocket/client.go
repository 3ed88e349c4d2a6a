package websocket

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"licensebridge/internal/config"
	"licensebridge/internal/events"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// client is one websocket connection fed by a bus subscription.
type client struct {
	id         string
	conn       *websocket.Conn
	sub        *events.Subscription
	pingPeriod time.Duration
	pongWait   time.Duration
	logger     *slog.Logger

	connectedAt time.Time
}

func newClient(id string, conn *websocket.Conn, sub *events.Subscription, cfg config.WebSocketConfig, logger *slog.Logger) *client {
	return &client{
		id:          id,
		conn:        conn,
		sub:         sub,
		pingPeriod:  cfg.PingPeriod,
		pongWait:    cfg.PongWait,
		logger:      logger,
		connectedAt: time.Now(),
	}
}

// readPump consumes client frames until the connection breaks, then drops
// the subscription. Clients never send commands over the socket; reading
// only keeps pongs and close frames flowing.
func (c *client) readPump() {
	defer func() {
		c.sub.Close()
		c.logger.Info("websocket client disconnected",
			slog.Duration("connection_duration", time.Since(c.connectedAt)))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("unexpected websocket close", slog.String("error", err.Error()))
			}
			return
		}
	}
}

// writePump forwards subscription events as JSON text frames and pings
// the peer. It exits when the subscription closes or a write fails.
func (c *client) writePump(first *events.Event) {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	if first != nil {
		if err := c.write(*first); err != nil {
			c.sub.Close()
			return
		}
	}

	for {
		select {
		case ev, ok := <-c.sub.C:
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.write(ev); err != nil {
				c.logger.Debug("websocket write failed", slog.String("error", err.Error()))
				c.sub.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.sub.Close()
				return
			}
		}
	}
}

func (c *client) write(ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}
