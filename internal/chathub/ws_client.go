package chathub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"supportchat/backend/internal/auth"
	"supportchat/backend/internal/models"
	"supportchat/backend/internal/presence"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 << 10
)

// WebSocketClient implements Client over a gorilla websocket connection.
type WebSocketClient struct {
	ConnID string
	UserID string
	Alias  string
	Conn   *websocket.Conn
	Hub    *ManagerService
	Send   chan models.Event

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	view      *presence.StatusView
	log       *zap.Logger
}

func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, id auth.Identity, bufSize int) *WebSocketClient {
	ctx, cancel := context.WithCancel(context.Background())
	connID := uuid.NewString()
	return &WebSocketClient{
		ConnID: connID,
		UserID: id.UserID,
		Alias:  id.Alias,
		Conn:   conn,
		Hub:    hub,
		Send:   make(chan models.Event, bufSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		view:   presence.NewStatusView(),
		log:    hub.log.With(zap.String("conn_id", connID), zap.String("user_id", id.UserID)),
	}
}

func (c *WebSocketClient) GetConnID() string                   { return c.ConnID }
func (c *WebSocketClient) GetUserID() string                   { return c.UserID }
func (c *WebSocketClient) GetAlias() string                    { return c.Alias }
func (c *WebSocketClient) GetSendChannel() chan<- models.Event { return c.Send }

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close stops both pumps. Send is left open; the hub may still hold a
// reference to it.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.done)
		_ = c.Conn.Close()
	})
}

func (c *WebSocketClient) readPump() {
	defer c.Hub.Unregister(c)

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("unexpected websocket close", zap.Error(err))
			}
			return
		}

		var cmd models.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.log.Debug("malformed command", zap.Error(err))
			c.Hub.deliver(c, models.ErrorEvent("", "Malformed command"))
			continue
		}

		c.Hub.Dispatch(c.ctx, c, cmd)
	}
}

// writePump writes one frame per event. Status updates older than what this
// connection has already seen are skipped.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case ev := <-c.Send:
			if p, ok := ev.Payload.(models.StatusChangedPayload); ok && !c.view.Apply(p) {
				continue
			}
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteJSON(ev); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
