package handler

import (
	"net/http"

	"supportchat/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: restrict to the web client's origin once it has a fixed domain.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket authenticates the caller and upgrades to a WebSocket.
// Browsers cannot set headers on the upgrade request, so the token may also
// come in the "token" query parameter.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = c.GetHeader("Authorization")
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
		return
	}

	id, err := h.Tokens.Verify(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, id, h.SendBuffer)
	if err := h.Hub.Register(c.Request.Context(), client); err != nil {
		h.log.Error("failed to register client", zap.String("user_id", id.UserID), zap.Error(err))
		return
	}

	client.Run()
}
