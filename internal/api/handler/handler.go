package handler

import (
	"errors"
	"net/http"

	"supportchat/backend/internal/auth"
	"supportchat/backend/internal/chaterr"
	"supportchat/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const identityKey = "identity"

// Handler exposes the chat hub over HTTP and WebSocket.
type Handler struct {
	Hub        *chathub.ManagerService
	Tokens     *auth.TokenService
	SendBuffer int
	log        *zap.Logger
}

func NewHandler(hub *chathub.ManagerService, tokens *auth.TokenService, sendBuffer int, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Handler{Hub: hub, Tokens: tokens, SendBuffer: sendBuffer, log: log.Named("http")}
}

// Routes mounts every endpoint on r.
func (h *Handler) Routes(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.POST("/api/auth/anonymous", h.GetAnonID)
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api/chat", h.AuthRequired())
	api.GET("/rooms", h.ListRooms)
	api.GET("/:roomId/messages", h.GetMessages)
	api.POST("/:roomId/message", h.SendMessage)
	api.POST("/:roomId/archive", h.ArchiveRoom)
	api.POST("/:roomId/summarize", h.Summarize)
	api.POST("/:roomId/suggestions", h.Suggestions)
	api.PUT("/messages/:id", h.EditMessage)
	api.DELETE("/messages/:id", h.DeleteMessage)
	api.POST("/messages/:id/reactions", h.AddReaction)
	api.DELETE("/messages/:id/reactions", h.RemoveReaction)
	api.POST("/messages/:id/read", h.MarkRead)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// AuthRequired verifies the bearer token and stores the caller's identity
// in the gin context.
func (h *Handler) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := h.Tokens.Verify(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func identity(c *gin.Context) auth.Identity {
	v, _ := c.Get(identityKey)
	id, _ := v.(auth.Identity)
	return id
}

// statusFor maps the chat error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chaterr.ErrAuthorizationDenied):
		return http.StatusForbidden
	case errors.Is(err, chaterr.ErrEditWindowExpired):
		return http.StatusForbidden
	case errors.Is(err, chaterr.ErrMessageDeleted):
		return http.StatusGone
	case errors.Is(err, chaterr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, chaterr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chaterr.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": chaterr.Message(err)})
}
