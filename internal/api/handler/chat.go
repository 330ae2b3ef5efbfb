package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type contentRequest struct {
	Content string `json:"content"`
}

type sendRequest struct {
	Content     string `json:"content"`
	MessageType string `json:"messageType"`
}

type suggestionsRequest struct {
	Context     string `json:"context"`
	Emotion     string `json:"emotion"`
	SupportType string `json:"supportType"`
}

type reactionRequest struct {
	RoomID   string `json:"roomId"`
	Reaction string `json:"reaction"`
}

// ListRooms returns the caller's active rooms, most recently used first.
func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.Hub.ListRooms(c.Request.Context(), identity(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms, "total": len(rooms)})
}

// SendMessage runs a message through the same pipeline as the WebSocket
// send_message command, so live subscribers receive it too.
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id := identity(c)
	roomID := c.Param("roomId")
	msg, err := h.Hub.Submit(context.WithoutCancel(c.Request.Context()), id.UserID, id.Alias, roomID, req.Content, req.MessageType)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Hub.Typing.Stop(roomID, id.UserID)
	c.JSON(http.StatusCreated, msg.View())
}

// Summarize drafts a recap of the room's recent conversation.
func (h *Handler) Summarize(c *gin.Context) {
	res, err := h.Hub.Summarize(c.Request.Context(), identity(c).UserID, c.Param("roomId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Suggestions drafts replies for the caller. The body is optional.
func (h *Handler) Suggestions(c *gin.Context) {
	var req suggestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	suggestions, err := h.Hub.Suggest(c.Request.Context(), identity(c).UserID, c.Param("roomId"), req.Context, req.Emotion, req.SupportType)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomId": c.Param("roomId"), "suggestions": suggestions})
}

// GetMessages returns one page of a room's history.
func (h *Handler) GetMessages(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	res, err := h.Hub.History(c.Request.Context(), identity(c).UserID, c.Param("roomId"), page, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) EditMessage(c *gin.Context) {
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	msg, err := h.Hub.Edit(c.Request.Context(), identity(c).UserID, c.Param("id"), req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msg.View())
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	deleted, err := h.Hub.Delete(c.Request.Context(), identity(c).UserID, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *Handler) AddReaction(c *gin.Context) {
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	changed, err := h.Hub.React(c.Request.Context(), identity(c).UserID, req.RoomID, c.Param("id"), req.Reaction)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

func (h *Handler) RemoveReaction(c *gin.Context) {
	removed, err := h.Hub.Unreact(c.Request.Context(), identity(c).UserID, c.Query("roomId"), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (h *Handler) MarkRead(c *gin.Context) {
	added, err := h.Hub.MarkRead(c.Request.Context(), identity(c).UserID, c.Query("roomId"), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

// ArchiveRoom lets a participant end the conversation.
func (h *Handler) ArchiveRoom(c *gin.Context) {
	if err := h.Hub.Decline(c.Request.Context(), identity(c).UserID, c.Param("roomId")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
