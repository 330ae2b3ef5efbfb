package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type anonRequest struct {
	Alias string `json:"alias"`
}

// GetAnonID creates a fresh anonymous identity and returns a token for it.
func (h *Handler) GetAnonID(c *gin.Context) {
	var req anonRequest
	// The body is optional.
	_ = c.ShouldBindJSON(&req)

	alias := strings.TrimSpace(req.Alias)
	if alias == "" {
		alias = "Anonymous"
	}
	if len([]rune(alias)) > 50 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "alias must be at most 50 characters"})
		return
	}

	userID := uuid.NewString()
	token, err := h.Tokens.Issue(userID, alias)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "anonId": userID, "alias": alias})
}
