package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/repositories"
)

// ConversationHandler manages conversation endpoints.
type ConversationHandler struct {
	conversations repositories.ConversationRepository
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(conversations repositories.ConversationRepository) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

// CreateDirect creates or returns the existing direct conversation between
// the caller and another user.
func (h *ConversationHandler) CreateDirect(c *gin.Context) {
	var req struct {
		UserID int `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	if userID == req.UserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start a conversation with yourself"})
		return
	}

	conv, err := h.conversations.CreateOrGetDirect(c.Request.Context(), userID, req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create conversation"})
		return
	}

	c.JSON(http.StatusOK, conv)
}

// CreateGroup creates a group conversation owned by the caller.
func (h *ConversationHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Name      string `json:"name" binding:"required"`
		MemberIDs []int  `json:"member_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.conversations.CreateGroup(c.Request.Context(), req.Name, c.GetInt("userID"), req.MemberIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create group"})
		return
	}

	c.JSON(http.StatusCreated, conv)
}

// List returns the caller's conversations, pinned first, then by recency.
func (h *ConversationHandler) List(c *gin.Context) {
	summaries, err := h.conversations.List(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// SetArchived flips the caller's archived overlay.
func (h *ConversationHandler) SetArchived(c *gin.Context) {
	h.setOverlay(c, h.conversations.SetArchived)
}

// SetMuted flips the caller's muted overlay.
func (h *ConversationHandler) SetMuted(c *gin.Context) {
	h.setOverlay(c, h.conversations.SetMuted)
}

// SetPinned flips the caller's pinned overlay.
func (h *ConversationHandler) SetPinned(c *gin.Context) {
	h.setOverlay(c, h.conversations.SetPinned)
}

func (h *ConversationHandler) setOverlay(c *gin.Context, set func(ctx context.Context, conversationID, userID int, value bool) error) {
	conversationID, ok := paramInt(c, "conversation_id")
	if !ok {
		return
	}

	var req struct {
		Value *bool `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := set(c.Request.Context(), conversationID, c.GetInt("userID"), *req.Value); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
