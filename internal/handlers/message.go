package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/services"
	"realtime-service/internal/telemetry"
)

// MessageHandler manages the message lifecycle endpoints.
type MessageHandler struct {
	messages *services.MessageService
	emitter  *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messages *services.MessageService, emitter *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{messages: messages, emitter: emitter}
}

// List returns the conversation's messages as the caller sees them.
func (h *MessageHandler) List(c *gin.Context) {
	conversationID, ok := paramInt(c, "conversation_id")
	if !ok {
		return
	}

	msgs, err := h.messages.ListForUser(c.Request.Context(), c.GetInt("userID"), conversationID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Post stores a message and fans it out to the other participants.
func (h *MessageHandler) Post(c *gin.Context) {
	conversationID, ok := paramInt(c, "conversation_id")
	if !ok {
		return
	}

	var req struct {
		Content   string  `json:"content"`
		MediaURL  *string `json:"media_url"`
		MediaType *string `json:"media_type"`
		ReplyToID *int    `json:"reply_to_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.messages.Send(c.Request.Context(), userID, services.SendMessageInput{
		ConversationID: conversationID,
		Content:        req.Content,
		MediaURL:       req.MediaURL,
		MediaType:      req.MediaType,
		ReplyToID:      req.ReplyToID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	h.audit(c, "message sent", "message", msg.ID)
	c.JSON(http.StatusCreated, msg)
}

// Edit replaces a message's content inside the edit window.
func (h *MessageHandler) Edit(c *gin.Context) {
	messageID, ok := paramInt(c, "message_id")
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.Edit(c.Request.Context(), c.GetInt("userID"), messageID, req.Content)
	if err != nil {
		abortWithError(c, err)
		return
	}

	h.audit(c, "message edited", "message", messageID)
	c.JSON(http.StatusOK, msg)
}

// DeleteForMe hides a message for the caller only.
func (h *MessageHandler) DeleteForMe(c *gin.Context) {
	messageID, ok := paramInt(c, "message_id")
	if !ok {
		return
	}

	if err := h.messages.DeleteForMe(c.Request.Context(), c.GetInt("userID"), messageID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteForEveryone tombstones a message for all participants.
func (h *MessageHandler) DeleteForEveryone(c *gin.Context) {
	messageID, ok := paramInt(c, "message_id")
	if !ok {
		return
	}

	if err := h.messages.DeleteForEveryone(c.Request.Context(), c.GetInt("userID"), messageID); err != nil {
		abortWithError(c, err)
		return
	}

	h.audit(c, "message deleted for everyone", "message", messageID)
	c.Status(http.StatusNoContent)
}

// React adds or replaces the caller's reaction on a message.
func (h *MessageHandler) React(c *gin.Context) {
	messageID, ok := paramInt(c, "message_id")
	if !ok {
		return
	}

	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reaction, err := h.messages.React(c.Request.Context(), c.GetInt("userID"), messageID, req.Emoji)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reaction)
}

// RemoveReaction removes the caller's reaction if present.
func (h *MessageHandler) RemoveReaction(c *gin.Context) {
	messageID, ok := paramInt(c, "message_id")
	if !ok {
		return
	}

	if err := h.messages.RemoveReaction(c.Request.Context(), c.GetInt("userID"), messageID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkConversationRead sweeps read receipts over the conversation.
func (h *MessageHandler) MarkConversationRead(c *gin.Context) {
	conversationID, ok := paramInt(c, "conversation_id")
	if !ok {
		return
	}

	count, err := h.messages.MarkConversationRead(c.Request.Context(), c.GetInt("userID"), conversationID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": count})
}

func (h *MessageHandler) audit(c *gin.Context, text, entity string, entityID int) {
	h.emitter.EmitEntity(c.Request.Context(), "INFO", text, entity, entityID, requestIDFromContext(c), userIDFromContext(c))
}
