package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/repositories"
	"realtime-service/internal/services"
)

func statusForError(err error) int {
	switch {
	case errors.Is(err, repositories.ErrConversationNotFound),
		errors.Is(err, repositories.ErrMessageNotFound),
		errors.Is(err, repositories.ErrStoryNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNotParticipant),
		errors.Is(err, services.ErrNotSender),
		errors.Is(err, services.ErrNotAuthor):
		return http.StatusForbidden
	case errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrEmptyReaction),
		errors.Is(err, services.ErrEmptyStory):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrEditWindowClosed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

func paramInt(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
