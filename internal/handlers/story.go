package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/media"
	"realtime-service/internal/services"
	"realtime-service/internal/telemetry"
)

// StoryHandler manages the ephemeral story endpoints.
type StoryHandler struct {
	stories  *services.StoryService
	uploader media.Uploader
	emitter  *telemetry.AuditEmitter
}

// NewStoryHandler builds a StoryHandler.
func NewStoryHandler(stories *services.StoryService, uploader media.Uploader, emitter *telemetry.AuditEmitter) *StoryHandler {
	return &StoryHandler{stories: stories, uploader: uploader, emitter: emitter}
}

// Create stores a new story from a multipart form. The media file, when
// present, is uploaded through the media collaborator; text-only stories
// need a text_overlay instead.
func (h *StoryHandler) Create(c *gin.Context) {
	in := services.CreateStoryInput{}

	if overlay := c.PostForm("text_overlay"); overlay != "" {
		in.TextOverlay = &overlay
	}
	if music := c.PostForm("music"); music != "" {
		in.Music = &music
	}
	if location := c.PostForm("location"); location != "" {
		in.Location = &location
	}
	if stickers := c.PostForm("stickers"); stickers != "" {
		if !json.Valid([]byte(stickers)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "stickers must be valid json"})
			return
		}
		in.Stickers = json.RawMessage(stickers)
	}

	var ok bool
	if in.HideFromUsers, ok = formIDs(c, "hide_from_users"); !ok {
		return
	}
	if in.AllowedUsers, ok = formIDs(c, "allowed_users"); !ok {
		return
	}

	if file, _, err := c.Request.FormFile("media"); err == nil {
		defer file.Close()
		if h.uploader == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "media uploads not configured"})
			return
		}
		result, err := h.uploader.Upload(c.Request.Context(), file, "stories")
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "media upload failed"})
			return
		}
		in.MediaURL = &result.URL
		in.MediaType = &result.ResourceType
	}

	story, err := h.stories.Create(c.Request.Context(), c.GetInt("userID"), in)
	if err != nil {
		abortWithError(c, err)
		return
	}

	h.audit(c, "story created", story.ID)
	c.JSON(http.StatusCreated, story)
}

// Feed returns the active stories visible to the caller.
func (h *StoryHandler) Feed(c *gin.Context) {
	stories, err := h.stories.Feed(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stories"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": stories})
}

// ListOwn returns every story the caller still owns, archived included.
func (h *StoryHandler) ListOwn(c *gin.Context) {
	stories, err := h.stories.ListOwn(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stories"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": stories})
}

// Get returns one story as the caller may see it.
func (h *StoryHandler) Get(c *gin.Context) {
	storyID, ok := paramInt(c, "story_id")
	if !ok {
		return
	}

	story, err := h.stories.GetForViewer(c.Request.Context(), c.GetInt("userID"), storyID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

// View records the caller as a viewer, once.
func (h *StoryHandler) View(c *gin.Context) {
	storyID, ok := paramInt(c, "story_id")
	if !ok {
		return
	}

	viewed, err := h.stories.View(c.Request.Context(), c.GetInt("userID"), c.GetString("username"), storyID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"viewed": viewed})
}

// Viewers lists who has seen the story. Author-only.
func (h *StoryHandler) Viewers(c *gin.Context) {
	storyID, ok := paramInt(c, "story_id")
	if !ok {
		return
	}

	viewers, err := h.stories.Viewers(c.Request.Context(), c.GetInt("userID"), storyID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"viewers": viewers})
}

// SetHighlight promotes or demotes a story highlight.
func (h *StoryHandler) SetHighlight(c *gin.Context) {
	storyID, ok := paramInt(c, "story_id")
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

	if err := h.stories.SetHighlight(c.Request.Context(), c.GetInt("userID"), storyID, *req.Value); err != nil {
		abortWithError(c, err)
		return
	}

	h.audit(c, "story highlight changed", storyID)
	c.Status(http.StatusNoContent)
}

// SetArchived archives or unarchives a story.
func (h *StoryHandler) SetArchived(c *gin.Context) {
	storyID, ok := paramInt(c, "story_id")
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

	if err := h.stories.SetArchived(c.Request.Context(), c.GetInt("userID"), storyID, *req.Value); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StoryHandler) audit(c *gin.Context, text string, storyID int) {
	h.emitter.EmitEntity(c.Request.Context(), "INFO", text, "story", storyID, requestIDFromContext(c), userIDFromContext(c))
}

func formIDs(c *gin.Context, field string) ([]int64, bool) {
	values := c.PostFormArray(field)
	ids := make([]int64, 0, len(values))
	for _, value := range values {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + field})
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}
