package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/media"
	"realtime-service/internal/mocks"
	"realtime-service/internal/models"
	"realtime-service/internal/services"
)

func setupStoryRouter(storyRepo *mocks.StoryRepositoryMock, notifier *mocks.NotifierMock, uploader *mocks.UploaderMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := services.NewStoryService(storyRepo, notifier, 0)
	var up media.Uploader
	if uploader != nil {
		up = uploader
	}
	handler := NewStoryHandler(svc, up, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Set("username", "alice")
		c.Next()
	})
	r.POST("/stories", handler.Create)
	r.GET("/stories/feed", handler.Feed)
	r.GET("/stories/:story_id", handler.Get)
	r.POST("/stories/:story_id/view", handler.View)
	r.GET("/stories/:story_id/viewers", handler.Viewers)
	r.POST("/stories/:story_id/highlight", handler.SetHighlight)
	r.POST("/stories/:story_id/archive", handler.SetArchived)
	return r
}

func multipartBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestCreateTextStory(t *testing.T) {
	storyRepo := new(mocks.StoryRepositoryMock)
	router := setupStoryRouter(storyRepo, new(mocks.NotifierMock), nil)

	storyRepo.On("Create", mock.Anything, mock.MatchedBy(func(s models.Story) bool {
		return s.AuthorID == 1 && s.TextOverlay != nil && *s.TextOverlay == "hello"
	})).Return(models.Story{ID: 3, AuthorID: 1}, nil).Once()

	body, contentType := multipartBody(t, map[string]string{"text_overlay": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/stories", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	storyRepo.AssertExpectations(t)
}

func TestCreateStoryWithMedia(t *testing.T) {
	storyRepo := new(mocks.StoryRepositoryMock)
	uploader := new(mocks.UploaderMock)
	router := setupStoryRouter(storyRepo, new(mocks.NotifierMock), uploader)

	uploader.On("Upload", mock.Anything, mock.Anything, "stories").
		Return(media.UploadResult{URL: "https://cdn.example/clip.mp4", ResourceType: "video"}, nil).Once()
	storyRepo.On("Create", mock.Anything, mock.MatchedBy(func(s models.Story) bool {
		return s.MediaURL != nil && *s.MediaURL == "https://cdn.example/clip.mp4" && *s.MediaType == "video"
	})).Return(models.Story{ID: 4, AuthorID: 1}, nil).Once()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("media", "clip.mp4")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake video bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/stories", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	uploader.AssertExpectations(t)
	storyRepo.AssertExpectations(t)
}

func TestCreateEmptyStory(t *testing.T) {
	router := setupStoryRouter(new(mocks.StoryRepositoryMock), new(mocks.NotifierMock), nil)

	body, contentType := multipartBody(t, map[string]string{})
	req := httptest.NewRequest(http.MethodPost, "/stories", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateStoryRejectsMalformedStickers(t *testing.T) {
	router := setupStoryRouter(new(mocks.StoryRepositoryMock), new(mocks.NotifierMock), nil)

	body, contentType := multipartBody(t, map[string]string{
		"text_overlay": "hello",
		"stickers":     "{not json",
	})
	req := httptest.NewRequest(http.MethodPost, "/stories", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetHiddenStoryIsNotFound(t *testing.T) {
	storyRepo := new(mocks.StoryRepositoryMock)
	router := setupStoryRouter(storyRepo, new(mocks.NotifierMock), nil)

	story := models.Story{ID: 3, AuthorID: 2, HideFromUsers: pq.Int64Array{1}, ExpiresAt: time.Now().Add(time.Hour)}
	storyRepo.On("Get", mock.Anything, 3).Return(story, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/stories/3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestViewStory(t *testing.T) {
	storyRepo := new(mocks.StoryRepositoryMock)
	notifier := new(mocks.NotifierMock)
	router := setupStoryRouter(storyRepo, notifier, nil)

	story := models.Story{ID: 3, AuthorID: 2, ExpiresAt: time.Now().Add(time.Hour)}
	storyRepo.On("Get", mock.Anything, 3).Return(story, nil).Once()
	storyRepo.On("RecordView", mock.Anything, 3, 1).Return(models.StoryView{StoryID: 3, ViewerID: 1}, true, nil).Once()
	notifier.On("EmitToUser", 2, models.EventStoryViewed, mock.Anything).Return(true).Once()

	req := httptest.NewRequest(http.MethodPost, "/stories/3/view", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp["viewed"])
}

func TestViewersForbiddenForNonAuthor(t *testing.T) {
	storyRepo := new(mocks.StoryRepositoryMock)
	router := setupStoryRouter(storyRepo, new(mocks.NotifierMock), nil)

	storyRepo.On("Get", mock.Anything, 3).Return(models.Story{ID: 3, AuthorID: 2}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/stories/3/viewers", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSetHighlightRequiresValue(t *testing.T) {
	router := setupStoryRouter(new(mocks.StoryRepositoryMock), new(mocks.NotifierMock), nil)

	req := httptest.NewRequest(http.MethodPost, "/stories/3/highlight", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetHighlightSuccess(t *testing.T) {
	storyRepo := new(mocks.StoryRepositoryMock)
	router := setupStoryRouter(storyRepo, new(mocks.NotifierMock), nil)

	storyRepo.On("Get", mock.Anything, 3).Return(models.Story{ID: 3, AuthorID: 1}, nil).Once()
	storyRepo.On("SetHighlight", mock.Anything, 3, 1, true).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/stories/3/highlight", bytes.NewBufferString(`{"value":true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestFeedSuccess(t *testing.T) {
	storyRepo := new(mocks.StoryRepositoryMock)
	router := setupStoryRouter(storyRepo, new(mocks.NotifierMock), nil)

	storyRepo.On("Feed", mock.Anything, 1, mock.Anything).Return([]models.Story{{ID: 3}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/stories/feed", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
