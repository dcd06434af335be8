package mocks

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"realtime-service/internal/auth"
	"realtime-service/internal/media"
	"realtime-service/internal/models"
	"realtime-service/internal/repositories"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) CreateOrGetDirect(ctx context.Context, userID int, otherID int) (models.Conversation, error) {
	args := m.Called(ctx, userID, otherID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) CreateGroup(ctx context.Context, name string, ownerID int, memberIDs []int) (models.Conversation, error) {
	args := m.Called(ctx, name, ownerID, memberIDs)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) IsParticipant(ctx context.Context, conversationID int, userID int) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) Participants(ctx context.Context, conversationID int) ([]int, error) {
	args := m.Called(ctx, conversationID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *ConversationRepositoryMock) List(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ConversationSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ConversationSummary)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) SetArchived(ctx context.Context, conversationID int, userID int, archived bool) error {
	args := m.Called(ctx, conversationID, userID, archived)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) SetMuted(ctx context.Context, conversationID int, userID int, muted bool) error {
	args := m.Called(ctx, conversationID, userID, muted)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) SetPinned(ctx context.Context, conversationID int, userID int, pinned bool) error {
	args := m.Called(ctx, conversationID, userID, pinned)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) TouchActivity(ctx context.Context, conversationID int, messageID int) error {
	args := m.Called(ctx, conversationID, messageID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var stored models.Message
	if val := args.Get(0); val != nil {
		stored = val.(models.Message)
	}
	return stored, args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListForUser(ctx context.Context, conversationID int, userID int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, userID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkEdited(ctx context.Context, messageID int, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) TombstoneForAll(ctx context.Context, messageID int, senderID int) error {
	args := m.Called(ctx, messageID, senderID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) HideForUser(ctx context.Context, messageID int, userID int) error {
	args := m.Called(ctx, messageID, userID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) UpsertReaction(ctx context.Context, messageID int, userID int, emoji string) (models.Reaction, error) {
	args := m.Called(ctx, messageID, userID, emoji)
	var reaction models.Reaction
	if val := args.Get(0); val != nil {
		reaction = val.(models.Reaction)
	}
	return reaction, args.Error(1)
}

func (m *MessageRepositoryMock) DeleteReaction(ctx context.Context, messageID int, userID int) (bool, error) {
	args := m.Called(ctx, messageID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MessageRepositoryMock) Reactions(ctx context.Context, messageID int) ([]models.Reaction, error) {
	args := m.Called(ctx, messageID)
	var reactions []models.Reaction
	if val := args.Get(0); val != nil {
		reactions = val.([]models.Reaction)
	}
	return reactions, args.Error(1)
}

func (m *MessageRepositoryMock) ReadReceipts(ctx context.Context, messageID int) ([]models.ReadReceipt, error) {
	args := m.Called(ctx, messageID)
	var receipts []models.ReadReceipt
	if val := args.Get(0); val != nil {
		receipts = val.([]models.ReadReceipt)
	}
	return receipts, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, messageID int, userID int) (models.ReadReceipt, bool, error) {
	args := m.Called(ctx, messageID, userID)
	var receipt models.ReadReceipt
	if val := args.Get(0); val != nil {
		receipt = val.(models.ReadReceipt)
	}
	return receipt, args.Bool(1), args.Error(2)
}

func (m *MessageRepositoryMock) MarkConversationRead(ctx context.Context, conversationID int, userID int) (int, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Int(0), args.Error(1)
}

type StoryRepositoryMock struct {
	mock.Mock
}

func (m *StoryRepositoryMock) Create(ctx context.Context, story models.Story) (models.Story, error) {
	args := m.Called(ctx, story)
	var stored models.Story
	if val := args.Get(0); val != nil {
		stored = val.(models.Story)
	}
	return stored, args.Error(1)
}

func (m *StoryRepositoryMock) Get(ctx context.Context, storyID int) (models.Story, error) {
	args := m.Called(ctx, storyID)
	var story models.Story
	if val := args.Get(0); val != nil {
		story = val.(models.Story)
	}
	return story, args.Error(1)
}

func (m *StoryRepositoryMock) Feed(ctx context.Context, viewerID int, now time.Time) ([]models.Story, error) {
	args := m.Called(ctx, viewerID, now)
	var stories []models.Story
	if val := args.Get(0); val != nil {
		stories = val.([]models.Story)
	}
	return stories, args.Error(1)
}

func (m *StoryRepositoryMock) ListByAuthor(ctx context.Context, authorID int) ([]models.Story, error) {
	args := m.Called(ctx, authorID)
	var stories []models.Story
	if val := args.Get(0); val != nil {
		stories = val.([]models.Story)
	}
	return stories, args.Error(1)
}

func (m *StoryRepositoryMock) RecordView(ctx context.Context, storyID int, viewerID int) (models.StoryView, bool, error) {
	args := m.Called(ctx, storyID, viewerID)
	var view models.StoryView
	if val := args.Get(0); val != nil {
		view = val.(models.StoryView)
	}
	return view, args.Bool(1), args.Error(2)
}

func (m *StoryRepositoryMock) Viewers(ctx context.Context, storyID int) ([]models.StoryView, error) {
	args := m.Called(ctx, storyID)
	var viewers []models.StoryView
	if val := args.Get(0); val != nil {
		viewers = val.([]models.StoryView)
	}
	return viewers, args.Error(1)
}

func (m *StoryRepositoryMock) SetHighlight(ctx context.Context, storyID int, authorID int, highlight bool) error {
	args := m.Called(ctx, storyID, authorID, highlight)
	return args.Error(0)
}

func (m *StoryRepositoryMock) SetArchived(ctx context.Context, storyID int, authorID int, archived bool) error {
	args := m.Called(ctx, storyID, authorID, archived)
	return args.Error(0)
}

func (m *StoryRepositoryMock) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) EmitToUser(userID int, event string, data interface{}) bool {
	args := m.Called(userID, event, data)
	return args.Bool(0)
}

func (m *NotifierMock) EmitToUsers(userIDs []int, event string, data interface{}) int {
	args := m.Called(userIDs, event, data)
	return args.Int(0)
}

func (m *NotifierMock) EmitToRoom(room string, event string, data interface{}) int {
	args := m.Called(room, event, data)
	return args.Int(0)
}

func (m *NotifierMock) EmitToRoomExceptUser(room string, event string, data interface{}, excludeUserID int) int {
	args := m.Called(room, event, data, excludeUserID)
	return args.Int(0)
}

type VerifierMock struct {
	mock.Mock
}

func (m *VerifierMock) Verify(token string) (auth.Identity, error) {
	args := m.Called(token)
	var identity auth.Identity
	if val := args.Get(0); val != nil {
		identity = val.(auth.Identity)
	}
	return identity, args.Error(1)
}

type UploaderMock struct {
	mock.Mock
}

func (m *UploaderMock) Upload(ctx context.Context, file io.Reader, folder string) (media.UploadResult, error) {
	args := m.Called(ctx, file, folder)
	var result media.UploadResult
	if val := args.Get(0); val != nil {
		result = val.(media.UploadResult)
	}
	return result, args.Error(1)
}

var _ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.StoryRepository = (*StoryRepositoryMock)(nil)
var _ auth.Verifier = (*VerifierMock)(nil)
var _ media.Uploader = (*UploaderMock)(nil)
