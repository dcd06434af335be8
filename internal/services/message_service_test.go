package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/mocks"
	"realtime-service/internal/models"
	"realtime-service/internal/repositories"
)

func newMessageService(convRepo *mocks.ConversationRepositoryMock, msgRepo *mocks.MessageRepositoryMock, notifier *mocks.NotifierMock) *MessageService {
	return NewMessageService(convRepo, msgRepo, notifier)
}

func TestSendFansOutToOtherParticipants(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	notifier := new(mocks.NotifierMock)
	svc := newMessageService(convRepo, msgRepo, notifier)

	stored := models.Message{ID: 10, ConversationID: 5, SenderID: 1, Type: models.MessageTypeText, Content: "hi"}
	convRepo.On("Participants", mock.Anything, 5).Return([]int{1, 2, 3}, nil).Once()
	msgRepo.On("Create", mock.Anything, mock.MatchedBy(func(m models.Message) bool {
		return m.ConversationID == 5 && m.SenderID == 1 && m.Content == "hi" && m.Type == models.MessageTypeText
	})).Return(stored, nil).Once()
	convRepo.On("TouchActivity", mock.Anything, 5, 10).Return(nil).Once()
	notifier.On("EmitToUsers", []int{2, 3}, models.EventNewMessage, stored).Return(2).Once()

	msg, err := svc.Send(context.Background(), 1, SendMessageInput{ConversationID: 5, Content: "hi"})
	require.NoError(t, err)
	require.Equal(t, 10, msg.ID)

	convRepo.AssertExpectations(t)
	msgRepo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestSendRejectsNonParticipant(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	svc := newMessageService(convRepo, new(mocks.MessageRepositoryMock), new(mocks.NotifierMock))

	convRepo.On("Participants", mock.Anything, 5).Return([]int{2, 3}, nil).Once()

	_, err := svc.Send(context.Background(), 1, SendMessageInput{ConversationID: 5, Content: "hi"})
	require.ErrorIs(t, err, ErrNotParticipant)
}

func TestSendUnknownConversation(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	svc := newMessageService(convRepo, new(mocks.MessageRepositoryMock), new(mocks.NotifierMock))

	convRepo.On("Participants", mock.Anything, 5).Return([]int{}, nil).Once()

	_, err := svc.Send(context.Background(), 1, SendMessageInput{ConversationID: 5, Content: "hi"})
	require.ErrorIs(t, err, repositories.ErrConversationNotFound)
}

func TestSendRejectsEmptyContentWithoutMedia(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	svc := newMessageService(convRepo, new(mocks.MessageRepositoryMock), new(mocks.NotifierMock))

	convRepo.On("Participants", mock.Anything, 5).Return([]int{1, 2}, nil).Once()

	_, err := svc.Send(context.Background(), 1, SendMessageInput{ConversationID: 5, Content: "   "})
	require.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSendMediaOnlyMessage(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	notifier := new(mocks.NotifierMock)
	svc := newMessageService(convRepo, msgRepo, notifier)

	url := "https://cdn.example/pic.jpg"
	stored := models.Message{ID: 11, ConversationID: 5, SenderID: 1, Type: models.MessageTypeMedia, MediaURL: &url}
	convRepo.On("Participants", mock.Anything, 5).Return([]int{1, 2}, nil).Once()
	msgRepo.On("Create", mock.Anything, mock.MatchedBy(func(m models.Message) bool {
		return m.Type == models.MessageTypeMedia && m.MediaURL != nil
	})).Return(stored, nil).Once()
	convRepo.On("TouchActivity", mock.Anything, 5, 11).Return(nil).Once()
	notifier.On("EmitToUsers", []int{2}, models.EventNewMessage, stored).Return(1).Once()

	_, err := svc.Send(context.Background(), 1, SendMessageInput{ConversationID: 5, MediaURL: &url})
	require.NoError(t, err)
	msgRepo.AssertExpectations(t)
}

func TestEditInsideWindow(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	notifier := new(mocks.NotifierMock)
	svc := newMessageService(convRepo, msgRepo, notifier)

	created := time.Now()
	svc.now = func() time.Time { return created.Add(14 * time.Minute) }

	msgRepo.On("Get", mock.Anything, 10).Return(models.Message{ID: 10, ConversationID: 5, SenderID: 1, CreatedAt: created}, nil).Once()
	edited := models.Message{ID: 10, ConversationID: 5, SenderID: 1, Content: "fixed", IsEdited: true}
	msgRepo.On("MarkEdited", mock.Anything, 10, "fixed").Return(edited, nil).Once()
	convRepo.On("Participants", mock.Anything, 5).Return([]int{1, 2}, nil).Once()
	notifier.On("EmitToUsers", []int{2}, models.EventMessageEdited, edited).Return(1).Once()

	msg, err := svc.Edit(context.Background(), 1, 10, "fixed")
	require.NoError(t, err)
	require.True(t, msg.IsEdited)
}

func TestEditWindowBoundaryCountsAsExpired(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	svc := newMessageService(new(mocks.ConversationRepositoryMock), msgRepo, new(mocks.NotifierMock))

	created := time.Now()
	svc.now = func() time.Time { return created.Add(EditWindow) }

	msgRepo.On("Get", mock.Anything, 10).Return(models.Message{ID: 10, SenderID: 1, CreatedAt: created}, nil).Once()

	_, err := svc.Edit(context.Background(), 1, 10, "too late")
	require.ErrorIs(t, err, ErrEditWindowClosed)
}

func TestEditRejectsNonSender(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	svc := newMessageService(new(mocks.ConversationRepositoryMock), msgRepo, new(mocks.NotifierMock))

	msgRepo.On("Get", mock.Anything, 10).Return(models.Message{ID: 10, SenderID: 2, CreatedAt: time.Now()}, nil).Once()

	_, err := svc.Edit(context.Background(), 1, 10, "nope")
	require.ErrorIs(t, err, ErrNotSender)
}

func TestEditDeletedMessageIsNotFound(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	svc := newMessageService(new(mocks.ConversationRepositoryMock), msgRepo, new(mocks.NotifierMock))

	msgRepo.On("Get", mock.Anything, 10).Return(models.Message{ID: 10, SenderID: 1, IsDeleted: true, CreatedAt: time.Now()}, nil).Once()

	_, err := svc.Edit(context.Background(), 1, 10, "ghost")
	require.ErrorIs(t, err, repositories.ErrMessageNotFound)
}

func TestDeleteForEveryoneNotifiesAllParticipants(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	notifier := new(mocks.NotifierMock)
	svc := newMessageService(convRepo, msgRepo, notifier)

	msgRepo.On("Get", mock.Anything, 10).Return(models.Message{ID: 10, ConversationID: 5, SenderID: 1}, nil).Once()
	msgRepo.On("TombstoneForAll", mock.Anything, 10, 1).Return(nil).Once()
	convRepo.On("Participants", mock.Anything, 5).Return([]int{1, 2}, nil).Once()
	notifier.On("EmitToUsers", []int{1, 2}, models.EventMessageDeleted, mock.Anything).Return(2).Once()

	require.NoError(t, svc.DeleteForEveryone(context.Background(), 1, 10))
	notifier.AssertExpectations(t)
}

func TestDeleteForEveryoneSenderOnly(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	svc := newMessageService(new(mocks.ConversationRepositoryMock), msgRepo, new(mocks.NotifierMock))

	msgRepo.On("Get", mock.Anything, 10).Return(models.Message{ID: 10, SenderID: 2}, nil).Once()

	require.ErrorIs(t, svc.DeleteForEveryone(context.Background(), 1, 10), ErrNotSender)
}

func TestDeleteForMeHidesWithoutFanOut(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	notifier := new(mocks.NotifierMock)
	svc := newMessageService(convRepo, msgRepo, notifier)

	msgRepo.On("Get", mock.Anything, 10).Return(models.Message{ID: 10, ConversationID: 5, SenderID: 2}, nil).Once()
	convRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	msgRepo.On("HideForUser", mock.Anything, 10, 1).Return(nil).Once()

	require.NoError(t, svc.DeleteForMe(context.Background(), 1, 10))
	notifier.AssertNotCalled(t, "EmitToUsers", mock.Anything, mock.Anything, mock.Anything)
	notifier.AssertNotCalled(t, "EmitToRoom", mock.Anything, mock.Anything, mock.Anything)
}

func TestReactReplacesExistingReaction(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	notifier := new(mocks.NotifierMock)
	svc := newMessageService(convRepo, msgRepo, notifier)

	reaction := models.Reaction{MessageID: 10, UserID: 1, Emoji: "❤️"}
	msgRepo.On("Get", mock.Anything, 10).Return(models.Message{ID: 10, ConversationID: 5, SenderID: 2}, nil).Once()
	convRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	msgRepo.On("UpsertReaction", mock.Anything, 10, 1, "❤️").Return(reaction, nil).Once()
	convRepo.On("Participants", mock.Anything, 5).Return([]int{1, 2}, nil).Once()
	notifier.On("EmitToUsers", []int{2}, models.EventReactionAdded, reaction).Return(1).Once()

	got, err := svc.React(context.Background(), 1, 10, "❤️")
	require.NoError(t, err)
	require.Equal(t, "❤️", got.Emoji)
}

func TestReactRejectsEmptyEmoji(t *testing.T) {
	svc := newMessageService(new(mocks.ConversationRepositoryMock), new(mocks.MessageRepositoryMock), new(mocks.NotifierMock))

	_, err := svc.React(context.Background(), 1, 10, "  ")
	require.ErrorIs(t, err, ErrEmptyReaction)
}

func TestRemoveAbsentReactionIsSilent(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	notifier := new(mocks.NotifierMock)
	svc := newMessageService(new(mocks.ConversationRepositoryMock), msgRepo, notifier)

	msgRepo.On("Get", mock.Anything, 10).Return(models.Message{ID: 10, ConversationID: 5}, nil).Once()
	msgRepo.On("DeleteReaction", mock.Anything, 10, 1).Return(false, nil).Once()

	require.NoError(t, svc.RemoveReaction(context.Background(), 1, 10))
	notifier.AssertNotCalled(t, "EmitToUsers", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	notifier := new(mocks.NotifierMock)
	svc := newMessageService(convRepo, msgRepo, notifier)

	msgRepo.On("Get", mock.Anything, 10).Return(models.Message{ID: 10, ConversationID: 5, SenderID: 2}, nil).Twice()
	convRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Twice()

	receipt := models.ReadReceipt{MessageID: 10, UserID: 1}
	msgRepo.On("MarkRead", mock.Anything, 10, 1).Return(receipt, true, nil).Once()
	// The receipt goes to everyone in the room except the reader.
	notifier.On("EmitToRoomExceptUser", models.ConversationRoom(5), models.EventMessageRead, receipt, 1).Return(1).Once()

	require.NoError(t, svc.MarkRead(context.Background(), 1, 10))

	// Second call inserts nothing and emits nothing.
	msgRepo.On("MarkRead", mock.Anything, 10, 1).Return(models.ReadReceipt{}, false, nil).Once()
	require.NoError(t, svc.MarkRead(context.Background(), 1, 10))

	notifier.AssertNumberOfCalls(t, "EmitToRoomExceptUser", 1)
}

func TestMarkReadOwnMessageIsNoOp(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	notifier := new(mocks.NotifierMock)
	svc := newMessageService(new(mocks.ConversationRepositoryMock), msgRepo, notifier)

	msgRepo.On("Get", mock.Anything, 10).Return(models.Message{ID: 10, ConversationID: 5, SenderID: 1}, nil).Once()

	require.NoError(t, svc.MarkRead(context.Background(), 1, 10))
	notifier.AssertNotCalled(t, "EmitToRoomExceptUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkConversationReadEmitsOnce(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	notifier := new(mocks.NotifierMock)
	svc := newMessageService(convRepo, msgRepo, notifier)

	convRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	msgRepo.On("MarkConversationRead", mock.Anything, 5, 1).Return(3, nil).Once()
	notifier.On("EmitToRoomExceptUser", models.ConversationRoom(5), models.EventMessagesRead, mock.Anything, 1).Return(1).Once()

	count, err := svc.MarkConversationRead(context.Background(), 1, 5)
	require.NoError(t, err)
	require.Equal(t, 3, count)
	notifier.AssertNumberOfCalls(t, "EmitToRoomExceptUser", 1)
}

func TestMarkConversationReadNothingUnreadEmitsNothing(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	notifier := new(mocks.NotifierMock)
	svc := newMessageService(convRepo, msgRepo, notifier)

	convRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	msgRepo.On("MarkConversationRead", mock.Anything, 5, 1).Return(0, nil).Once()

	count, err := svc.MarkConversationRead(context.Background(), 1, 5)
	require.NoError(t, err)
	require.Equal(t, 0, count)
	notifier.AssertNotCalled(t, "EmitToRoomExceptUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListForUserSanitizesTombstones(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	svc := newMessageService(convRepo, msgRepo, new(mocks.NotifierMock))

	convRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	msgRepo.On("ListForUser", mock.Anything, 5, 1).Return([]models.Message{
		{ID: 1, Content: "hello"},
		{ID: 2, Content: "secret", IsDeleted: true},
	}, nil).Once()
	msgRepo.On("Reactions", mock.Anything, 1).Return([]models.Reaction{}, nil).Once()
	msgRepo.On("ReadReceipts", mock.Anything, 1).Return([]models.ReadReceipt{}, nil).Once()

	msgs, err := svc.ListForUser(context.Background(), 1, 5)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "hello", msgs[0].Content)
	require.Equal(t, models.DeletedPlaceholder, msgs[1].Content)
}
