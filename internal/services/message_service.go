package services

import (
	"context"
	"strings"
	"time"

	"realtime-service/internal/models"
	"realtime-service/internal/repositories"
)

// EditWindow bounds how long after creation the sender may edit a message.
// The boundary itself counts as expired.
const EditWindow = 15 * time.Minute

// MessageService owns the message lifecycle: send, edit, the two delete
// tiers, reactions and read receipts. Every mutation validates before it
// writes and broadcasts a full snapshot of the changed entity afterwards.
type MessageService struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	notifier      Notifier
	now           func() time.Time
	editWindow    time.Duration
}

// NewMessageService constructs a MessageService.
func NewMessageService(conversations repositories.ConversationRepository, messages repositories.MessageRepository, notifier Notifier) *MessageService {
	return &MessageService{
		conversations: conversations,
		messages:      messages,
		notifier:      notifier,
		now:           time.Now,
		editWindow:    EditWindow,
	}
}

// SendMessageInput carries everything needed to create a message.
type SendMessageInput struct {
	ConversationID int
	Content        string
	MediaURL       *string
	MediaType      *string
	ReplyToID      *int
}

// Send persists a message and fans out new_message to the other
// participants' personal rooms, so delivery does not depend on the recipient
// currently viewing the thread.
func (s *MessageService) Send(ctx context.Context, senderID int, in SendMessageInput) (models.Message, error) {
	participants, err := s.conversations.Participants(ctx, in.ConversationID)
	if err != nil {
		return models.Message{}, err
	}
	if len(participants) == 0 {
		return models.Message{}, repositories.ErrConversationNotFound
	}
	if !contains(participants, senderID) {
		return models.Message{}, ErrNotParticipant
	}

	content := strings.TrimSpace(in.Content)
	if content == "" && in.MediaURL == nil {
		return models.Message{}, ErrEmptyMessage
	}

	msgType := models.MessageTypeText
	if in.MediaURL != nil {
		msgType = models.MessageTypeMedia
	}

	msg, err := s.messages.Create(ctx, models.Message{
		ConversationID: in.ConversationID,
		SenderID:       senderID,
		Type:           msgType,
		Content:        content,
		MediaURL:       in.MediaURL,
		MediaType:      in.MediaType,
		ReplyToID:      in.ReplyToID,
	})
	if err != nil {
		return models.Message{}, err
	}

	if err := s.conversations.TouchActivity(ctx, in.ConversationID, msg.ID); err != nil {
		return models.Message{}, err
	}

	s.notifier.EmitToUsers(exclude(participants, senderID), models.EventNewMessage, msg)
	return msg, nil
}

// Edit replaces a message's content. Sender-only, and only strictly inside
// the edit window.
func (s *MessageService) Edit(ctx context.Context, userID int, messageID int, content string) (models.Message, error) {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.SenderID != userID {
		return models.Message{}, ErrNotSender
	}
	if msg.IsDeleted {
		return models.Message{}, repositories.ErrMessageNotFound
	}
	if s.now().Sub(msg.CreatedAt) >= s.editWindow {
		return models.Message{}, ErrEditWindowClosed
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, ErrEmptyMessage
	}

	updated, err := s.messages.MarkEdited(ctx, messageID, content)
	if err != nil {
		return models.Message{}, err
	}

	participants, err := s.conversations.Participants(ctx, msg.ConversationID)
	if err != nil {
		return models.Message{}, err
	}
	s.notifier.EmitToUsers(exclude(participants, userID), models.EventMessageEdited, updated)
	return updated, nil
}

// DeleteForEveryone tombstones a message for all participants. Sender-only.
func (s *MessageService) DeleteForEveryone(ctx context.Context, userID int, messageID int) error {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return ErrNotSender
	}

	if err := s.messages.TombstoneForAll(ctx, messageID, userID); err != nil {
		return err
	}

	participants, err := s.conversations.Participants(ctx, msg.ConversationID)
	if err != nil {
		return err
	}
	s.notifier.EmitToUsers(participants, models.EventMessageDeleted, map[string]interface{}{
		"message_id":      messageID,
		"conversation_id": msg.ConversationID,
		"scope":           "everyone",
	})
	return nil
}

// DeleteForMe hides a message for the caller only. Any participant may do
// this; nobody else is notified and nobody else's view changes.
func (s *MessageService) DeleteForMe(ctx context.Context, userID int, messageID int) error {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}
	member, err := s.conversations.IsParticipant(ctx, msg.ConversationID, userID)
	if err != nil {
		return err
	}
	if !member {
		return ErrNotParticipant
	}
	return s.messages.HideForUser(ctx, messageID, userID)
}

// React adds or replaces the user's reaction. The upsert is a single
// conditional write, so a user can never hold two live reactions on one
// message.
func (s *MessageService) React(ctx context.Context, userID int, messageID int, emoji string) (models.Reaction, error) {
	if strings.TrimSpace(emoji) == "" {
		return models.Reaction{}, ErrEmptyReaction
	}

	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return models.Reaction{}, err
	}
	if msg.IsDeleted {
		return models.Reaction{}, repositories.ErrMessageNotFound
	}
	member, err := s.conversations.IsParticipant(ctx, msg.ConversationID, userID)
	if err != nil {
		return models.Reaction{}, err
	}
	if !member {
		return models.Reaction{}, ErrNotParticipant
	}

	reaction, err := s.messages.UpsertReaction(ctx, messageID, userID, emoji)
	if err != nil {
		return models.Reaction{}, err
	}

	participants, err := s.conversations.Participants(ctx, msg.ConversationID)
	if err != nil {
		return models.Reaction{}, err
	}
	s.notifier.EmitToUsers(exclude(participants, userID), models.EventReactionAdded, reaction)
	return reaction, nil
}

// RemoveReaction deletes the user's reaction if present.
func (s *MessageService) RemoveReaction(ctx context.Context, userID int, messageID int) error {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}

	removed, err := s.messages.DeleteReaction(ctx, messageID, userID)
	if err != nil || !removed {
		return err
	}

	participants, err := s.conversations.Participants(ctx, msg.ConversationID)
	if err != nil {
		return err
	}
	s.notifier.EmitToUsers(exclude(participants, userID), models.EventReactionRemoved, map[string]interface{}{
		"message_id":      messageID,
		"conversation_id": msg.ConversationID,
		"user_id":         userID,
	})
	return nil
}

// MarkRead records a read receipt, once. Re-marking an already-read message
// is a no-op and emits nothing.
func (s *MessageService) MarkRead(ctx context.Context, userID int, messageID int) error {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID == userID {
		return nil
	}
	member, err := s.conversations.IsParticipant(ctx, msg.ConversationID, userID)
	if err != nil {
		return err
	}
	if !member {
		return ErrNotParticipant
	}

	receipt, inserted, err := s.messages.MarkRead(ctx, messageID, userID)
	if err != nil || !inserted {
		return err
	}

	s.notifier.EmitToRoomExceptUser(models.ConversationRoom(msg.ConversationID), models.EventMessageRead, receipt, userID)
	return nil
}

// MarkConversationRead sweeps receipts over every unread message not sent by
// the caller and emits a single messages_read event, not one per message.
func (s *MessageService) MarkConversationRead(ctx context.Context, userID int, conversationID int) (int, error) {
	member, err := s.conversations.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	if !member {
		return 0, ErrNotParticipant
	}

	count, err := s.messages.MarkConversationRead(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.notifier.EmitToRoomExceptUser(models.ConversationRoom(conversationID), models.EventMessagesRead, map[string]interface{}{
			"conversation_id": conversationID,
			"user_id":         userID,
			"count":           count,
		}, userID)
	}
	return count, nil
}

// ListForUser returns the conversation's messages as the user should see
// them: their own hidden messages excluded, tombstones placeholdered, live
// reactions and receipts attached.
func (s *MessageService) ListForUser(ctx context.Context, userID int, conversationID int) ([]models.Message, error) {
	member, err := s.conversations.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotParticipant
	}

	msgs, err := s.messages.ListForUser(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	result := make([]models.Message, 0, len(msgs))
	for _, msg := range msgs {
		if !msg.IsDeleted {
			if msg.Reactions, err = s.messages.Reactions(ctx, msg.ID); err != nil {
				return nil, err
			}
			if msg.ReadBy, err = s.messages.ReadReceipts(ctx, msg.ID); err != nil {
				return nil, err
			}
		}
		result = append(result, msg.Sanitized())
	}
	return result, nil
}

func contains(ids []int, id int) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func exclude(ids []int, id int) []int {
	result := make([]int, 0, len(ids))
	for _, candidate := range ids {
		if candidate != id {
			result = append(result, candidate)
		}
	}
	return result
}
