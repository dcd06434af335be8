package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"realtime-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for conversation messages.
type MessageRepository interface {
	Create(ctx context.Context, msg models.Message) (models.Message, error)
	Get(ctx context.Context, messageID int) (models.Message, error)
	ListForUser(ctx context.Context, conversationID int, userID int) ([]models.Message, error)
	MarkEdited(ctx context.Context, messageID int, content string) (models.Message, error)
	TombstoneForAll(ctx context.Context, messageID int, senderID int) error
	HideForUser(ctx context.Context, messageID int, userID int) error
	UpsertReaction(ctx context.Context, messageID int, userID int, emoji string) (models.Reaction, error)
	DeleteReaction(ctx context.Context, messageID int, userID int) (bool, error)
	Reactions(ctx context.Context, messageID int) ([]models.Reaction, error)
	ReadReceipts(ctx context.Context, messageID int) ([]models.ReadReceipt, error)
	MarkRead(ctx context.Context, messageID int, userID int) (models.ReadReceipt, bool, error)
	MarkConversationRead(ctx context.Context, conversationID int, userID int) (int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, conversation_id, sender_id, msg_type, content, media_url, media_type,
    reply_to_id, is_edited, edited_at, is_deleted, deleted_at, created_at`

// Create stores a message.
func (r *MessageRepo) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	var stored models.Message
	err := r.db.GetContext(ctx, &stored, `INSERT INTO messages
        (conversation_id, sender_id, msg_type, content, media_url, media_type, reply_to_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING `+messageColumns,
		msg.ConversationID, msg.SenderID, msg.Type, msg.Content, msg.MediaURL, msg.MediaType, msg.ReplyToID)
	return stored, err
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListForUser returns ordered messages filtered per user visibility rules:
// rows the user deleted for themselves are excluded entirely, rows deleted
// for everyone stay (callers placeholder them).
func (r *MessageRepo) ListForUser(ctx context.Context, conversationID int, userID int) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages m
        WHERE m.conversation_id=$1
        AND NOT EXISTS (SELECT 1 FROM message_hidden h WHERE h.message_id = m.id AND h.user_id=$2)
        ORDER BY m.created_at ASC`
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, conversationID, userID)
	return msgs, err
}

// MarkEdited replaces the content and stamps the edit.
func (r *MessageRepo) MarkEdited(ctx context.Context, messageID int, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `UPDATE messages
        SET content=$1, is_edited=TRUE, edited_at=NOW()
        WHERE id=$2 AND is_deleted=FALSE
        RETURNING `+messageColumns, content, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// TombstoneForAll marks a message deleted for everyone. Content and media are
// cleared in place; the row survives as a placeholder.
func (r *MessageRepo) TombstoneForAll(ctx context.Context, messageID int, senderID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages
        SET is_deleted=TRUE, deleted_at=NOW(), content='', media_url=NULL, media_type=NULL
        WHERE id=$1 AND sender_id=$2`, messageID, senderID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// HideForUser marks a message deleted for one user only. Idempotent.
func (r *MessageRepo) HideForUser(ctx context.Context, messageID int, userID int) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO message_hidden (message_id, user_id)
        VALUES ($1, $2) ON CONFLICT (message_id, user_id) DO NOTHING`, messageID, userID)
	return err
}

// UpsertReaction stores the user's reaction, replacing any prior one. The
// replace happens in a single statement so racing reactions cannot duplicate.
func (r *MessageRepo) UpsertReaction(ctx context.Context, messageID int, userID int, emoji string) (models.Reaction, error) {
	var reaction models.Reaction
	err := r.db.GetContext(ctx, &reaction, `INSERT INTO message_reactions (message_id, user_id, emoji)
        VALUES ($1, $2, $3)
        ON CONFLICT (message_id, user_id) DO UPDATE SET emoji=EXCLUDED.emoji, created_at=NOW()
        RETURNING message_id, user_id, emoji, created_at`, messageID, userID, emoji)
	return reaction, err
}

// DeleteReaction removes the user's reaction if present.
func (r *MessageRepo) DeleteReaction(ctx context.Context, messageID int, userID int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM message_reactions WHERE message_id=$1 AND user_id=$2`, messageID, userID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

// Reactions lists the live reactions on a message.
func (r *MessageRepo) Reactions(ctx context.Context, messageID int) ([]models.Reaction, error) {
	var reactions []models.Reaction
	err := r.db.SelectContext(ctx, &reactions, `SELECT message_id, user_id, emoji, created_at
        FROM message_reactions WHERE message_id=$1 ORDER BY created_at ASC`, messageID)
	return reactions, err
}

// ReadReceipts lists who has read a message.
func (r *MessageRepo) ReadReceipts(ctx context.Context, messageID int) ([]models.ReadReceipt, error) {
	var receipts []models.ReadReceipt
	err := r.db.SelectContext(ctx, &receipts, `SELECT message_id, user_id, read_at
        FROM message_reads WHERE message_id=$1 ORDER BY read_at ASC`, messageID)
	return receipts, err
}

// MarkRead records a read receipt once per user. The bool reports whether
// this call inserted the receipt; re-marking is a no-op.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID int, userID int) (models.ReadReceipt, bool, error) {
	var receipt models.ReadReceipt
	err := r.db.GetContext(ctx, &receipt, `INSERT INTO message_reads (message_id, user_id)
        VALUES ($1, $2)
        ON CONFLICT (message_id, user_id) DO NOTHING
        RETURNING message_id, user_id, read_at`, messageID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ReadReceipt{}, false, nil
	}
	if err != nil {
		return models.ReadReceipt{}, false, err
	}
	return receipt, true, nil
}

// MarkConversationRead sweeps receipts over every unread message in the
// conversation not sent by the user, in one statement.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationID int, userID int) (int, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO message_reads (message_id, user_id)
        SELECT m.id, $2 FROM messages m
        WHERE m.conversation_id=$1 AND m.sender_id<>$2
        ON CONFLICT (message_id, user_id) DO NOTHING`, conversationID, userID)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	return int(count), err
}
