package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"realtime-service/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	CreateOrGetDirect(ctx context.Context, userID int, otherID int) (models.Conversation, error)
	CreateGroup(ctx context.Context, name string, ownerID int, memberIDs []int) (models.Conversation, error)
	Get(ctx context.Context, conversationID int) (models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID int, userID int) (bool, error)
	Participants(ctx context.Context, conversationID int) ([]int, error)
	List(ctx context.Context, userID int) ([]models.ConversationSummary, error)
	SetArchived(ctx context.Context, conversationID int, userID int, archived bool) error
	SetMuted(ctx context.Context, conversationID int, userID int, muted bool) error
	SetPinned(ctx context.Context, conversationID int, userID int, pinned bool) error
	TouchActivity(ctx context.Context, conversationID int, messageID int) error
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `id, conv_type, name, direct_key, last_message_id, last_activity_at, created_at`

// CreateOrGetDirect returns the unique direct conversation for an unordered
// user pair, creating it on first use. Two racing creators resolve through
// the UNIQUE constraint on direct_key rather than a pre-check.
func (r *ConversationRepo) CreateOrGetDirect(ctx context.Context, userID int, otherID int) (models.Conversation, error) {
	if userID == otherID {
		return models.Conversation{}, errors.New("cannot start a conversation with yourself")
	}
	lo, hi := userID, otherID
	if lo > hi {
		lo, hi = hi, lo
	}
	key := fmt.Sprintf("%d:%d", lo, hi)

	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `INSERT INTO conversations (conv_type, direct_key) VALUES ($1, $2)
        ON CONFLICT (direct_key) DO NOTHING
        RETURNING `+conversationColumns, models.ConversationDirect, key)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the race or the conversation already existed.
		err = r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE direct_key=$1`, key)
	}
	if err != nil {
		return models.Conversation{}, err
	}

	for _, id := range []int{lo, hi} {
		if _, err := r.db.ExecContext(ctx, `INSERT INTO conversation_participants (conversation_id, user_id)
            VALUES ($1, $2) ON CONFLICT (conversation_id, user_id) DO NOTHING`, conv.ID, id); err != nil {
			return models.Conversation{}, err
		}
	}
	return conv, nil
}

// CreateGroup creates a group conversation with the owner and members.
func (r *ConversationRepo) CreateGroup(ctx context.Context, name string, ownerID int, memberIDs []int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `INSERT INTO conversations (conv_type, name) VALUES ($1, $2)
        RETURNING `+conversationColumns, models.ConversationGroup, name)
	if err != nil {
		return models.Conversation{}, err
	}

	seen := map[int]struct{}{ownerID: {}}
	ids := []int{ownerID}
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, id := range ids {
		if _, err := r.db.ExecContext(ctx, `INSERT INTO conversation_participants (conversation_id, user_id)
            VALUES ($1, $2) ON CONFLICT (conversation_id, user_id) DO NOTHING`, conv.ID, id); err != nil {
			return models.Conversation{}, err
		}
	}
	return conv, nil
}

// Get fetches a conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// IsParticipant checks whether a user belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM conversation_participants
        WHERE conversation_id=$1 AND user_id=$2)`, conversationID, userID)
	return exists, err
}

// Participants returns the user ids in a conversation.
func (r *ConversationRepo) Participants(ctx context.Context, conversationID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM conversation_participants
        WHERE conversation_id=$1 ORDER BY user_id`, conversationID)
	return ids, err
}

// List returns the conversations visible to the user with per-user overlays,
// pinned first, then by recency.
func (r *ConversationRepo) List(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	query := `SELECT c.id, c.conv_type, c.name, c.last_activity_at, c.created_at,
            cp.archived, cp.muted, cp.pinned
        FROM conversations c
        JOIN conversation_participants cp ON cp.conversation_id = c.id AND cp.user_id=$1
        ORDER BY cp.pinned DESC, c.last_activity_at DESC`
	var summaries []models.ConversationSummary
	if err := r.db.SelectContext(ctx, &summaries, query, userID); err != nil {
		return nil, err
	}

	for i := range summaries {
		var ids pq.Int64Array
		if err := r.db.GetContext(ctx, &ids, `SELECT ARRAY_AGG(user_id ORDER BY user_id)
            FROM conversation_participants WHERE conversation_id=$1`, summaries[i].ID); err != nil {
			return nil, err
		}
		for _, id := range ids {
			summaries[i].Participants = append(summaries[i].Participants, int(id))
		}
	}
	return summaries, nil
}

// SetArchived flips the archived overlay for one participant.
func (r *ConversationRepo) SetArchived(ctx context.Context, conversationID int, userID int, archived bool) error {
	return r.setOverlay(ctx, "archived", conversationID, userID, archived)
}

// SetMuted flips the muted overlay for one participant.
func (r *ConversationRepo) SetMuted(ctx context.Context, conversationID int, userID int, muted bool) error {
	return r.setOverlay(ctx, "muted", conversationID, userID, muted)
}

// SetPinned flips the pinned overlay for one participant.
func (r *ConversationRepo) SetPinned(ctx context.Context, conversationID int, userID int, pinned bool) error {
	return r.setOverlay(ctx, "pinned", conversationID, userID, pinned)
}

func (r *ConversationRepo) setOverlay(ctx context.Context, column string, conversationID int, userID int, value bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE conversation_participants SET `+column+`=$1
        WHERE conversation_id=$2 AND user_id=$3`, value, conversationID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// TouchActivity records the latest message and bumps last activity.
func (r *ConversationRepo) TouchActivity(ctx context.Context, conversationID int, messageID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET last_message_id=$1, last_activity_at=NOW()
        WHERE id=$2`, messageID, conversationID)
	return err
}
