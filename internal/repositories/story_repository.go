package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"realtime-service/internal/models"
)

var ErrStoryNotFound = errors.New("story not found")

// StoryRepository defines interactions for ephemeral stories.
type StoryRepository interface {
	Create(ctx context.Context, story models.Story) (models.Story, error)
	Get(ctx context.Context, storyID int) (models.Story, error)
	Feed(ctx context.Context, viewerID int, now time.Time) ([]models.Story, error)
	ListByAuthor(ctx context.Context, authorID int) ([]models.Story, error)
	RecordView(ctx context.Context, storyID int, viewerID int) (models.StoryView, bool, error)
	Viewers(ctx context.Context, storyID int) ([]models.StoryView, error)
	SetHighlight(ctx context.Context, storyID int, authorID int, highlight bool) error
	SetArchived(ctx context.Context, storyID int, authorID int, archived bool) error
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// StoryRepo is a sqlx implementation of StoryRepository.
type StoryRepo struct {
	db *sqlx.DB
}

// NewStoryRepo constructs a StoryRepo.
func NewStoryRepo(db *sqlx.DB) *StoryRepo {
	return &StoryRepo{db: db}
}

// views_count is recomputed from story_views on every read so it can never
// drift from the viewer list.
const storyColumns = `s.id, s.author_id, s.media_url, s.media_type, s.text_overlay, s.stickers,
    s.music, s.location, s.hide_from_users, s.allowed_users, s.expires_at,
    s.is_archived, s.is_highlight, s.created_at,
    (SELECT COUNT(*) FROM story_views v WHERE v.story_id = s.id) AS views_count`

// Create stores a story.
func (r *StoryRepo) Create(ctx context.Context, story models.Story) (models.Story, error) {
	var stored models.Story
	err := r.db.GetContext(ctx, &stored, `INSERT INTO stories AS s
        (author_id, media_url, media_type, text_overlay, stickers, music, location,
         hide_from_users, allowed_users, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING `+storyColumns,
		story.AuthorID, story.MediaURL, story.MediaType, story.TextOverlay, story.Stickers,
		story.Music, story.Location, story.HideFromUsers, story.AllowedUsers, story.ExpiresAt)
	return stored, err
}

// Get fetches a story by id. Privacy and expiry are evaluated by callers at
// read time, not baked in here.
func (r *StoryRepo) Get(ctx context.Context, storyID int) (models.Story, error) {
	var story models.Story
	err := r.db.GetContext(ctx, &story, `SELECT `+storyColumns+` FROM stories s WHERE s.id=$1`, storyID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Story{}, ErrStoryNotFound
	}
	return story, err
}

// Feed returns the stories currently visible to the viewer: unexpired or
// highlighted, not archived, and passing the privacy filter.
func (r *StoryRepo) Feed(ctx context.Context, viewerID int, now time.Time) ([]models.Story, error) {
	query := `SELECT ` + storyColumns + ` FROM stories s
        WHERE (s.expires_at > $2 OR s.is_highlight)
        AND s.is_archived = FALSE
        AND NOT ($1 = ANY(s.hide_from_users))
        AND (cardinality(s.allowed_users) = 0 OR s.author_id = $1 OR $1 = ANY(s.allowed_users))
        ORDER BY s.author_id, s.created_at ASC`
	var stories []models.Story
	err := r.db.SelectContext(ctx, &stories, query, viewerID, now)
	return stories, err
}

// ListByAuthor returns every story an author still owns, including archived
// and highlighted ones.
func (r *StoryRepo) ListByAuthor(ctx context.Context, authorID int) ([]models.Story, error) {
	var stories []models.Story
	err := r.db.SelectContext(ctx, &stories, `SELECT `+storyColumns+` FROM stories s
        WHERE s.author_id=$1 ORDER BY s.created_at ASC`, authorID)
	return stories, err
}

// RecordView inserts a viewer exactly once. The bool reports whether this
// call added the row; a repeat view leaves the list untouched.
func (r *StoryRepo) RecordView(ctx context.Context, storyID int, viewerID int) (models.StoryView, bool, error) {
	var view models.StoryView
	err := r.db.GetContext(ctx, &view, `INSERT INTO story_views (story_id, viewer_id)
        VALUES ($1, $2)
        ON CONFLICT (story_id, viewer_id) DO NOTHING
        RETURNING story_id, viewer_id, viewed_at`, storyID, viewerID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StoryView{}, false, nil
	}
	if err != nil {
		return models.StoryView{}, false, err
	}
	return view, true, nil
}

// Viewers lists who has seen the story, in view order.
func (r *StoryRepo) Viewers(ctx context.Context, storyID int) ([]models.StoryView, error) {
	var views []models.StoryView
	err := r.db.SelectContext(ctx, &views, `SELECT story_id, viewer_id, viewed_at
        FROM story_views WHERE story_id=$1 ORDER BY viewed_at ASC`, storyID)
	return views, err
}

// SetHighlight promotes or demotes a story. Author-scoped.
func (r *StoryRepo) SetHighlight(ctx context.Context, storyID int, authorID int, highlight bool) error {
	return r.setFlag(ctx, "is_highlight", storyID, authorID, highlight)
}

// SetArchived archives or unarchives a story. Author-scoped.
func (r *StoryRepo) SetArchived(ctx context.Context, storyID int, authorID int, archived bool) error {
	return r.setFlag(ctx, "is_archived", storyID, authorID, archived)
}

func (r *StoryRepo) setFlag(ctx context.Context, column string, storyID int, authorID int, value bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE stories SET `+column+`=$1 WHERE id=$2 AND author_id=$3`,
		value, storyID, authorID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrStoryNotFound
	}
	return nil
}

// PurgeExpired removes every story past its deadline that is neither a
// highlight nor archived. Safe to call repeatedly; already-purged stories
// simply no longer match.
func (r *StoryRepo) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM stories
        WHERE expires_at < $1 AND is_highlight = FALSE AND is_archived = FALSE`, now)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	return int(count), err
}
