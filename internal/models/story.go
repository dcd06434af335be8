package models

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// Story is a piece of ephemeral content. Expiry is never stored as a flag;
// it is derived from (now, expires_at, is_highlight) so it cannot go stale.
type Story struct {
	ID            int             `db:"id" json:"id"`
	AuthorID      int             `db:"author_id" json:"author_id"`
	MediaURL      *string         `db:"media_url" json:"media_url,omitempty"`
	MediaType     *string         `db:"media_type" json:"media_type,omitempty"`
	TextOverlay   *string         `db:"text_overlay" json:"text_overlay,omitempty"`
	Stickers      json.RawMessage `db:"stickers" json:"stickers,omitempty"`
	Music         *string         `db:"music" json:"music,omitempty"`
	Location      *string         `db:"location" json:"location,omitempty"`
	HideFromUsers pq.Int64Array   `db:"hide_from_users" json:"-"`
	AllowedUsers  pq.Int64Array   `db:"allowed_users" json:"-"`
	ExpiresAt     time.Time       `db:"expires_at" json:"expires_at"`
	IsArchived    bool            `db:"is_archived" json:"is_archived"`
	IsHighlight   bool            `db:"is_highlight" json:"is_highlight"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`

	// ViewsCount is always the live length of the viewer list, never an
	// independently incremented counter.
	ViewsCount int         `db:"views_count" json:"views_count"`
	Viewers    []StoryView `json:"viewers,omitempty"`
}

// StoryView records one viewer of a story, unique per (story, viewer).
type StoryView struct {
	StoryID  int       `db:"story_id" json:"story_id"`
	ViewerID int       `db:"viewer_id" json:"viewer_id"`
	ViewedAt time.Time `db:"viewed_at" json:"viewed_at"`
}

// IsExpired reports whether the story is past its deadline. Highlights are
// exempt regardless of expires_at.
func (s Story) IsExpired(now time.Time) bool {
	return !s.IsHighlight && now.After(s.ExpiresAt)
}

// VisibleTo evaluates the story's privacy settings for a viewer. The author
// always sees their own story.
func (s Story) VisibleTo(userID int) bool {
	if userID == s.AuthorID {
		return true
	}
	for _, hidden := range s.HideFromUsers {
		if int(hidden) == userID {
			return false
		}
	}
	if len(s.AllowedUsers) == 0 {
		return true
	}
	for _, allowed := range s.AllowedUsers {
		if int(allowed) == userID {
			return true
		}
	}
	return false
}
