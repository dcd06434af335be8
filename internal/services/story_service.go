package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/lib/pq"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/repositories"
)

// DefaultStoryTTL is how long a story stays visible unless highlighted.
const DefaultStoryTTL = 24 * time.Hour

// StoryService owns the ephemeral content lifecycle: creation, viewer
// dedup, privacy filtering, highlight promotion and expiry-driven purge.
type StoryService struct {
	stories  repositories.StoryRepository
	notifier Notifier
	now      func() time.Time
	ttl      time.Duration
}

// NewStoryService constructs a StoryService.
func NewStoryService(stories repositories.StoryRepository, notifier Notifier, ttl time.Duration) *StoryService {
	if ttl <= 0 {
		ttl = DefaultStoryTTL
	}
	return &StoryService{
		stories:  stories,
		notifier: notifier,
		now:      time.Now,
		ttl:      ttl,
	}
}

// CreateStoryInput carries a new story's payload.
type CreateStoryInput struct {
	MediaURL      *string
	MediaType     *string
	TextOverlay   *string
	Stickers      json.RawMessage
	Music         *string
	Location      *string
	HideFromUsers []int64
	AllowedUsers  []int64
}

// Create stores a story with the default expiry window.
func (s *StoryService) Create(ctx context.Context, authorID int, in CreateStoryInput) (models.Story, error) {
	if in.MediaURL == nil && in.TextOverlay == nil {
		return models.Story{}, ErrEmptyStory
	}

	return s.stories.Create(ctx, models.Story{
		AuthorID:      authorID,
		MediaURL:      in.MediaURL,
		MediaType:     in.MediaType,
		TextOverlay:   in.TextOverlay,
		Stickers:      in.Stickers,
		Music:         in.Music,
		Location:      in.Location,
		HideFromUsers: pq.Int64Array(in.HideFromUsers),
		AllowedUsers:  pq.Int64Array(in.AllowedUsers),
		ExpiresAt:     s.now().Add(s.ttl),
	})
}

// View records a view exactly once per viewer and notifies the author's
// personal room. The author viewing their own story is a no-op. The bool
// reports whether this call added the viewer.
func (s *StoryService) View(ctx context.Context, viewerID int, viewerName string, storyID int) (bool, error) {
	story, err := s.visibleStory(ctx, viewerID, storyID)
	if err != nil {
		return false, err
	}
	if story.AuthorID == viewerID {
		return false, nil
	}

	view, inserted, err := s.stories.RecordView(ctx, storyID, viewerID)
	if err != nil || !inserted {
		return false, err
	}

	s.notifier.EmitToUser(story.AuthorID, models.EventStoryViewed, map[string]interface{}{
		"story_id":  storyID,
		"viewer_id": viewerID,
		"username":  viewerName,
		"viewed_at": view.ViewedAt,
	})
	return true, nil
}

// GetForViewer returns a story as one viewer may see it. Privacy-hidden and
// expired stories collapse into not-found so their existence never leaks.
// Viewer identities are included only for the author.
func (s *StoryService) GetForViewer(ctx context.Context, viewerID int, storyID int) (models.Story, error) {
	story, err := s.visibleStory(ctx, viewerID, storyID)
	if err != nil {
		return models.Story{}, err
	}
	if story.AuthorID == viewerID {
		if story.Viewers, err = s.stories.Viewers(ctx, storyID); err != nil {
			return models.Story{}, err
		}
	}
	return story, nil
}

func (s *StoryService) visibleStory(ctx context.Context, viewerID int, storyID int) (models.Story, error) {
	story, err := s.stories.Get(ctx, storyID)
	if err != nil {
		return models.Story{}, err
	}
	if !story.VisibleTo(viewerID) {
		return models.Story{}, repositories.ErrStoryNotFound
	}
	if story.AuthorID != viewerID && (story.IsExpired(s.now()) || story.IsArchived) {
		return models.Story{}, repositories.ErrStoryNotFound
	}
	return story, nil
}

// Feed returns the active stories visible to the viewer.
func (s *StoryService) Feed(ctx context.Context, viewerID int) ([]models.Story, error) {
	return s.stories.Feed(ctx, viewerID, s.now())
}

// ListOwn returns everything the author still owns.
func (s *StoryService) ListOwn(ctx context.Context, authorID int) ([]models.Story, error) {
	return s.stories.ListByAuthor(ctx, authorID)
}

// Viewers lists who has seen the story. Author-only.
func (s *StoryService) Viewers(ctx context.Context, callerID int, storyID int) ([]models.StoryView, error) {
	story, err := s.stories.Get(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story.AuthorID != callerID {
		return nil, ErrNotAuthor
	}
	return s.stories.Viewers(ctx, storyID)
}

// SetHighlight promotes a story to a permanent highlight or demotes it back.
// Demotion does NOT reset expires_at: a story whose window already passed
// becomes expired the moment it loses highlight status and is purgeable
// again. Immediate re-expiry is the chosen behavior, not an accident.
func (s *StoryService) SetHighlight(ctx context.Context, callerID int, storyID int, highlight bool) error {
	story, err := s.stories.Get(ctx, storyID)
	if err != nil {
		return err
	}
	if story.AuthorID != callerID {
		return ErrNotAuthor
	}
	return s.stories.SetHighlight(ctx, storyID, callerID, highlight)
}

// SetArchived archives or unarchives a story. Author-only.
func (s *StoryService) SetArchived(ctx context.Context, callerID int, storyID int, archived bool) error {
	story, err := s.stories.Get(ctx, storyID)
	if err != nil {
		return err
	}
	if story.AuthorID != callerID {
		return ErrNotAuthor
	}
	return s.stories.SetArchived(ctx, storyID, callerID, archived)
}

// Purge removes every expired, non-highlight, non-archived story. Idempotent;
// a story already purged simply no longer matches.
func (s *StoryService) Purge(ctx context.Context) (int, error) {
	count, err := s.stories.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		observability.AddStoriesPurged(count)
		log.Printf("purged %d expired stories", count)
	}
	return count, nil
}
