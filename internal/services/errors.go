package services

import "errors"

// Validation and authorization failures are resolved at each operation's
// boundary, before any durable write.
var (
	ErrNotParticipant   = errors.New("not a conversation participant")
	ErrNotSender        = errors.New("only the sender may do this")
	ErrNotAuthor        = errors.New("only the author may do this")
	ErrEmptyMessage     = errors.New("message needs content or media")
	ErrEmptyReaction    = errors.New("reaction emoji is required")
	ErrEmptyStory       = errors.New("story needs media or a text overlay")
	ErrEditWindowClosed = errors.New("message is too old to edit")
)
