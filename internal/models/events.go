package models

import "fmt"

// Realtime event names emitted to clients.
const (
	EventNewMessage        = "new_message"
	EventMessageSent       = "message_sent"
	EventMessageError      = "message_error"
	EventMessageEdited     = "message_edited"
	EventMessageDeleted    = "message_deleted"
	EventMessageRead       = "message_read"
	EventMessagesRead      = "messages_read"
	EventReactionAdded     = "message_reaction_added"
	EventReactionRemoved   = "message_reaction_removed"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
	EventUserOnline        = "user_online"
	EventUserOffline       = "user_offline"
	EventStoryViewed       = "story_viewed"
	EventPostLiked         = "post_liked"
	EventReelLiked         = "reel_liked"
	EventNewComment        = "new_comment"
	EventNewFollow         = "new_follow"
)

// Client action names received over the websocket.
const (
	ActionJoinConversation  = "join_conversation"
	ActionLeaveConversation = "leave_conversation"
	ActionSendMessage       = "send_message"
	ActionTypingStart       = "typing_start"
	ActionTypingStop        = "typing_stop"
	ActionMarkMessageRead   = "mark_message_read"
	ActionLikePost          = "like_post"
	ActionLikeReel          = "like_reel"
	ActionNewComment        = "new_comment"
	ActionNewFollow         = "new_follow"
	ActionViewStory         = "view_story"
)

// RealtimeEvent is the envelope written to websocket clients.
type RealtimeEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// ClientAction is the envelope read from websocket clients.
type ClientAction struct {
	Action         string  `json:"action"`
	ConversationID int     `json:"conversation_id,omitempty"`
	MessageID      int     `json:"message_id,omitempty"`
	StoryID        int     `json:"story_id,omitempty"`
	PostID         int     `json:"post_id,omitempty"`
	ReelID         int     `json:"reel_id,omitempty"`
	CommentID      int     `json:"comment_id,omitempty"`
	TargetUserID   int     `json:"target_user_id,omitempty"`
	Content        string  `json:"content,omitempty"`
	MediaURL       *string `json:"media_url,omitempty"`
	MediaType      *string `json:"media_type,omitempty"`
	ReplyToID      *int    `json:"reply_to_id,omitempty"`
	Emoji          string  `json:"emoji,omitempty"`
}

// UserRoom is the personal notification room, joined at connect time and
// never left.
func UserRoom(userID int) string {
	return fmt.Sprintf("user:%d", userID)
}

// ConversationRoom scopes message and typing traffic to participants
// currently viewing a conversation.
func ConversationRoom(conversationID int) string {
	return fmt.Sprintf("conversation:%d", conversationID)
}
