package types

import "encoding/json"

// Push frame types delivered over the realtime channel.
const (
	EventNewPrivateMessage = "new_private_message"
	EventUserTyping        = "user_typing"
	EventUserOnlineStatus  = "user_online_status"
	EventUserRegistered    = "user_registered"
	EventCommentCreated    = "comment.created"
	EventCommentReaction   = "comment.reaction"
	EventPostReaction      = "post.reaction"

	// Synthetic events emitted by the transport itself, never by the server.
	EventChannelReady = "channel_ready"
	EventChannelDown  = "channel_down"
)

// Event is one decoded frame from the realtime channel.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TypingEvent is the payload of user_typing frames.
type TypingEvent struct {
	FromUserID int64  `json:"from_user_id"`
	Username   string `json:"username"`
	IsTyping   bool   `json:"is_typing"`
}

// PresenceEvent is the payload of user_online_status frames.
type PresenceEvent struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	IsOnline bool   `json:"is_online"`
}

// RegisteredEvent is the payload of user_registered frames.
type RegisteredEvent struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// CommentCreatedEvent is the payload of comment.created frames.
type CommentCreatedEvent struct {
	PostID    int64  `json:"post_id"`
	CommentID int64  `json:"comment_id"`
	Username  string `json:"username"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// CommentReactionEvent is the payload of comment.reaction frames.
type CommentReactionEvent struct {
	CommentID int64 `json:"comment_id"`
	Likes     int   `json:"likes"`
	Dislikes  int   `json:"dislikes"`
}

// PostReactionEvent is the payload of post.reaction frames.
type PostReactionEvent struct {
	PostID   int64 `json:"post_id"`
	Likes    int   `json:"likes"`
	Dislikes int   `json:"dislikes"`
}
