package types

import (
	"time"
)

// Session identifies the logged-in user for the lifetime of the client.
type Session struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// Contact is one row of the contact directory.
type Contact struct {
	UserID         int64  `json:"user_id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture"`
	IsOnline       bool   `json:"is_online"`
	// LastMessageTime is the timestamp of the most recent private message
	// exchanged with this contact. Zero when no conversation exists yet.
	LastMessageTime time.Time `json:"-"`
}

// HasActivity reports whether any message has ever been exchanged.
func (c Contact) HasActivity() bool {
	return !c.LastMessageTime.IsZero()
}

// Message is a private message, either confirmed by the server or still
// pending (optimistically inserted before the send round-trip completes).
type Message struct {
	ID         int64     `json:"id"`
	FromUserID int64     `json:"from_user_id"`
	ToUserID   int64     `json:"to_user_id"`
	Username   string    `json:"username,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`

	// LocalID is set on optimistic inserts until the server record
	// replaces them. Never assigned by the server.
	LocalID string `json:"-"`
}

// Pending reports whether the message is still awaiting server confirmation.
func (m Message) Pending() bool {
	return m.LocalID != "" && m.ID == 0
}

// Comment is one comment under a feed post.
type Comment struct {
	CommentID  int64     `json:"comment_id"`
	PostID     int64     `json:"post_id"`
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	Likes      int       `json:"likes"`
	Dislikes   int       `json:"dislikes"`
	MyReaction string    `json:"my_reaction,omitempty"`
}

// Notification is a transient unread-message notice shown to the user.
type Notification struct {
	ID            string
	ContactUserID int64
	Username      string
	Preview       string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}
