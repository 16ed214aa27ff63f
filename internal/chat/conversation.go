// Package chat implements the private-message conversation engine and
// its terminal UI: optimistic sends reconciled against server records,
// cursor-based history, and the typing heartbeat.
package chat

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/manar-alshaikh/rtf-client/internal/core"
	"github.com/manar-alshaikh/rtf-client/internal/types"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrNoConversation = errors.New("no open conversation")
	ErrPartnerOffline = errors.New("contact is offline")
)

// dedupWindow is the tolerance of the fallback duplicate check: a push
// frame matching an existing message's sender and content within this
// window is treated as an echo even without a usable id.
const dedupWindow = 2 * time.Second

// Incoming classifies how a push frame was absorbed.
type Incoming int

const (
	// IncomingIgnored: not addressed to the open conversation.
	IncomingIgnored Incoming = iota
	// IncomingDuplicate: an echo of a message already in the buffer.
	IncomingDuplicate
	// IncomingAppended: a genuinely new message, now in the buffer.
	IncomingAppended
)

// Conversation is the reconciliation engine for one open private
// conversation. Not safe for concurrent use; every mutation happens on
// the event loop, and async completions carry the epoch they were
// issued under so stale ones can be discarded after a switch.
type Conversation struct {
	self         types.Session
	initialLimit int
	olderLimit   int

	epoch   int
	open    bool
	contact types.Contact

	messages []types.Message
	// expected holds server ids returned by our own sends whose push
	// echo has not arrived yet.
	expected map[int64]struct{}

	loaded       bool
	hasMore      bool
	page         int
	pendingPage  int
	loadingOlder bool

	// typing holds users currently typing to us, id -> username.
	typing map[int64]string
}

// NewConversation creates an engine for the given session user.
func NewConversation(self types.Session, initialLimit, olderLimit int) *Conversation {
	if initialLimit <= 0 {
		initialLimit = 20
	}
	if olderLimit <= 0 {
		olderLimit = 15
	}
	return &Conversation{
		self:         self,
		initialLimit: initialLimit,
		olderLimit:   olderLimit,
	}
}

// Open activates a conversation with the given contact, discarding all
// state from any previous one. Returns the new epoch; completions of
// requests issued before the switch no longer match and are dropped.
func (c *Conversation) Open(contact types.Contact) int {
	c.epoch++
	c.open = true
	c.contact = contact
	c.messages = nil
	c.expected = make(map[int64]struct{})
	c.loaded = false
	c.hasMore = false
	c.page = 0
	c.pendingPage = 0
	c.loadingOlder = false
	c.typing = make(map[int64]string)
	return c.epoch
}

// Close deactivates the conversation.
func (c *Conversation) Close() {
	c.epoch++
	c.open = false
	c.messages = nil
	c.expected = nil
	c.loaded = false
	c.hasMore = false
	c.loadingOlder = false
	c.typing = nil
}

// IsOpen reports whether a conversation is active.
func (c *Conversation) IsOpen() bool { return c.open }

// Epoch returns the current epoch for tagging async requests.
func (c *Conversation) Epoch() int { return c.epoch }

// Contact returns the open conversation's partner.
func (c *Conversation) Contact() types.Contact { return c.contact }

// Messages returns the buffer in display order, oldest first.
func (c *Conversation) Messages() []types.Message { return c.messages }

// Loaded reports whether the initial history page has been applied.
func (c *Conversation) Loaded() bool { return c.loaded }

// HasMore reports whether older history may still exist on the server.
func (c *Conversation) HasMore() bool { return c.hasMore }

// SetPartnerOnline records a presence flip for the open partner.
// Returns true when the flag actually changed. Going offline clears the
// typing display.
func (c *Conversation) SetPartnerOnline(online bool) bool {
	if !c.open || c.contact.IsOnline == online {
		return false
	}
	c.contact.IsOnline = online
	if !online {
		c.typing = make(map[int64]string)
	}
	return true
}

// InitialQuery describes the first history fetch for the open
// conversation: newest page, full initial limit.
func (c *Conversation) InitialQuery() (targetUserID int64, page, limit int) {
	return c.contact.UserID, 1, c.initialLimit
}

// ApplyInitial installs the newest history page. Messages arrive in
// chronological order. Stale epochs are dropped.
func (c *Conversation) ApplyInitial(epoch int, msgs []types.Message, hasMore bool) bool {
	if !c.open || epoch != c.epoch {
		return false
	}
	c.messages = append([]types.Message(nil), msgs...)
	c.loaded = true
	c.hasMore = hasMore
	c.page = 1
	return true
}

// NextOlderQuery reserves the next older history page. Returns ok=false
// while the initial page is missing, a fetch is already in flight, or
// history is exhausted, so repeated scroll triggers cannot stack
// requests.
func (c *Conversation) NextOlderQuery() (targetUserID int64, page, limit int, ok bool) {
	if !c.open || !c.loaded || !c.hasMore || c.loadingOlder {
		return 0, 0, 0, false
	}
	c.loadingOlder = true
	c.pendingPage = c.page + 1
	return c.contact.UserID, c.pendingPage, c.olderLimit, true
}

// ApplyOlder prepends an older history page, skipping any message whose
// id is already buffered. Returns the number of messages added.
func (c *Conversation) ApplyOlder(epoch int, msgs []types.Message, hasMore bool) (int, bool) {
	if !c.open || epoch != c.epoch {
		return 0, false
	}
	c.loadingOlder = false
	c.page = c.pendingPage
	c.hasMore = hasMore

	seen := make(map[int64]struct{}, len(c.messages))
	for _, m := range c.messages {
		if m.ID != 0 {
			seen[m.ID] = struct{}{}
		}
	}
	older := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ID != 0 {
			if _, dup := seen[m.ID]; dup {
				continue
			}
		}
		older = append(older, m)
	}
	c.messages = append(older, c.messages...)
	return len(older), true
}

// AbortOlder releases the in-flight reservation after a failed fetch so
// the next scroll can retry.
func (c *Conversation) AbortOlder(epoch int) {
	if epoch == c.epoch {
		c.loadingOlder = false
	}
}

// BeginSend validates the draft and appends it optimistically with a
// temporary local id. The caller issues the actual network send and
// reports back through ResolveSend or FailSend.
func (c *Conversation) BeginSend(content string, now time.Time) (types.Message, error) {
	if !c.open {
		return types.Message{}, ErrNoConversation
	}
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return types.Message{}, ErrEmptyMessage
	}
	if !c.contact.IsOnline {
		return types.Message{}, ErrPartnerOffline
	}
	msg := types.Message{
		LocalID:    core.LocalMessageID(),
		FromUserID: c.self.UserID,
		ToUserID:   c.contact.UserID,
		Username:   c.self.Username,
		Content:    trimmed,
		CreatedAt:  now,
	}
	c.messages = append(c.messages, msg)
	return msg, nil
}

// ResolveSend replaces the optimistic entry with the server record, in
// place, and registers the server id so the push echo is recognized as
// a duplicate. When the echo outran the send response the server id is
// already buffered; the optimistic entry is then removed instead, so
// the id never appears twice.
func (c *Conversation) ResolveSend(epoch int, localID string, server types.Message) bool {
	if !c.open || epoch != c.epoch {
		return false
	}
	echoed := false
	if server.ID != 0 {
		for _, existing := range c.messages {
			if existing.ID == server.ID {
				echoed = true
				break
			}
		}
	}
	for i := range c.messages {
		if c.messages[i].LocalID == localID {
			if echoed {
				c.messages = append(c.messages[:i], c.messages[i+1:]...)
				return true
			}
			server.LocalID = ""
			c.messages[i] = server
			if server.ID != 0 {
				c.expected[server.ID] = struct{}{}
			}
			return true
		}
	}
	// The optimistic entry is gone; still arm the echo dedup unless the
	// echo already landed.
	if server.ID != 0 && !echoed {
		c.expected[server.ID] = struct{}{}
	}
	return false
}

// FailSend removes the optimistic entry after a failed send so no
// phantom message survives.
func (c *Conversation) FailSend(epoch int, localID string) bool {
	if !c.open || epoch != c.epoch {
		return false
	}
	for i := range c.messages {
		if c.messages[i].LocalID == localID {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			return true
		}
	}
	return false
}

// ApplyIncoming absorbs a pushed message. Frames not addressed to the
// open conversation are ignored; echoes of our own sends and replays
// are dropped; everything else appends in arrival order.
func (c *Conversation) ApplyIncoming(msg types.Message) Incoming {
	if !c.open {
		return IncomingIgnored
	}
	fromPartner := msg.FromUserID == c.contact.UserID && msg.ToUserID == c.self.UserID
	fromSelf := msg.FromUserID == c.self.UserID && msg.ToUserID == c.contact.UserID
	if !fromPartner && !fromSelf {
		return IncomingIgnored
	}

	if msg.ID != 0 {
		if _, ok := c.expected[msg.ID]; ok {
			delete(c.expected, msg.ID)
			return IncomingDuplicate
		}
		for _, existing := range c.messages {
			if existing.ID == msg.ID {
				return IncomingDuplicate
			}
		}
	} else if c.matchesRecent(msg) {
		// No usable id: fall back to sender+content+time. Approximate,
		// so make it visible in the log when it fires.
		zap.L().Warn("dropped push frame via fallback duplicate match",
			zap.Int64("from", msg.FromUserID),
			zap.Time("created_at", msg.CreatedAt))
		return IncomingDuplicate
	}

	c.messages = append(c.messages, msg)
	return IncomingAppended
}

func (c *Conversation) matchesRecent(msg types.Message) bool {
	for _, existing := range c.messages {
		if existing.FromUserID != msg.FromUserID || existing.Content != msg.Content {
			continue
		}
		delta := msg.CreatedAt.Sub(existing.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= dedupWindow {
			return true
		}
	}
	return false
}

// ApplyTyping updates the typing display from a user_typing frame.
// Only frames from the open partner count. Returns true when the
// display changed.
func (c *Conversation) ApplyTyping(ev types.TypingEvent) bool {
	if !c.open || ev.FromUserID != c.contact.UserID {
		return false
	}
	if ev.IsTyping {
		if _, ok := c.typing[ev.FromUserID]; ok {
			return false
		}
		c.typing[ev.FromUserID] = ev.Username
		return true
	}
	if _, ok := c.typing[ev.FromUserID]; !ok {
		return false
	}
	delete(c.typing, ev.FromUserID)
	return true
}

// TypingUsers returns who is currently typing to us.
func (c *Conversation) TypingUsers() []string {
	out := make([]string, 0, len(c.typing))
	for _, name := range c.typing {
		out = append(out, name)
	}
	return out
}
