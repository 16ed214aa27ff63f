package unread

import (
	"strings"
	"time"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"github.com/manar-alshaikh/rtf-client/internal/bus"
	"github.com/manar-alshaikh/rtf-client/internal/core"
	"github.com/manar-alshaikh/rtf-client/internal/types"
)

// DefaultNotificationTTL is how long a notification stays up before
// auto-dismissing.
const DefaultNotificationTTL = 5 * time.Second

const previewLimit = 100

// Options configure a Manager.
type Options struct {
	NotificationTTL time.Duration
	// DesktopNotify raises an OS pop-up in addition to the in-app notice.
	DesktopNotify bool
}

// Manager owns the unread counts and notification list for one
// session. Not safe for concurrent use; all calls happen on the event
// loop.
type Manager struct {
	session types.Session
	store   *Store

	counts        map[int64]int
	notifications []types.Notification
	// activeContact is the open conversation's partner, 0 when none.
	activeContact int64

	ttl     time.Duration
	desktop bool
}

// NewManager loads persisted counts and subscribes to conversation
// lifecycle signals: opening a conversation clears its count and
// notifications, closing it re-arms the guard.
func NewManager(session types.Session, store *Store, signals *bus.Bus, opts Options) (*Manager, error) {
	if opts.NotificationTTL <= 0 {
		opts.NotificationTTL = DefaultNotificationTTL
	}

	counts := make(map[int64]int)
	if store != nil {
		loaded, err := store.Counts(session.UserID)
		if err != nil {
			return nil, err
		}
		counts = loaded
	}

	m := &Manager{
		session: session,
		store:   store,
		counts:  counts,
		ttl:     opts.NotificationTTL,
		desktop: opts.DesktopNotify,
	}
	if signals != nil {
		signals.OnConversationOpened(func(ev bus.ConversationOpened) {
			m.MarkRead(ev.Contact.UserID)
		})
		signals.OnConversationClosed(func(bus.ConversationClosed) {
			m.activeContact = 0
		})
	}
	return m, nil
}

// HandleMessage applies the unread guard to an incoming message and, if
// it passes, increments the sender's count and raises a notification.
// Messages not addressed to the session user, echoes of the user's own
// sends, and messages from the open conversation all pass through
// without counting.
func (m *Manager) HandleMessage(msg types.Message, now time.Time) (types.Notification, bool) {
	if msg.ToUserID != m.session.UserID {
		return types.Notification{}, false
	}
	if msg.FromUserID == m.session.UserID {
		return types.Notification{}, false
	}
	if msg.FromUserID == m.activeContact {
		return types.Notification{}, false
	}

	m.counts[msg.FromUserID]++
	m.persist(msg.FromUserID)

	n := types.Notification{
		ID:            core.NotificationID(),
		ContactUserID: msg.FromUserID,
		Username:      msg.Username,
		Preview:       previewText(msg.Content),
		CreatedAt:     now,
		ExpiresAt:     now.Add(m.ttl),
	}
	m.notifications = append(m.notifications, n)

	if m.desktop {
		title := "@" + msg.Username
		if err := beeep.Notify(title, n.Preview, ""); err != nil {
			zap.L().Warn("desktop notification failed", zap.Error(err))
		}
	}
	return n, true
}

// MarkRead opens a conversation from the unread side: the contact's
// count drops to zero, its notifications are dismissed, and further
// messages from it stop counting until the conversation closes.
func (m *Manager) MarkRead(contactUserID int64) {
	m.activeContact = contactUserID
	if m.counts[contactUserID] != 0 {
		delete(m.counts, contactUserID)
		m.persist(contactUserID)
	}

	kept := m.notifications[:0]
	for _, n := range m.notifications {
		if n.ContactUserID != contactUserID {
			kept = append(kept, n)
		}
	}
	m.notifications = kept
}

// Dismiss removes one notification. Dismissing an unknown id is a
// no-op, so racing auto-expiry is harmless.
func (m *Manager) Dismiss(id string) {
	for i, n := range m.notifications {
		if n.ID == id {
			m.notifications = append(m.notifications[:i], m.notifications[i+1:]...)
			return
		}
	}
}

// Expire removes notifications past their deadline and returns them.
func (m *Manager) Expire(now time.Time) []types.Notification {
	var expired []types.Notification
	kept := m.notifications[:0]
	for _, n := range m.notifications {
		if now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		} else {
			expired = append(expired, n)
		}
	}
	m.notifications = kept
	return expired
}

// Count returns the unread count for one contact.
func (m *Manager) Count(contactUserID int64) int {
	return m.counts[contactUserID]
}

// Counts returns a copy of all non-zero counts.
func (m *Manager) Counts() map[int64]int {
	out := make(map[int64]int, len(m.counts))
	for id, n := range m.counts {
		out[id] = n
	}
	return out
}

// Notifications returns the live notification list, oldest first.
func (m *Manager) Notifications() []types.Notification {
	return append([]types.Notification(nil), m.notifications...)
}

// persist writes one contact's count through to the store. A write
// failure keeps the in-memory count and is logged; the store catches up
// on the next write.
func (m *Manager) persist(contactUserID int64) {
	if m.store == nil {
		return
	}
	if err := m.store.Set(m.session.UserID, contactUserID, m.counts[contactUserID]); err != nil {
		zap.L().Warn("persist unread count failed",
			zap.Int64("contact", contactUserID), zap.Error(err))
	}
}

func previewText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= previewLimit {
		return s
	}
	return s[:previewLimit-1] + "…"
}
