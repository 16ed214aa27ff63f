// Package contacts maintains the contact directory: who exists, who is
// online, and how recently each contact was messaged.
package contacts

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/manar-alshaikh/rtf-client/internal/bus"
	"github.com/manar-alshaikh/rtf-client/internal/types"
)

// Filter selects which contacts List returns.
type Filter string

const (
	FilterAll     Filter = "all"
	FilterOnline  Filter = "online"
	FilterOffline Filter = "offline"
)

// filterResetWindow is the double-activation window: selecting the
// already-active filter twice within it resets the view to all.
const filterResetWindow = 300 * time.Millisecond

// Directory holds the contact list for one session. It is not safe for
// concurrent use; all calls happen on the event loop.
type Directory struct {
	session types.Session
	signals *bus.Bus

	contacts map[int64]*types.Contact
	ready    bool

	filter       Filter
	lastFilterAt time.Time
}

// NewDirectory creates an empty directory. Message activity published
// on the bus refreshes contact recency automatically.
func NewDirectory(session types.Session, signals *bus.Bus) *Directory {
	d := &Directory{
		session:  session,
		signals:  signals,
		contacts: make(map[int64]*types.Contact),
		filter:   FilterAll,
	}
	if signals != nil {
		signals.OnMessageActivity(func(ev bus.MessageActivity) {
			d.Touch(ev.ContactUserID, ev.Timestamp)
		})
	}
	return d
}

// Ready reports whether the first load has completed.
func (d *Directory) Ready() bool {
	return d.ready
}

// SetContacts replaces the directory contents with a freshly fetched
// list. The session user is always excluded; the server should already
// have filtered it, so a leak is logged before being dropped. Recency
// stamps advanced locally since the fetch was issued are kept when they
// are newer than what the server reports.
func (d *Directory) SetContacts(list []types.Contact) {
	fresh := make(map[int64]*types.Contact, len(list))
	for _, c := range list {
		if c.UserID == d.session.UserID {
			zap.L().Error("server returned session user in contact list",
				zap.Int64("user_id", c.UserID))
			continue
		}
		if c.Username == d.session.Username {
			zap.L().Error("server returned session username under another id",
				zap.Int64("user_id", c.UserID), zap.String("username", c.Username))
			continue
		}
		contact := c
		if prev, ok := d.contacts[c.UserID]; ok && prev.LastMessageTime.After(contact.LastMessageTime) {
			contact.LastMessageTime = prev.LastMessageTime
		}
		fresh[c.UserID] = &contact
	}
	d.contacts = fresh

	if !d.ready {
		d.ready = true
		if d.signals != nil {
			d.signals.PublishDirectoryReady(bus.DirectoryReady{Session: d.session})
		}
	}
}

// SetPresence flips a contact's online flag. Returns false when the
// contact is unknown, which means the directory has drifted and the
// caller should schedule a full reload.
func (d *Directory) SetPresence(userID int64, online bool) bool {
	if userID == d.session.UserID {
		return true
	}
	c, ok := d.contacts[userID]
	if !ok {
		return false
	}
	c.IsOnline = online
	return true
}

// AddRegistered inserts a contact announced by a user_registered frame.
// The new user starts online with no conversation history.
func (d *Directory) AddRegistered(userID int64, username string) {
	if userID == d.session.UserID || username == d.session.Username {
		return
	}
	if _, ok := d.contacts[userID]; ok {
		return
	}
	d.contacts[userID] = &types.Contact{
		UserID:   userID,
		Username: username,
		IsOnline: true,
	}
}

// Touch advances a contact's recency stamp. Older stamps never move it
// backwards.
func (d *Directory) Touch(userID int64, ts time.Time) {
	c, ok := d.contacts[userID]
	if !ok {
		return
	}
	if ts.After(c.LastMessageTime) {
		c.LastMessageTime = ts
	}
}

// Get looks up one contact.
func (d *Directory) Get(userID int64) (types.Contact, bool) {
	c, ok := d.contacts[userID]
	if !ok {
		return types.Contact{}, false
	}
	return *c, true
}

// Filter returns the active view filter.
func (d *Directory) Filter() Filter {
	return d.filter
}

// SetFilter activates a view filter. Activating the already-active
// filter again within the reset window flips back to all.
func (d *Directory) SetFilter(f Filter, now time.Time) Filter {
	if f == d.filter && now.Sub(d.lastFilterAt) < filterResetWindow {
		d.filter = FilterAll
	} else {
		d.filter = f
	}
	d.lastFilterAt = now
	return d.filter
}

// List returns the contacts matching the active filter, ordered by
// most recent conversation first. Contacts never messaged sort after
// all stamped ones, alphabetically.
func (d *Directory) List() []types.Contact {
	out := make([]types.Contact, 0, len(d.contacts))
	for _, c := range d.contacts {
		switch d.filter {
		case FilterOnline:
			if !c.IsOnline {
				continue
			}
		case FilterOffline:
			if c.IsOnline {
				continue
			}
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.HasActivity() && b.HasActivity():
			if !a.LastMessageTime.Equal(b.LastMessageTime) {
				return a.LastMessageTime.After(b.LastMessageTime)
			}
		case a.HasActivity():
			return true
		case b.HasActivity():
			return false
		}
		return strings.ToLower(a.Username) < strings.ToLower(b.Username)
	})
	return out
}

// Len returns the number of contacts regardless of filter.
func (d *Directory) Len() int {
	return len(d.contacts)
}
