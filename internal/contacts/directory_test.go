package contacts

import (
	"testing"
	"time"

	"github.com/manar-alshaikh/rtf-client/internal/bus"
	"github.com/manar-alshaikh/rtf-client/internal/types"
)

var testSession = types.Session{UserID: 1, Username: "mona"}

func stamped(id int64, name string, ago time.Duration) types.Contact {
	return types.Contact{
		UserID:          id,
		Username:        name,
		LastMessageTime: time.Now().Add(-ago),
	}
}

func TestSetContactsExcludesSelf(t *testing.T) {
	d := NewDirectory(testSession, nil)
	d.SetContacts([]types.Contact{
		{UserID: 1, Username: "mona"},         // self by id
		{UserID: 7, Username: "mona"},         // self username under another id
		{UserID: 2, Username: "ali"},
	})
	if d.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", d.Len())
	}
	if _, ok := d.Get(1); ok {
		t.Error("session user must never appear in the directory")
	}
	if _, ok := d.Get(2); !ok {
		t.Error("regular contact missing")
	}
}

func TestListOrdering(t *testing.T) {
	d := NewDirectory(testSession, nil)
	d.SetContacts([]types.Contact{
		{UserID: 5, Username: "zoe"},
		stamped(2, "ali", time.Hour),
		{UserID: 4, Username: "Bea"},
		stamped(3, "cal", time.Minute),
	})

	got := d.List()
	want := []string{"cal", "ali", "Bea", "zoe"}
	if len(got) != len(want) {
		t.Fatalf("List() = %d contacts, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Username != name {
			t.Errorf("List()[%d] = %q, want %q", i, got[i].Username, name)
		}
	}
}

func TestFilterDoubleActivationResets(t *testing.T) {
	d := NewDirectory(testSession, nil)
	now := time.Now()

	if f := d.SetFilter(FilterOnline, now); f != FilterOnline {
		t.Fatalf("SetFilter() = %v, want online", f)
	}
	// Same filter again inside the window resets to all.
	if f := d.SetFilter(FilterOnline, now.Add(200*time.Millisecond)); f != FilterAll {
		t.Errorf("double activation = %v, want all", f)
	}
	// Outside the window the filter just stays selected.
	d.SetFilter(FilterOffline, now.Add(time.Second))
	if f := d.SetFilter(FilterOffline, now.Add(2*time.Second)); f != FilterOffline {
		t.Errorf("late re-activation = %v, want offline", f)
	}
}

func TestFilterViews(t *testing.T) {
	d := NewDirectory(testSession, nil)
	d.SetContacts([]types.Contact{
		{UserID: 2, Username: "ali", IsOnline: true},
		{UserID: 3, Username: "bea"},
	})

	d.SetFilter(FilterOnline, time.Now())
	if got := d.List(); len(got) != 1 || got[0].Username != "ali" {
		t.Errorf("online view = %v, want [ali]", got)
	}
	d.SetFilter(FilterOffline, time.Now().Add(time.Second))
	if got := d.List(); len(got) != 1 || got[0].Username != "bea" {
		t.Errorf("offline view = %v, want [bea]", got)
	}
}

func TestSetPresenceUnknownContact(t *testing.T) {
	d := NewDirectory(testSession, nil)
	d.SetContacts([]types.Contact{{UserID: 2, Username: "ali"}})

	if !d.SetPresence(2, true) {
		t.Error("known contact should update")
	}
	if c, _ := d.Get(2); !c.IsOnline {
		t.Error("presence flip not applied")
	}
	if d.SetPresence(99, true) {
		t.Error("unknown contact should report drift")
	}
}

func TestTouchViaBus(t *testing.T) {
	signals := bus.New()
	d := NewDirectory(testSession, signals)
	d.SetContacts([]types.Contact{{UserID: 2, Username: "ali"}})

	ts := time.Now()
	signals.PublishMessageActivity(bus.MessageActivity{ContactUserID: 2, Timestamp: ts})
	c, _ := d.Get(2)
	if !c.LastMessageTime.Equal(ts) {
		t.Fatalf("LastMessageTime = %v, want %v", c.LastMessageTime, ts)
	}

	// Older stamps never move recency backwards.
	signals.PublishMessageActivity(bus.MessageActivity{ContactUserID: 2, Timestamp: ts.Add(-time.Hour)})
	c, _ = d.Get(2)
	if !c.LastMessageTime.Equal(ts) {
		t.Errorf("LastMessageTime regressed to %v", c.LastMessageTime)
	}
}

func TestSetContactsKeepsNewerLocalRecency(t *testing.T) {
	d := NewDirectory(testSession, nil)
	fetched := time.Now().Add(-time.Hour)
	d.SetContacts([]types.Contact{{UserID: 2, Username: "ali", LastMessageTime: fetched}})

	// A message lands while the next refresh is in flight.
	touched := time.Now()
	d.Touch(2, touched)

	// The refresh carries the stale server stamp; the local one wins.
	d.SetContacts([]types.Contact{{UserID: 2, Username: "ali", LastMessageTime: fetched}})
	c, _ := d.Get(2)
	if !c.LastMessageTime.Equal(touched) {
		t.Fatalf("LastMessageTime = %v, want %v (kept across refresh)", c.LastMessageTime, touched)
	}

	// A genuinely newer server stamp still advances it.
	newer := touched.Add(time.Minute)
	d.SetContacts([]types.Contact{{UserID: 2, Username: "ali", LastMessageTime: newer}})
	c, _ = d.Get(2)
	if !c.LastMessageTime.Equal(newer) {
		t.Errorf("LastMessageTime = %v, want %v", c.LastMessageTime, newer)
	}
}

func TestAddRegistered(t *testing.T) {
	d := NewDirectory(testSession, nil)
	d.SetContacts(nil)

	d.AddRegistered(5, "new")
	if c, ok := d.Get(5); !ok || !c.IsOnline {
		t.Errorf("registered contact = (%v,%v), want online contact", c, ok)
	}
	d.AddRegistered(1, "mona")
	if _, ok := d.Get(1); ok {
		t.Error("self registration must be filtered")
	}
}

func TestReadyPublishedOnce(t *testing.T) {
	signals := bus.New()
	fired := 0
	signals.OnDirectoryReady(func(bus.DirectoryReady) { fired++ })

	d := NewDirectory(testSession, signals)
	d.SetContacts(nil)
	d.SetContacts(nil)
	if fired != 1 {
		t.Errorf("DirectoryReady fired %d times, want 1", fired)
	}
	if !d.Ready() {
		t.Error("Ready() = false after load")
	}
}
