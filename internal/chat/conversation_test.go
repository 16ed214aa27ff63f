package chat

import (
	"fmt"
	"testing"
	"time"

	"github.com/manar-alshaikh/rtf-client/internal/types"
)

var testSelf = types.Session{UserID: 1, Username: "mona"}

func testContact(online bool) types.Contact {
	return types.Contact{UserID: 2, Username: "ali", IsOnline: online}
}

func serverMessage(id int64, from, to int64, content string, at time.Time) types.Message {
	return types.Message{ID: id, FromUserID: from, ToUserID: to, Content: content, CreatedAt: at}
}

func TestBeginSendValidation(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		open    bool
		online  bool
		content string
		wantErr error
	}{
		{"no conversation", false, false, "hi", ErrNoConversation},
		{"empty", true, true, "   \n ", ErrEmptyMessage},
		{"offline partner", true, false, "hi", ErrPartnerOffline},
		{"ok", true, true, "  hi there  ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConversation(testSelf, 20, 15)
			if tt.open {
				c.Open(testContact(tt.online))
			}
			msg, err := c.BeginSend(tt.content, now)
			if err != tt.wantErr {
				t.Fatalf("BeginSend() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if len(c.Messages()) != 0 {
					t.Errorf("buffer should stay empty on rejected send, got %d", len(c.Messages()))
				}
				return
			}
			if msg.Content != "hi there" {
				t.Errorf("content = %q, want trimmed %q", msg.Content, "hi there")
			}
			if msg.LocalID == "" || msg.ID != 0 {
				t.Errorf("optimistic message should carry a local id only, got id=%d local=%q", msg.ID, msg.LocalID)
			}
			if !msg.Pending() {
				t.Error("optimistic message should be pending")
			}
			if len(c.Messages()) != 1 {
				t.Fatalf("buffer = %d messages, want 1", len(c.Messages()))
			}
		})
	}
}

func TestResolveSendReplacesInPlace(t *testing.T) {
	c := NewConversation(testSelf, 20, 15)
	epoch := c.Open(testContact(true))
	now := time.Now()

	c.ApplyInitial(epoch, []types.Message{
		serverMessage(10, 2, 1, "before", now.Add(-time.Minute)),
	}, false)

	msg, err := c.BeginSend("outbound", now)
	if err != nil {
		t.Fatalf("BeginSend() error = %v", err)
	}

	server := serverMessage(42, 1, 2, "outbound", now)
	if !c.ResolveSend(epoch, msg.LocalID, server) {
		t.Fatal("ResolveSend() = false, want true")
	}

	got := c.Messages()
	if len(got) != 2 {
		t.Fatalf("buffer = %d messages, want 2", len(got))
	}
	if got[1].ID != 42 || got[1].Pending() {
		t.Errorf("resolved message = %+v, want confirmed id 42", got[1])
	}

	// The push echo of our own send must not duplicate.
	if r := c.ApplyIncoming(server); r != IncomingDuplicate {
		t.Errorf("echo ApplyIncoming() = %v, want IncomingDuplicate", r)
	}
	if len(c.Messages()) != 2 {
		t.Errorf("buffer = %d messages after echo, want 2", len(c.Messages()))
	}

	// Applying the echo twice is still a duplicate (id already buffered).
	if r := c.ApplyIncoming(server); r != IncomingDuplicate {
		t.Errorf("second echo ApplyIncoming() = %v, want IncomingDuplicate", r)
	}
}

func TestResolveSendAfterEchoArrivedFirst(t *testing.T) {
	c := NewConversation(testSelf, 20, 15)
	epoch := c.Open(testContact(true))
	now := time.Now()
	c.ApplyInitial(epoch, nil, false)

	msg, err := c.BeginSend("hello", now)
	if err != nil {
		t.Fatalf("BeginSend() error = %v", err)
	}

	// The push echo lands before the send response. It carries the server
	// id, which is not in the expected set yet, so it appends.
	server := serverMessage(42, 1, 2, "hello", now)
	if r := c.ApplyIncoming(server); r != IncomingAppended {
		t.Fatalf("early echo ApplyIncoming() = %v, want IncomingAppended", r)
	}

	// The send response must then retire the optimistic entry instead of
	// confirming it alongside the echo.
	if !c.ResolveSend(epoch, msg.LocalID, server) {
		t.Fatal("ResolveSend() = false, want true")
	}

	var withID int
	for _, m := range c.Messages() {
		if m.ID == 42 {
			withID++
		}
		if m.Pending() {
			t.Errorf("pending entry survived reconciliation: %+v", m)
		}
	}
	if withID != 1 {
		t.Fatalf("buffer holds %d entries with id 42, want exactly 1", withID)
	}

	// A replay of the echo is still a duplicate.
	if r := c.ApplyIncoming(server); r != IncomingDuplicate {
		t.Errorf("replayed echo ApplyIncoming() = %v, want IncomingDuplicate", r)
	}
}

func TestFailSendRemovesPhantom(t *testing.T) {
	c := NewConversation(testSelf, 20, 15)
	epoch := c.Open(testContact(true))

	msg, _ := c.BeginSend("doomed", time.Now())
	if !c.FailSend(epoch, msg.LocalID) {
		t.Fatal("FailSend() = false, want true")
	}
	if len(c.Messages()) != 0 {
		t.Errorf("buffer = %d messages after failed send, want 0", len(c.Messages()))
	}
	if c.FailSend(epoch, msg.LocalID) {
		t.Error("second FailSend() should be a no-op")
	}
}

func TestApplyIncomingRelevance(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		msg  types.Message
		want Incoming
	}{
		{"from partner", serverMessage(1, 2, 1, "hey", now), IncomingAppended},
		{"own echo from another device", serverMessage(2, 1, 2, "yo", now), IncomingAppended},
		{"third party sender", serverMessage(3, 9, 1, "spam", now), IncomingIgnored},
		{"third party recipient", serverMessage(4, 2, 9, "other", now), IncomingIgnored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConversation(testSelf, 20, 15)
			c.Open(testContact(true))
			if got := c.ApplyIncoming(tt.msg); got != tt.want {
				t.Errorf("ApplyIncoming() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyIncomingFallbackDedup(t *testing.T) {
	c := NewConversation(testSelf, 20, 15)
	epoch := c.Open(testContact(true))
	now := time.Now()

	msg, _ := c.BeginSend("same words", now)
	c.ResolveSend(epoch, msg.LocalID, serverMessage(7, 1, 2, "same words", now))
	// Echo arrives without an id but within the tolerance window.
	echo := types.Message{FromUserID: 1, ToUserID: 2, Content: "same words", CreatedAt: now.Add(1500 * time.Millisecond)}
	if r := c.ApplyIncoming(echo); r != IncomingDuplicate {
		t.Errorf("ApplyIncoming() = %v, want IncomingDuplicate", r)
	}

	// Outside the window the same words are a real repeat.
	later := types.Message{FromUserID: 1, ToUserID: 2, Content: "same words", CreatedAt: now.Add(5 * time.Second)}
	if r := c.ApplyIncoming(later); r != IncomingAppended {
		t.Errorf("ApplyIncoming() = %v, want IncomingAppended", r)
	}
}

func TestOpenResetsStateAndEpochGuardsStaleCompletions(t *testing.T) {
	c := NewConversation(testSelf, 20, 15)
	oldEpoch := c.Open(testContact(true))
	msg, _ := c.BeginSend("to ali", time.Now())

	other := types.Contact{UserID: 3, Username: "zed", IsOnline: true}
	newEpoch := c.Open(other)
	if newEpoch == oldEpoch {
		t.Fatal("epoch should advance on switch")
	}
	if len(c.Messages()) != 0 {
		t.Fatalf("buffer should reset on switch, got %d", len(c.Messages()))
	}

	// Completions from the previous conversation must be dropped.
	if c.ResolveSend(oldEpoch, msg.LocalID, serverMessage(9, 1, 2, "to ali", time.Now())) {
		t.Error("stale ResolveSend should be rejected")
	}
	if c.ApplyInitial(oldEpoch, []types.Message{serverMessage(1, 2, 1, "old", time.Now())}, true) {
		t.Error("stale ApplyInitial should be rejected")
	}
	if len(c.Messages()) != 0 {
		t.Errorf("stale completions leaked into buffer: %d messages", len(c.Messages()))
	}
}

func TestOlderPagination(t *testing.T) {
	c := NewConversation(testSelf, 20, 15)
	epoch := c.Open(testContact(true))
	now := time.Now()

	// No older loads before the initial page lands.
	if _, _, _, ok := c.NextOlderQuery(); ok {
		t.Fatal("NextOlderQuery should refuse before initial load")
	}

	initial := []types.Message{
		serverMessage(100, 2, 1, "m100", now.Add(-2*time.Minute)),
		serverMessage(101, 1, 2, "m101", now.Add(-time.Minute)),
	}
	c.ApplyInitial(epoch, initial, true)

	target, page, limit, ok := c.NextOlderQuery()
	if !ok || target != 2 || page != 2 || limit != 15 {
		t.Fatalf("NextOlderQuery() = (%d,%d,%d,%v), want (2,2,15,true)", target, page, limit, ok)
	}
	// A second trigger while in flight must not stack.
	if _, _, _, ok := c.NextOlderQuery(); ok {
		t.Fatal("NextOlderQuery should refuse while a fetch is in flight")
	}

	older := []types.Message{
		serverMessage(90, 2, 1, "m90", now.Add(-10*time.Minute)),
		serverMessage(100, 2, 1, "m100", now.Add(-2*time.Minute)), // overlap with buffer
	}
	added, ok := c.ApplyOlder(epoch, older, false)
	if !ok || added != 1 {
		t.Fatalf("ApplyOlder() = (%d,%v), want (1,true)", added, ok)
	}
	if c.HasMore() {
		t.Error("HasMore should be false after final page")
	}

	got := c.Messages()
	wantOrder := []int64{90, 100, 101}
	if len(got) != len(wantOrder) {
		t.Fatalf("buffer = %d messages, want %d", len(got), len(wantOrder))
	}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("messages[%d].ID = %d, want %d", i, got[i].ID, id)
		}
	}

	if _, _, _, ok := c.NextOlderQuery(); ok {
		t.Error("NextOlderQuery should refuse once history is exhausted")
	}
}

func TestAbortOlderAllowsRetry(t *testing.T) {
	c := NewConversation(testSelf, 20, 15)
	epoch := c.Open(testContact(true))
	c.ApplyInitial(epoch, nil, true)

	if _, _, _, ok := c.NextOlderQuery(); !ok {
		t.Fatal("NextOlderQuery should succeed")
	}
	c.AbortOlder(epoch)
	if _, _, _, ok := c.NextOlderQuery(); !ok {
		t.Error("NextOlderQuery should succeed again after abort")
	}
}

func TestTypingDisplay(t *testing.T) {
	c := NewConversation(testSelf, 20, 15)
	c.Open(testContact(true))

	if c.ApplyTyping(types.TypingEvent{FromUserID: 9, Username: "zed", IsTyping: true}) {
		t.Error("typing from a non-partner should be ignored")
	}
	if !c.ApplyTyping(types.TypingEvent{FromUserID: 2, Username: "ali", IsTyping: true}) {
		t.Error("partner typing start should change the display")
	}
	if c.ApplyTyping(types.TypingEvent{FromUserID: 2, Username: "ali", IsTyping: true}) {
		t.Error("repeated typing start should not change the display")
	}
	if got := c.TypingUsers(); len(got) != 1 || got[0] != "ali" {
		t.Errorf("TypingUsers() = %v, want [ali]", got)
	}

	// Partner going offline clears the indicator.
	if !c.SetPartnerOnline(false) {
		t.Fatal("SetPartnerOnline(false) should report a change")
	}
	if got := c.TypingUsers(); len(got) != 0 {
		t.Errorf("TypingUsers() after offline = %v, want empty", got)
	}
}

func TestOrderingLiveAppendsNeverReorder(t *testing.T) {
	c := NewConversation(testSelf, 20, 15)
	epoch := c.Open(testContact(true))
	now := time.Now()
	c.ApplyInitial(epoch, nil, false)

	// Arrival order wins even when timestamps disagree.
	for i, ts := range []time.Time{now, now.Add(-time.Hour), now.Add(time.Minute)} {
		msg := serverMessage(int64(200+i), 2, 1, fmt.Sprintf("m%d", i), ts)
		if r := c.ApplyIncoming(msg); r != IncomingAppended {
			t.Fatalf("ApplyIncoming(#%d) = %v", i, r)
		}
	}
	got := c.Messages()
	for i := range got {
		if got[i].ID != int64(200+i) {
			t.Errorf("messages[%d].ID = %d, want %d", i, got[i].ID, 200+i)
		}
	}
}
