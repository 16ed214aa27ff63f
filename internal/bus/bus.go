// Package bus carries lifecycle signals between engine components so they
// never have to call each other directly.
package bus

import (
	"sync"
	"time"

	"github.com/manar-alshaikh/rtf-client/internal/types"
)

// DirectoryReady fires once, after the contact directory's first
// successful load.
type DirectoryReady struct {
	Session types.Session
}

// ConversationOpened fires when a conversation becomes active.
type ConversationOpened struct {
	Contact types.Contact
}

// ConversationClosed fires when the active conversation is dismissed.
type ConversationClosed struct{}

// MessageActivity fires when a message is sent to or received from a
// contact, carrying the new recency stamp.
type MessageActivity struct {
	ContactUserID int64
	Timestamp     time.Time
}

// Bus is a typed in-process publish/subscribe hub. Handlers run
// synchronously on the publisher's goroutine; in this client every
// publish happens on the event loop.
type Bus struct {
	mu sync.Mutex

	ready      *DirectoryReady
	onReady    []func(DirectoryReady)
	onOpened   []func(ConversationOpened)
	onClosed   []func(ConversationClosed)
	onActivity []func(MessageActivity)
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// OnDirectoryReady registers a handler. DirectoryReady is sticky: a
// subscriber arriving after the signal fired is called immediately, so
// late subscribers never have to poll for readiness.
func (b *Bus) OnDirectoryReady(fn func(DirectoryReady)) {
	b.mu.Lock()
	b.onReady = append(b.onReady, fn)
	ready := b.ready
	b.mu.Unlock()
	if ready != nil {
		fn(*ready)
	}
}

// PublishDirectoryReady fires the readiness signal. Repeat publishes
// after the first are ignored.
func (b *Bus) PublishDirectoryReady(ev DirectoryReady) {
	b.mu.Lock()
	if b.ready != nil {
		b.mu.Unlock()
		return
	}
	b.ready = &ev
	handlers := append([]func(DirectoryReady){}, b.onReady...)
	b.mu.Unlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

// OnConversationOpened registers a handler.
func (b *Bus) OnConversationOpened(fn func(ConversationOpened)) {
	b.mu.Lock()
	b.onOpened = append(b.onOpened, fn)
	b.mu.Unlock()
}

// PublishConversationOpened fires the signal.
func (b *Bus) PublishConversationOpened(ev ConversationOpened) {
	b.mu.Lock()
	handlers := append([]func(ConversationOpened){}, b.onOpened...)
	b.mu.Unlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

// OnConversationClosed registers a handler.
func (b *Bus) OnConversationClosed(fn func(ConversationClosed)) {
	b.mu.Lock()
	b.onClosed = append(b.onClosed, fn)
	b.mu.Unlock()
}

// PublishConversationClosed fires the signal.
func (b *Bus) PublishConversationClosed(ev ConversationClosed) {
	b.mu.Lock()
	handlers := append([]func(ConversationClosed){}, b.onClosed...)
	b.mu.Unlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

// OnMessageActivity registers a handler.
func (b *Bus) OnMessageActivity(fn func(MessageActivity)) {
	b.mu.Lock()
	b.onActivity = append(b.onActivity, fn)
	b.mu.Unlock()
}

// PublishMessageActivity fires the signal.
func (b *Bus) PublishMessageActivity(ev MessageActivity) {
	b.mu.Lock()
	handlers := append([]func(MessageActivity){}, b.onActivity...)
	b.mu.Unlock()
	for _, fn := range handlers {
		fn(ev)
	}
}
