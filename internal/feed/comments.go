// Package feed implements the comment pane engine for post comments:
// backwards pagination from the newest comment and live appends from
// comment.created frames.
package feed

import (
	"github.com/manar-alshaikh/rtf-client/internal/types"
)

// DefaultPageSize is how many comments one history fetch returns.
const DefaultPageSize = 10

// Pane is the comment state for one post. Not safe for concurrent use;
// all calls happen on the event loop.
type Pane struct {
	postID   int64
	pageSize int

	// cursor is the before_id for the next fetch, 0 for the newest page.
	cursor  int64
	done    bool
	loaded  bool
	loading bool

	comments []types.Comment
	seen     map[int64]struct{}
}

// NewPane creates a pane for the given post.
func NewPane(postID int64, pageSize int) *Pane {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pane{
		postID:   postID,
		pageSize: pageSize,
		seen:     make(map[int64]struct{}),
	}
}

// PostID returns the pane's post.
func (p *Pane) PostID() int64 { return p.postID }

// Loaded reports whether the first page has been applied.
func (p *Pane) Loaded() bool { return p.loaded }

// Done reports whether the oldest comment has been reached.
func (p *Pane) Done() bool { return p.done }

// Comments returns the buffer in chronological order.
func (p *Pane) Comments() []types.Comment { return p.comments }

// NextQuery reserves the next backwards fetch. ok=false while one is
// already in flight or history is exhausted.
func (p *Pane) NextQuery() (beforeID int64, limit int, ok bool) {
	if p.loading || p.done {
		return 0, 0, false
	}
	p.loading = true
	return p.cursor, p.pageSize, true
}

// ApplyPage prepends one fetched page. The page arrives in
// chronological order; a short page marks history exhausted. Returns
// how many comments were new.
func (p *Pane) ApplyPage(items []types.Comment, nextCursor int64) int {
	p.loading = false
	p.loaded = true
	p.cursor = nextCursor
	if len(items) < p.pageSize {
		p.done = true
	}

	fresh := make([]types.Comment, 0, len(items))
	for _, c := range items {
		if _, dup := p.seen[c.CommentID]; dup {
			continue
		}
		p.seen[c.CommentID] = struct{}{}
		fresh = append(fresh, c)
	}
	p.comments = append(fresh, p.comments...)
	return len(fresh)
}

// AbortLoad releases the in-flight reservation after a failed fetch.
func (p *Pane) AbortLoad() {
	p.loading = false
}

// ApplyLive appends a comment announced by a push frame. Frames for
// other posts and replays of buffered comments are dropped.
func (p *Pane) ApplyLive(c types.Comment) bool {
	if c.PostID != p.postID {
		return false
	}
	if _, dup := p.seen[c.CommentID]; dup {
		return false
	}
	p.seen[c.CommentID] = struct{}{}
	p.comments = append(p.comments, c)
	p.loaded = true
	return true
}

// ApplyReaction updates cached like/dislike counts from a push frame.
func (p *Pane) ApplyReaction(ev types.CommentReactionEvent) bool {
	for i := range p.comments {
		if p.comments[i].CommentID == ev.CommentID {
			p.comments[i].Likes = ev.Likes
			p.comments[i].Dislikes = ev.Dislikes
			return true
		}
	}
	return false
}

// Reset clears the pane so the first page can be fetched again, e.g.
// right after posting a comment.
func (p *Pane) Reset() {
	p.cursor = 0
	p.done = false
	p.loaded = false
	p.loading = false
	p.comments = nil
	p.seen = make(map[int64]struct{})
}
