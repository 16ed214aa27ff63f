package chat

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/manar-alshaikh/rtf-client/internal/types"
)

func (m *Model) refreshViewport(scrollToBottom bool) {
	content := m.renderMessages()
	// Keep content taller than the viewport so scrolling stays active;
	// an exact height match makes the renderer clip the first line.
	contentHeight := lipgloss.Height(content)
	if contentHeight > 0 && contentHeight <= m.viewport.Height {
		content = "\n" + content
	}
	m.viewport.SetContent(content)
	if m.pendingScrollBottom {
		scrollToBottom = true
		m.pendingScrollBottom = false
	}
	if scrollToBottom {
		m.viewport.GotoBottom()
		m.clearNewMessageNotification()
		return
	}
	if m.viewport.Height <= 0 {
		return
	}
	maxOffset := lipgloss.Height(content) - m.viewport.Height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if m.viewport.YOffset > maxOffset {
		m.viewport.SetYOffset(maxOffset)
	}
}

func (m *Model) nearTop() bool {
	return m.viewport.YOffset <= 5
}

// atBottom returns true if the viewport is scrolled to (or near) the bottom.
func (m *Model) atBottom() bool {
	if m.viewport.Height <= 0 {
		return true
	}
	contentHeight := lipgloss.Height(m.viewport.View())
	maxOffset := contentHeight - m.viewport.Height
	if maxOffset < 0 {
		maxOffset = 0
	}
	return m.viewport.YOffset >= maxOffset-3
}

// applyOlderAnchored prepends an older history page without moving what
// the user is looking at: measure the rendered height, prepend, then
// push the offset down by exactly the growth.
func (m *Model) applyOlderAnchored(epoch int, msgs []types.Message, hasMore bool) {
	prevHeight := lipgloss.Height(m.renderMessages())
	added, ok := m.conversation.ApplyOlder(epoch, msgs, hasMore)
	if !ok {
		return
	}
	m.refreshViewport(false)
	if added == 0 {
		return
	}
	newHeight := lipgloss.Height(m.renderMessages())
	delta := newHeight - prevHeight
	if delta > 0 {
		m.viewport.SetYOffset(m.viewport.YOffset + delta)
	}
}

// addNewMessageAuthor tracks a sender for the new-messages bar shown
// while the user is scrolled up.
func (m *Model) addNewMessageAuthor(author string) {
	for _, existing := range m.newMessageAuthors {
		if existing == author {
			return
		}
	}
	m.newMessageAuthors = append(m.newMessageAuthors, author)
}

func (m *Model) clearNewMessageNotification() {
	m.newMessageAuthors = nil
}
