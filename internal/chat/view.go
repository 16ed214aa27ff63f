package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/manar-alshaikh/rtf-client/internal/types"
)

const contactPaneWidth = 28

var (
	selfStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	partnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
	timeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	selectStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Bold(true)
	badgeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Background(lipgloss.Color("160")).Padding(0, 1)
	typingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Italic(true)
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("58"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Background(lipgloss.Color("236"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("229"))
	paneStyle    = lipgloss.NewStyle().
			Width(contactPaneWidth).
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(lipgloss.Color("238"))
)

func (m *Model) layout(width, height int) {
	m.width = width
	m.height = height

	chatWidth := width - contactPaneWidth - 2
	if chatWidth < 20 {
		chatWidth = 20
	}
	m.viewport.Width = chatWidth
	// One line each for the typing indicator and status bar, plus the
	// input box.
	vpHeight := height - m.input.Height() - 2
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Height = vpHeight
	m.input.SetWidth(chatWidth)
	m.refreshViewport(false)
}

// View renders the whole screen.
func (m *Model) View() string {
	if m.width == 0 {
		return "starting…"
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderContacts(), m.renderConversation())
	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderStatusBar())
}

func (m *Model) renderContacts() string {
	m.visible = m.directory.List()
	if m.contactIndex >= len(m.visible) {
		m.contactIndex = len(m.visible) - 1
	}
	if m.contactIndex < 0 {
		m.contactIndex = 0
	}

	var b strings.Builder
	b.WriteString(dimStyle.Render(fmt.Sprintf("contacts · %s", m.directory.Filter())))
	b.WriteString("\n\n")

	if !m.directory.Ready() {
		b.WriteString(dimStyle.Render("loading…"))
	}
	for i, c := range m.visible {
		cursor := "  "
		if i == m.contactIndex && m.focus == focusContacts {
			cursor = "▸ "
		}
		dot := dimStyle.Render("○")
		if c.IsOnline {
			dot = typingStyle.Render("●")
		}
		name := "@" + c.Username
		if i == m.contactIndex && m.focus == focusContacts {
			name = selectStyle.Render(name)
		}
		line := cursor + dot + " " + name
		if n := m.unreadMgr.Count(c.UserID); n > 0 {
			line += " " + badgeStyle.Render(fmt.Sprintf("%d", n))
		}
		b.WriteString(line)
		b.WriteString("\n")
		if c.HasActivity() {
			b.WriteString(dimStyle.Render("    " + humanize.Time(c.LastMessageTime)))
			b.WriteString("\n")
		}
	}
	return paneStyle.Height(m.height - 1).Render(b.String())
}

func (m *Model) renderConversation() string {
	if !m.conversation.IsOpen() {
		welcome := dimStyle.Render(
			"\n  @" + m.session.Username + "\n\n" +
				"  enter  open conversation\n" +
				"  f1-f3  all / online / offline\n" +
				"  ctrl+x dismiss notification\n" +
				"  esc    quit")
		return welcome
	}

	parts := []string{m.viewport.View()}
	if bar := m.renderNewMessageBar(); bar != "" {
		parts = append(parts, bar)
	}
	parts = append(parts, m.renderTypingLine(), m.input.View())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) renderNewMessageBar() string {
	if len(m.newMessageAuthors) == 0 {
		return ""
	}
	names := make([]string, len(m.newMessageAuthors))
	for i, a := range m.newMessageAuthors {
		names[i] = "@" + a
	}
	return barStyle.Render(" ↓ new messages from " + strings.Join(names, ", ") + " — end to jump ")
}

func (m *Model) renderTypingLine() string {
	users := m.conversation.TypingUsers()
	if len(users) == 0 {
		return " "
	}
	return typingStyle.Render(" ✎ @" + strings.Join(users, ", @") + " is typing…")
}

func (m *Model) renderMessages() string {
	messages := m.conversation.Messages()
	if len(messages) == 0 {
		if !m.conversation.Loaded() {
			return dimStyle.Render("loading history…")
		}
		return dimStyle.Render("no messages yet — say hi")
	}

	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	bodyStyle := lipgloss.NewStyle().Width(width)

	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		nameStyle := partnerStyle
		if msg.FromUserID == m.session.UserID {
			nameStyle = selfStyle
		}
		header := timeStyle.Render(msg.CreatedAt.Local().Format("15:04")) +
			" " + nameStyle.Render("@"+m.displayName(msg))
		if msg.Pending() {
			header += " " + pendingStyle.Render("(sending…)")
		}
		b.WriteString(header)
		b.WriteString("\n")
		b.WriteString(bodyStyle.Render(msg.Content))
		b.WriteString("\n")
	}
	return b.String()
}

// displayName resolves the author name; history rows carry it, push
// frames sometimes do not.
func (m *Model) displayName(msg types.Message) string {
	if msg.Username != "" {
		return msg.Username
	}
	if msg.FromUserID == m.session.UserID {
		return m.session.Username
	}
	return m.conversation.Contact().Username
}

func (m *Model) renderStatusBar() string {
	conn := "○ offline"
	if m.connected {
		conn = "● live"
	}
	left := " " + conn
	if m.status != "" {
		left += "  ·  " + m.status
	}

	// The newest notification rides on the status bar until it expires
	// or the user opens the conversation.
	notifications := m.unreadMgr.Notifications()
	right := ""
	if len(notifications) > 0 {
		latest := notifications[len(notifications)-1]
		right = noticeStyle.Render("🔔 @"+latest.Username+": "+latest.Preview) + " "
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return statusStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}
