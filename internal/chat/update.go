package chat

import (
	"encoding/json"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/manar-alshaikh/rtf-client/internal/api"
	"github.com/manar-alshaikh/rtf-client/internal/bus"
	"github.com/manar-alshaikh/rtf-client/internal/contacts"
	"github.com/manar-alshaikh/rtf-client/internal/types"
)

// Update is the event loop: every message, keystroke, and async
// completion passes through here, one at a time.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		return m, m.handleTick(time.Time(msg))

	case refreshTickMsg:
		return m, tea.Batch(m.loadContactsCmd(), refreshTickCmd())

	case contactsMsg:
		m.handleContacts(msg)
		return m, nil

	case channelConnectedMsg:
		if msg.err != nil {
			m.status = "channel connect failed: " + msg.err.Error()
		}
		return m, nil

	case channelEventMsg:
		cmd := m.handleEvent(msg.event)
		return m, tea.Batch(cmd, m.waitForEventCmd())

	case initialHistoryMsg:
		m.handleInitialHistory(msg)
		return m, nil

	case olderHistoryMsg:
		m.handleOlderHistory(msg)
		return m, nil

	case sendResultMsg:
		m.handleSendResult(msg)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		if m.conversation.IsOpen() {
			return m, m.closeConversation()
		}
		return m, tea.Quit

	case "tab":
		if m.conversation.IsOpen() {
			if m.focus == focusInput {
				m.focus = focusContacts
				m.input.Blur()
				// Leaving the input counts as going idle.
				sig := m.heartbeat.Interrupt()
				return m, m.typingSignalCmd(sig, m.conversation.Contact().UserID)
			}
			m.focus = focusInput
			return m, m.input.Focus()
		}
		return m, nil

	case "f1":
		m.directory.SetFilter(contacts.FilterAll, time.Now())
		m.clampContactIndex()
		return m, nil
	case "f2":
		m.directory.SetFilter(contacts.FilterOnline, time.Now())
		m.clampContactIndex()
		return m, nil
	case "f3":
		m.directory.SetFilter(contacts.FilterOffline, time.Now())
		m.clampContactIndex()
		return m, nil

	case "ctrl+x":
		m.dismissNewestNotification()
		return m, nil

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, tea.Batch(cmd, m.maybeLoadOlder())

	case "end":
		m.viewport.GotoBottom()
		m.clearNewMessageNotification()
		return m, nil

	case "home":
		m.viewport.GotoTop()
		return m, m.maybeLoadOlder()
	}

	if m.focus == focusContacts {
		switch msg.String() {
		case "up", "k":
			if m.contactIndex > 0 {
				m.contactIndex--
			}
			return m, nil
		case "down", "j":
			if m.contactIndex < len(m.visible)-1 {
				m.contactIndex++
			}
			return m, nil
		case "enter":
			if m.contactIndex >= 0 && m.contactIndex < len(m.visible) {
				return m, m.openConversation(m.visible[m.contactIndex])
			}
			return m, nil
		}
		return m, nil
	}

	// Input focus.
	if msg.String() == "enter" {
		return m, m.handleSubmit()
	}

	var cmds []tea.Cmd
	if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
		sig := m.heartbeat.Keystroke(time.Now(), m.conversation.Contact().IsOnline)
		if cmd := m.typingSignalCmd(sig, m.conversation.Contact().UserID); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) handleTick(now time.Time) tea.Cmd {
	cmds := []tea.Cmd{tickCmd()}
	if m.conversation.IsOpen() {
		sig := m.heartbeat.Tick(now)
		if cmd := m.typingSignalCmd(sig, m.conversation.Contact().UserID); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	m.unreadMgr.Expire(now)
	return tea.Batch(cmds...)
}

func (m *Model) handleContacts(msg contactsMsg) {
	if msg.err != nil {
		m.status = "contact refresh failed: " + msg.err.Error()
		return
	}
	m.directory.SetContacts(msg.contacts)
	m.clampContactIndex()

	// A refresh can carry a presence flip for the open partner.
	if m.conversation.IsOpen() {
		if c, ok := m.directory.Get(m.conversation.Contact().UserID); ok {
			if m.conversation.SetPartnerOnline(c.IsOnline) {
				m.notePresence(c.Username, c.IsOnline)
			}
		}
	}
}

// handleEvent dispatches one realtime frame.
func (m *Model) handleEvent(ev types.Event) tea.Cmd {
	switch ev.Type {
	case types.EventChannelReady:
		m.connected = true
		m.status = "connected"
		// Push frames may have been missed while down.
		return m.loadContactsCmd()

	case types.EventChannelDown:
		m.connected = false
		m.status = "connection lost"
		return nil

	case types.EventNewPrivateMessage:
		message, err := api.DecodeMessageEvent(ev.Data)
		if err != nil {
			zap.L().Warn("malformed message frame", zap.Error(err))
			return nil
		}
		m.handleIncomingMessage(message, time.Now())
		return nil

	case types.EventUserTyping:
		var p types.TypingEvent
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			zap.L().Warn("malformed typing frame", zap.Error(err))
			return nil
		}
		m.conversation.ApplyTyping(p)
		return nil

	case types.EventUserOnlineStatus:
		var p types.PresenceEvent
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			zap.L().Warn("malformed presence frame", zap.Error(err))
			return nil
		}
		return m.handlePresence(p)

	case types.EventUserRegistered:
		var p types.RegisteredEvent
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			zap.L().Warn("malformed registration frame", zap.Error(err))
			return nil
		}
		m.directory.AddRegistered(p.UserID, p.Username)
		return nil
	}

	// Feed frames and anything unknown are not this surface's concern.
	zap.L().Debug("ignoring frame", zap.String("type", ev.Type))
	return nil
}

func (m *Model) handleIncomingMessage(message types.Message, now time.Time) {
	var other int64
	switch {
	case message.ToUserID == m.session.UserID:
		other = message.FromUserID
	case message.FromUserID == m.session.UserID:
		other = message.ToUserID
	default:
		zap.L().Warn("message frame for another user",
			zap.Int64("from", message.FromUserID), zap.Int64("to", message.ToUserID))
		return
	}

	ts := message.CreatedAt
	if ts.IsZero() {
		ts = now
	}
	m.signals.PublishMessageActivity(bus.MessageActivity{ContactUserID: other, Timestamp: ts})

	if m.conversation.ApplyIncoming(message) == IncomingAppended {
		follow := m.atBottom() || message.FromUserID == m.session.UserID
		m.refreshViewport(follow)
		if !follow {
			m.addNewMessageAuthor(message.Username)
		}
	}

	m.unreadMgr.HandleMessage(message, now)
}

func (m *Model) handlePresence(p types.PresenceEvent) tea.Cmd {
	var cmds []tea.Cmd
	if !m.directory.SetPresence(p.UserID, p.IsOnline) {
		// Unknown contact: the directory drifted, reload it.
		cmds = append(cmds, m.loadContactsCmd())
	}
	if m.conversation.IsOpen() && p.UserID == m.conversation.Contact().UserID {
		if m.conversation.SetPartnerOnline(p.IsOnline) {
			m.notePresence(p.Username, p.IsOnline)
			if !p.IsOnline {
				sig := m.heartbeat.Interrupt()
				if cmd := m.typingSignalCmd(sig, p.UserID); cmd != nil {
					cmds = append(cmds, cmd)
				}
			}
		}
	}
	return tea.Batch(cmds...)
}

func (m *Model) handleInitialHistory(msg initialHistoryMsg) {
	if msg.err != nil {
		m.status = "history load failed: " + msg.err.Error()
		return
	}
	if m.conversation.ApplyInitial(msg.epoch, msg.messages, msg.hasMore) {
		m.refreshViewport(true)
	}
}

func (m *Model) handleOlderHistory(msg olderHistoryMsg) {
	if msg.err != nil {
		m.conversation.AbortOlder(msg.epoch)
		m.status = "history load failed: " + msg.err.Error()
		return
	}
	m.applyOlderAnchored(msg.epoch, msg.messages, msg.hasMore)
}

func (m *Model) handleSendResult(msg sendResultMsg) {
	if msg.err != nil {
		if m.conversation.FailSend(msg.epoch, msg.localID) {
			m.refreshViewport(false)
		}
		m.status = "send failed: " + msg.err.Error()
		return
	}
	if m.conversation.ResolveSend(msg.epoch, msg.localID, msg.message) {
		m.refreshViewport(m.atBottom())
	}
	ts := msg.message.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	m.signals.PublishMessageActivity(bus.MessageActivity{
		ContactUserID: msg.message.ToUserID,
		Timestamp:     ts,
	})
}

func (m *Model) handleSubmit() tea.Cmd {
	message, err := m.conversation.BeginSend(m.input.Value(), time.Now())
	if err != nil {
		switch err {
		case ErrEmptyMessage:
			// Nothing to do.
		case ErrPartnerOffline:
			m.status = fmt.Sprintf("@%s is offline", m.conversation.Contact().Username)
		default:
			m.status = err.Error()
		}
		return nil
	}

	m.input.Reset()
	m.refreshViewport(true)

	var cmds []tea.Cmd
	sig := m.heartbeat.Interrupt()
	if cmd := m.typingSignalCmd(sig, message.ToUserID); cmd != nil {
		cmds = append(cmds, cmd)
	}
	cmds = append(cmds, m.sendMessageCmd(m.conversation.Epoch(), message.LocalID, message.ToUserID, message.Content))
	return tea.Batch(cmds...)
}

func (m *Model) openConversation(contact types.Contact) tea.Cmd {
	epoch := m.conversation.Open(contact)
	m.signals.PublishConversationOpened(bus.ConversationOpened{Contact: contact})

	m.focus = focusInput
	m.input.Reset()
	m.newMessageAuthors = nil
	m.viewport.SetContent("")
	m.updatePlaceholder()
	m.status = "chatting with @" + contact.Username

	target, page, limit := m.conversation.InitialQuery()
	return tea.Batch(m.input.Focus(), m.loadInitialCmd(epoch, target, page, limit))
}

func (m *Model) closeConversation() tea.Cmd {
	partner := m.conversation.Contact().UserID
	sig := m.heartbeat.Interrupt()
	cmd := m.typingSignalCmd(sig, partner)

	m.conversation.Close()
	m.signals.PublishConversationClosed(bus.ConversationClosed{})

	m.focus = focusContacts
	m.input.Blur()
	m.input.Reset()
	m.updatePlaceholder()
	m.status = ""
	m.newMessageAuthors = nil
	m.viewport.SetContent("")
	return cmd
}

func (m *Model) maybeLoadOlder() tea.Cmd {
	if !m.conversation.IsOpen() || !m.nearTop() {
		return nil
	}
	target, page, limit, ok := m.conversation.NextOlderQuery()
	if !ok {
		return nil
	}
	return m.loadOlderCmd(m.conversation.Epoch(), target, page, limit)
}

// dismissNewestNotification closes the notification riding on the
// status bar. The unread count stays; only the pop-up goes away.
func (m *Model) dismissNewestNotification() {
	notifications := m.unreadMgr.Notifications()
	if len(notifications) == 0 {
		return
	}
	m.unreadMgr.Dismiss(notifications[len(notifications)-1].ID)
}

func (m *Model) notePresence(username string, online bool) {
	if online {
		m.status = "@" + username + " is online"
	} else {
		m.status = "@" + username + " went offline"
	}
	m.updatePlaceholder()
}

func (m *Model) updatePlaceholder() {
	switch {
	case !m.conversation.IsOpen():
		m.input.Placeholder = "select a contact"
	case !m.conversation.Contact().IsOnline:
		m.input.Placeholder = "@" + m.conversation.Contact().Username + " is offline"
	default:
		m.input.Placeholder = "message @" + m.conversation.Contact().Username
	}
}

func (m *Model) clampContactIndex() {
	m.visible = m.directory.List()
	if m.contactIndex >= len(m.visible) {
		m.contactIndex = len(m.visible) - 1
	}
	if m.contactIndex < 0 {
		m.contactIndex = 0
	}
}
