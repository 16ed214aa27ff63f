package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/manar-alshaikh/rtf-client/internal/types"
)

// heartbeatInterval drives the typing heartbeat and notification
// expiry. Fine enough that the 1s inactivity deadline feels exact.
const heartbeatInterval = 250 * time.Millisecond

// contactRefreshInterval is the periodic full directory reload that
// repairs drift after missed push frames.
const contactRefreshInterval = 30 * time.Second

const requestTimeout = 15 * time.Second

type tickMsg time.Time

type refreshTickMsg time.Time

type contactsMsg struct {
	contacts []types.Contact
	err      error
}

type channelEventMsg struct {
	event types.Event
}

type channelConnectedMsg struct {
	err error
}

type initialHistoryMsg struct {
	epoch    int
	messages []types.Message
	hasMore  bool
	err      error
}

type olderHistoryMsg struct {
	epoch    int
	messages []types.Message
	hasMore  bool
	err      error
}

type sendResultMsg struct {
	epoch   int
	localID string
	message types.Message
	err     error
}

func tickCmd() tea.Cmd {
	return tea.Tick(heartbeatInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func refreshTickCmd() tea.Cmd {
	return tea.Tick(contactRefreshInterval, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

func (m *Model) loadContactsCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		contacts, err := client.Contacts(ctx)
		return contactsMsg{contacts: contacts, err: err}
	}
}

func (m *Model) connectChannelCmd() tea.Cmd {
	channel := m.channel
	return func() tea.Msg {
		return channelConnectedMsg{err: channel.Connect()}
	}
}

// waitForEventCmd blocks on the channel's event stream and re-enters
// the loop with one frame at a time.
func (m *Model) waitForEventCmd() tea.Cmd {
	events := m.channel.Events()
	return func() tea.Msg {
		return channelEventMsg{event: <-events}
	}
}

func (m *Model) loadInitialCmd(epoch int, targetUserID int64, page, limit int) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		messages, hasMore, err := client.Messages(ctx, targetUserID, page, limit)
		return initialHistoryMsg{epoch: epoch, messages: messages, hasMore: hasMore, err: err}
	}
}

func (m *Model) loadOlderCmd(epoch int, targetUserID int64, page, limit int) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		messages, hasMore, err := client.Messages(ctx, targetUserID, page, limit)
		return olderHistoryMsg{epoch: epoch, messages: messages, hasMore: hasMore, err: err}
	}
}

func (m *Model) sendMessageCmd(epoch int, localID string, toUserID int64, content string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		message, err := client.SendMessage(ctx, toUserID, content)
		return sendResultMsg{epoch: epoch, localID: localID, message: message, err: err}
	}
}

// typingCmd fires a typing signal and forgets it. Failures only get
// logged; a lost indicator is not worth surfacing.
func (m *Model) typingCmd(start bool, toUserID int64) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		var err error
		if start {
			err = client.TypingStart(ctx, toUserID)
		} else {
			err = client.TypingStop(ctx, toUserID)
		}
		if err != nil {
			zap.L().Debug("typing signal failed", zap.Bool("start", start), zap.Error(err))
		}
		return nil
	}
}

// typingSignalCmd maps a heartbeat signal to its network call.
func (m *Model) typingSignalCmd(sig Signal, toUserID int64) tea.Cmd {
	switch sig {
	case SignalStart, SignalKeepAlive:
		return m.typingCmd(true, toUserID)
	case SignalStop:
		return m.typingCmd(false, toUserID)
	}
	return nil
}
