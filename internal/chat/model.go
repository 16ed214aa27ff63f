package chat

import (
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/manar-alshaikh/rtf-client/internal/api"
	"github.com/manar-alshaikh/rtf-client/internal/bus"
	"github.com/manar-alshaikh/rtf-client/internal/contacts"
	"github.com/manar-alshaikh/rtf-client/internal/transport"
	"github.com/manar-alshaikh/rtf-client/internal/types"
	"github.com/manar-alshaikh/rtf-client/internal/unread"
)

// Options configure the chat UI.
type Options struct {
	Client    *api.Client
	Channel   *transport.Channel
	Session   types.Session
	Directory *contacts.Directory
	Unread    *unread.Manager
	Signals   *bus.Bus

	InitialLimit int
	OlderLimit   int
}

// Run starts the chat UI and blocks until the user quits.
func Run(opts Options) error {
	model := NewModel(opts)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	model.Close()
	return err
}

type focusArea int

const (
	focusContacts focusArea = iota
	focusInput
)

// Model implements the chat UI.
type Model struct {
	client    *api.Client
	channel   *transport.Channel
	session   types.Session
	directory *contacts.Directory
	unreadMgr *unread.Manager
	signals   *bus.Bus

	conversation *Conversation
	heartbeat    *TypingHeartbeat

	viewport viewport.Model
	input    textarea.Model

	width  int
	height int
	focus  focusArea

	// visible mirrors the last rendered (filtered, sorted) contact list
	// so the selection index stays meaningful between frames.
	visible      []types.Contact
	contactIndex int

	status              string
	connected           bool
	pendingScrollBottom bool
	// newMessageAuthors collects senders of messages that arrived while
	// scrolled up, for the "new messages" bar.
	newMessageAuthors []string
}

// NewModel creates the chat model.
func NewModel(opts Options) *Model {
	input := textarea.New()
	input.Placeholder = "select a contact"
	input.CharLimit = 2000
	input.SetHeight(3)
	input.ShowLineNumbers = false

	m := &Model{
		client:       opts.Client,
		channel:      opts.Channel,
		session:      opts.Session,
		directory:    opts.Directory,
		unreadMgr:    opts.Unread,
		signals:      opts.Signals,
		conversation: NewConversation(opts.Session, opts.InitialLimit, opts.OlderLimit),
		heartbeat:    NewTypingHeartbeat(),
		viewport:     viewport.New(0, 0),
		input:        input,
		focus:        focusContacts,
		status:       "connecting…",
	}
	return m
}

// Init starts the initial loads, the realtime channel, and the clocks.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadContactsCmd(),
		m.connectChannelCmd(),
		m.waitForEventCmd(),
		tickCmd(),
		refreshTickCmd(),
		textarea.Blink,
	)
}

// Close releases the realtime channel.
func (m *Model) Close() {
	if m.channel != nil {
		m.channel.Close()
	}
}
