package ui

import (
	"context"
	"strings"

	"github.com/butembo/butembochat/pkg/client"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	// Event log lines kept for scrollback
	maxLines = 1000

	// Rows taken by the header, the input (with its top border) and the footer
	chromeHeight = 4
)

// ChatClient is the part of *client.Client the terminal UI drives
type ChatClient interface {
	client.ActionSender
	Connect(ctx context.Context, address string) error
	IsConnected() bool
	State() client.ConnState
	Snapshot(channel string) (client.ChannelState, bool)
	JoinedChannels() []string
	Stats() (sent, received uint64)
}

// Model is the terminal chat client: an event log above an input line
type Model struct {
	client  ChatClient
	state   client.StateInterface
	address string

	input    textinput.Model
	viewport viewport.Model
	lines    []string

	// Identity from the last welcome, cleared on disconnect
	userID   string
	nickname string
	current  string

	width  int
	height int
}

// connectResultMsg reports the outcome of the initial connect
type connectResultMsg struct {
	address string
	err     error
}

// NewModel creates the UI for c. The model connects to address when the
// program starts.
func NewModel(c ChatClient, state client.StateInterface, address string) Model {
	input := textinput.New()
	input.Placeholder = "Type a message or /help"
	input.Prompt = "> "
	input.Focus()

	return Model{
		client:   c,
		state:    state,
		address:  address,
		input:    input,
		viewport: viewport.New(0, 0),
	}
}

// WithNotice returns m with text added to the event log
func (m Model) WithNotice(text string) Model {
	m.appendSystem(text)
	return m
}

// Init starts the cursor blinking and connects
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.connect())
}

func (m Model) connect() tea.Cmd {
	c, address := m.client, m.address
	return func() tea.Msg {
		return connectResultMsg{address: address, err: c.Connect(context.Background(), address)}
	}
}

// CurrentChannel returns the channel plain text is sent to
func (m Model) CurrentChannel() string {
	return m.current
}

// Lines returns the event log without styling applied by the terminal
func (m Model) Lines() []string {
	return append([]string(nil), m.lines...)
}

func (m *Model) appendLine(line string) {
	atBottom := m.viewport.AtBottom()

	m.lines = append(m.lines, line)
	if len(m.lines) > maxLines {
		m.lines = append([]string(nil), m.lines[len(m.lines)-maxLines:]...)
	}

	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) appendSystem(text string) {
	m.appendLine(SystemStyle.Render(text))
}

func (m *Model) appendError(text string) {
	m.appendLine(ErrorStyle.Render("! " + text))
}
