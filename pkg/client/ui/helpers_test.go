package ui

import (
	"context"
	"sync"

	"github.com/butembo/butembochat/pkg/client"
	tea "github.com/charmbracelet/bubbletea"
)

// fakeClient records the actions the UI performs
type fakeClient struct {
	mu sync.Mutex

	connected  bool
	connectErr error
	address    string
	snapshots  map[string]client.ChannelState
	joinedList []string

	connects []string
	joins    []string
	sent     []string // "channel:text"
	nicks    []string
	users    []string
	listed   int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		connected: true,
		address:   "ws://test:10000",
		snapshots: make(map[string]client.ChannelState),
	}
}

func (f *fakeClient) Connect(ctx context.Context, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects = append(f.connects, address)
	return f.connectErr
}

func (f *fakeClient) IsConnected() bool { return f.connected }

func (f *fakeClient) State() client.ConnState {
	if f.connected {
		return client.StateConnected
	}
	return client.StateDisconnected
}

func (f *fakeClient) Address() string { return f.address }

func (f *fakeClient) Snapshot(channel string) (client.ChannelState, bool) {
	s, ok := f.snapshots[channel]
	return s, ok
}

func (f *fakeClient) JoinedChannels() []string { return f.joinedList }

func (f *fakeClient) Stats() (sent, received uint64) { return 2048, 512 }

func (f *fakeClient) LocalUser() (client.UserRef, bool) { return client.UserRef{}, false }

func (f *fakeClient) JoinChannel(channel string) bool {
	f.joins = append(f.joins, channel)
	return f.connected
}

func (f *fakeClient) SendMessage(channel, text string) bool {
	if !f.connected {
		return false
	}
	f.sent = append(f.sent, channel+":"+text)
	return true
}

func (f *fakeClient) ChangeUserName(newName string) bool {
	f.nicks = append(f.nicks, newName)
	return f.connected
}

func (f *fakeClient) RequestChannelsInfo() bool {
	f.listed++
	return f.connected
}

func (f *fakeClient) RequestChannelUsers(channel string) bool {
	f.users = append(f.users, channel)
	return f.connected
}

// SetupTestModelWithDimensions returns a sized model over a fake client
func SetupTestModelWithDimensions(width, height int) (Model, *fakeClient) {
	fake := newFakeClient()
	m := NewModel(fake, client.NewMockState(), fake.address)
	newModel, _ := m.Update(tea.WindowSizeMsg{Width: width, Height: height})
	return newModel.(Model), fake
}

// sendMsgs feeds msgs to m in order
func sendMsgs(m Model, msgs ...tea.Msg) Model {
	for _, msg := range msgs {
		newModel, _ := m.Update(msg)
		m = newModel.(Model)
	}
	return m
}

// submitLine types line into the input and presses enter
func submitLine(m Model, line string) (Model, tea.Cmd) {
	m.input.SetValue(line)
	newModel, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return newModel.(Model), cmd
}

// joinedModel is a connected model whose local user has joined channel
func joinedModel(channel string) (Model, *fakeClient) {
	m, fake := SetupTestModelWithDimensions(80, 24)
	m = sendMsgs(m,
		welcomeMsg{id: "u1", name: "alice"},
		memberMsg{channel: channel, user: client.UserRef{ID: "u1", Name: "alice"}, joined: true},
	)
	return m, fake
}

func lastLine(m Model) string {
	lines := m.Lines()
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
