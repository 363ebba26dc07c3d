package ui

import (
	"fmt"
	"strings"

	"github.com/butembo/butembochat/pkg/client"
	"github.com/butembo/butembochat/pkg/client/commands"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Update handles incoming messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-chromeHeight)
		m.input.Width = max(1, msg.Width-lipgloss.Width(m.input.Prompt)-2)
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case connectResultMsg:
		if msg.err != nil {
			m.appendError(fmt.Sprintf("failed to connect to %s: %v", msg.address, msg.err))
		}
		return m, nil

	case connectionMsg:
		if msg.connected {
			m.appendSystem("* connected to " + m.client.Address())
			return m, nil
		}
		m.userID, m.nickname = "", ""
		if msg.err != nil {
			m.appendSystem(fmt.Sprintf("* disconnected: %v", msg.err))
			return m, nil
		}
		m.appendSystem("* disconnected")
		return m, nil

	case welcomeMsg:
		m.userID, m.nickname = msg.id, msg.name
		m.appendSystem("* you are " + msg.name)
		return m, nil

	case chatMsg:
		m.appendLine(m.renderChatLine(msg.channel, msg.msg))
		return m, nil

	case memberMsg:
		if !msg.joined {
			m.appendSystem(fmt.Sprintf("* %s left [%s]", msg.user.Name, msg.channel))
			return m, nil
		}
		if msg.user.ID == m.userID {
			m.current = msg.channel
		}
		m.appendSystem(fmt.Sprintf("* %s joined [%s]", msg.user.Name, msg.channel))
		return m, nil

	case renameMsg:
		if msg.userID == m.userID {
			m.nickname = msg.newName
		}
		m.appendSystem(fmt.Sprintf("* %s is now known as %s", msg.oldName, msg.newName))
		return m, nil

	case usersMsg:
		m.appendSystem(fmt.Sprintf("Users in [%s]: %s", msg.channel, client.FormatRoster(msg.users)))
		return m, nil

	case channelsMsg:
		if len(msg.info) == 0 {
			m.appendSystem("No channels")
			return m, nil
		}
		m.appendSystem("Channels:\n" + client.FormatChannelsInfo(msg.info))
		return m, nil

	case serverErrorMsg:
		m.appendError("server: " + msg.description)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEnter:
		return m.submit()
	case tea.KeyPgUp, tea.KeyPgDown:
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit runs the input line as a command or sends it to the current channel
func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if line == "" {
		return m, nil
	}

	if strings.HasPrefix(line, "/") {
		text, keepGoing := commands.Execute(line, &commandRunner{m: &m})
		if text != "" {
			m.appendError(text)
		}
		if !keepGoing {
			return m, tea.Quit
		}
		return m, nil
	}

	if m.current == "" {
		m.appendError("join a channel first with /join <name>")
		return m, nil
	}
	if !m.client.SendMessage(m.current, line) {
		m.appendError("not connected, message dropped")
	}
	return m, nil
}

// commandRunner executes slash commands against a model being updated
type commandRunner struct {
	m *Model
}

func (r *commandRunner) IsConnected() bool {
	return r.m.client.IsConnected()
}

// ExecuteAction implements commands.CommandExecutor
func (r *commandRunner) ExecuteAction(actionID, arg string) bool {
	m := r.m

	switch actionID {
	case commands.ActionJoin:
		m.client.JoinChannel(arg)
	case commands.ActionChangeNickname:
		m.client.ChangeUserName(arg)
	case commands.ActionListChannels:
		m.client.RequestChannelsInfo()
	case commands.ActionListUsers:
		channel := r.channelOrCurrent(arg)
		if channel == "" {
			m.appendError("usage: /users <channel>")
			break
		}
		m.client.RequestChannelUsers(channel)
	case commands.ActionHistory:
		channel := r.channelOrCurrent(arg)
		snap, ok := m.client.Snapshot(channel)
		if !ok {
			m.appendError(fmt.Sprintf("no history for %q", channel))
			break
		}
		for _, msg := range snap.Messages {
			m.appendLine(client.FormatMessageLine(channel, msg))
		}
	case commands.ActionStats:
		sent, received := m.client.Stats()
		m.appendSystem(fmt.Sprintf("state: %s  sent: %s  received: %s  joined: %s",
			m.client.State(), client.FormatBytes(sent), client.FormatBytes(received),
			strings.Join(m.client.JoinedChannels(), ", ")))
		if addr, at, err := m.state.LastConnection(); err == nil && addr != "" {
			m.appendSystem(fmt.Sprintf("last connected to %s %s", addr, client.FormatRelativeTime(at)))
		}
	case commands.ActionHelp:
		for _, entry := range commands.GenerateHelpContent(r) {
			m.appendSystem(fmt.Sprintf("  %-20s %s", entry[0], entry[1]))
		}
	case commands.ActionQuit:
		return false
	}
	return true
}

func (r *commandRunner) channelOrCurrent(arg string) string {
	if arg != "" {
		return arg
	}
	return r.m.current
}
