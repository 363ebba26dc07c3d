package ui

import (
	"fmt"
	"strings"

	"github.com/butembo/butembochat/pkg/client"
	"github.com/charmbracelet/lipgloss"
)

const footerShortcuts = "Enter send  PgUp/PgDn scroll  /help commands  Ctrl+C quit"

// View renders the current state
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		InputStyle.Width(m.width).Render(m.input.View()),
		m.renderFooter(),
	)
}

// renderHeader shows the app name with connection status on the right
func (m Model) renderHeader() string {
	left := HeaderStyle.Render("ButemboChat")

	status := m.client.State().String()
	if m.client.IsConnected() {
		status = "Connected: " + m.client.Address()
		if m.nickname != "" {
			status = fmt.Sprintf("Connected: %s @ %s", m.nickname, m.client.Address())
		}
		if m.current != "" {
			status += "  [" + m.current + "]"
		}
		sent, received := m.client.Stats()
		status += fmt.Sprintf("  ↑%s ↓%s", client.FormatBytes(sent), client.FormatBytes(received))
	}

	// StatusStyle pads one column on each side
	room := m.width - lipgloss.Width(left) - 2
	if room <= 0 {
		return left
	}
	right := StatusStyle.Render(client.TruncateText(status, room))

	spacer := strings.Repeat(" ", max(0, m.width-lipgloss.Width(left)-lipgloss.Width(right)))
	return left + spacer + right
}

func (m Model) renderFooter() string {
	return FooterStyle.Render(client.TruncateText(footerShortcuts, max(0, m.width-2)))
}

// renderChatLine styles one chat line, highlighting the local user's own
func (m Model) renderChatLine(channel string, msg client.Message) string {
	author := MessageAuthorStyle
	if msg.Sender.ID != "" && msg.Sender.ID == m.userID {
		author = MessageOwnAuthorStyle
	}

	text := strings.ReplaceAll(msg.Text, "\n", " ")
	return ChannelStyle.Render("["+channel+"]") + " " + author.Render(msg.Sender.Name) + ": " + text
}
