package modal

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor = lipgloss.Color("39")
	errorColor   = lipgloss.Color("196")
	mutedColor   = lipgloss.Color("243")

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 3).
			Width(70)
)

// ConfigErrorModal shows a broken config file and offers a reset or quit
type ConfigErrorModal struct {
	configPath    string
	errorMessage  string
	lineNumber    int // 0 if not a parse error
	fileContent   []string
	onReset       func(backup bool) tea.Cmd
	onQuit        func() tea.Cmd
	confirmBackup bool
}

// NewConfigErrorModal creates a config error modal. onReset runs when the
// user confirms a reset, onQuit when they leave the file alone.
func NewConfigErrorModal(
	configPath string,
	errorMessage string,
	lineNumber int,
	onReset func(backup bool) tea.Cmd,
	onQuit func() tea.Cmd,
) *ConfigErrorModal {
	m := &ConfigErrorModal{
		configPath:   configPath,
		errorMessage: errorMessage,
		lineNumber:   lineNumber,
		onReset:      onReset,
		onQuit:       onQuit,
	}

	if lineNumber > 0 {
		if data, err := os.ReadFile(configPath); err == nil {
			m.fileContent = strings.Split(string(data), "\n")
		}
	}

	return m
}

// ConfirmingBackup reports whether the backup question is showing
func (m *ConfigErrorModal) ConfirmingBackup() bool {
	return m.confirmBackup
}

// HandleKey processes keyboard input. closed reports that the modal is done
// and cmd carries the chosen action.
func (m *ConfigErrorModal) HandleKey(msg tea.KeyMsg) (closed bool, cmd tea.Cmd) {
	if m.confirmBackup {
		switch msg.String() {
		case "y", "Y":
			return true, m.reset(true)
		case "n", "N":
			return true, m.reset(false)
		case "esc", "c", "C":
			m.confirmBackup = false
		}
		return false, nil
	}

	switch msg.String() {
	case "r", "R":
		m.confirmBackup = true
	case "q", "Q", "esc", "ctrl+c":
		if m.onQuit != nil {
			cmd = m.onQuit()
		}
		return true, cmd
	}
	return false, nil
}

func (m *ConfigErrorModal) reset(backup bool) tea.Cmd {
	if m.onReset == nil {
		return nil
	}
	return m.onReset(backup)
}

// Render returns the modal centered in a width x height area
func (m *ConfigErrorModal) Render(width, height int) string {
	muted := lipgloss.NewStyle().Foreground(mutedColor)

	var content string
	if m.confirmBackup {
		content = lipgloss.JoinVertical(
			lipgloss.Center,
			lipgloss.NewStyle().Bold(true).Foreground(primaryColor).MarginBottom(1).
				Render("Backup Configuration?"),
			"Back up the current config before resetting it?",
			muted.MarginTop(1).
				Render(fmt.Sprintf("Backup: %s.backup-%s", m.configPath, time.Now().Format("2006-01-02"))),
			muted.MarginTop(1).Render("[Y] Yes, backup first  [N] No, just reset  [C] Cancel"),
		)
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, boxStyle.Render(content))
	}

	parts := []string{
		lipgloss.NewStyle().Bold(true).Foreground(errorColor).MarginBottom(1).
			Render("Configuration File Error"),
		muted.Render("File: " + m.configPath),
		lipgloss.NewStyle().Foreground(errorColor).Width(64).MarginTop(1).
			Render(m.errorMessage),
	}
	if context := m.renderLineContext(); context != "" {
		parts = append(parts, context)
	}
	parts = append(parts, muted.MarginTop(1).Render("[R] Reset to defaults  [Q] Quit"))

	content = lipgloss.JoinVertical(lipgloss.Center, parts...)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, boxStyle.Render(content))
}

// renderLineContext shows the failing line with two lines either side
func (m *ConfigErrorModal) renderLineContext() string {
	if m.lineNumber <= 0 || m.lineNumber > len(m.fileContent) {
		return ""
	}

	numStyle := lipgloss.NewStyle().Foreground(mutedColor)
	badStyle := lipgloss.NewStyle().Foreground(errorColor).Bold(true)

	var lines []string
	for n := max(1, m.lineNumber-2); n <= min(len(m.fileContent), m.lineNumber+2); n++ {
		text := m.fileContent[n-1]
		if len([]rune(text)) > 56 {
			text = string([]rune(text)[:53]) + "..."
		}

		prefix := numStyle.Render(fmt.Sprintf("%3d│ ", n))
		if n == m.lineNumber {
			lines = append(lines, prefix+badStyle.Render(text)+" ← here")
			continue
		}
		lines = append(lines, prefix+text)
	}

	return lipgloss.NewStyle().MarginTop(1).Render(strings.Join(lines, "\n"))
}
