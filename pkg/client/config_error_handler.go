package client

import (
	"errors"
	"fmt"
	"io"

	"github.com/butembo/butembochat/pkg/client/ui/modal"
	tea "github.com/charmbracelet/bubbletea"
)

// ConfigErrorHandler shows a config error modal and handles user actions
type ConfigErrorHandler struct {
	modal      *modal.ConfigErrorModal
	configPath string
	width      int
	height     int
	result     string
}

// NewConfigErrorHandler creates a new config error handler
func NewConfigErrorHandler(configPath string, err *ConfigError) *ConfigErrorHandler {
	h := &ConfigErrorHandler{
		configPath: configPath,
		width:      80,
		height:     24,
	}

	h.modal = modal.NewConfigErrorModal(
		err.Path,
		err.Message,
		err.LineNumber,
		h.handleReset,
		h.handleQuit,
	)

	return h
}

// Init initializes the handler
func (h *ConfigErrorHandler) Init() tea.Cmd {
	return nil
}

// Update processes messages
func (h *ConfigErrorHandler) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h.width = msg.Width
		h.height = msg.Height
		return h, nil

	case tea.KeyMsg:
		closed, cmd := h.modal.HandleKey(msg)
		if closed && cmd == nil {
			return h, tea.Quit
		}
		return h, cmd

	case resetCompleteMsg:
		h.result = "✓ Configuration reset to defaults\nPlease restart the client to continue"
		return h, tea.Quit

	case resetErrorMsg:
		h.result = fmt.Sprintf("✗ Failed to reset config: %v", msg.err)
		return h, tea.Quit
	}

	return h, nil
}

// View renders the handler
func (h *ConfigErrorHandler) View() string {
	return h.modal.Render(h.width, h.height)
}

// Result is the outcome line to print once the program has exited, or
// empty when the user quit without resetting
func (h *ConfigErrorHandler) Result() string {
	return h.result
}

// handleReset resets the config to defaults
func (h *ConfigErrorHandler) handleReset(backup bool) tea.Cmd {
	return func() tea.Msg {
		if err := ResetConfigToDefault(h.configPath, backup); err != nil {
			return resetErrorMsg{err: err}
		}
		return resetCompleteMsg{}
	}
}

// handleQuit quits the program
func (h *ConfigErrorHandler) handleQuit() tea.Cmd {
	return tea.Quit
}

// Messages for reset operations
type resetCompleteMsg struct{}
type resetErrorMsg struct{ err error }

// HandleConfigError shows a TUI for handling config errors and writes the
// outcome to out. Returns true if the error was handled and program should exit
func HandleConfigError(configPath string, err error, out io.Writer, opts ...tea.ProgramOption) bool {
	var configErr *ConfigError
	if !errors.As(err, &configErr) {
		// Not a ConfigError, return false to use default error handling
		return false
	}

	handler := NewConfigErrorHandler(configPath, configErr)
	if _, err := tea.NewProgram(handler, opts...).Run(); err != nil {
		fmt.Fprintf(out, "Error displaying config error: %v\n", err)
		return true
	}

	if result := handler.Result(); result != "" {
		fmt.Fprintf(out, "\n%s\n", result)
	}
	return true
}
