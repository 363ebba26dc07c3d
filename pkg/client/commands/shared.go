// ABOUTME: Slash command definitions used by line-oriented clients
// ABOUTME: Defines command names, usage, help text, and availability conditions
package commands

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotCommand is returned by Parse for lines that do not start with '/'
	ErrNotCommand = errors.New("not a command")
	// ErrUnknownCommand is returned by Parse for unrecognized command names
	ErrUnknownCommand = errors.New("unknown command")
)

// CommandDefinition represents a slash command
type CommandDefinition struct {
	// Names that trigger this command, without the leading slash
	Keys []string

	// Name of the command for display
	Name string

	// Usage shows the argument syntax (e.g., "<channel>")
	Usage string

	// Help text description for /help
	HelpText string

	// Scope defines when this command is available
	Scope CommandScope

	// ArgRequired rejects the command when no argument is given
	ArgRequired bool

	// ActionID is passed to ExecuteAction
	ActionID string

	// Priority for display ordering (lower = listed first)
	Priority int
}

// CommandScope defines the availability scope of a command
type CommandScope int

const (
	ScopeGlobal    CommandScope = iota // Available everywhere
	ScopeConnected                     // Needs a live connection
)

// String returns the scope name for debugging
func (s CommandScope) String() string {
	switch s {
	case ScopeGlobal:
		return "Global"
	case ScopeConnected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// SharedCommands contains all slash commands
var SharedCommands = []CommandDefinition{
	// === Channel Commands ===

	{
		Keys:        []string{"join", "j"},
		Name:        "Join",
		Usage:       "<channel>",
		HelpText:    "Join a channel and make it current",
		Scope:       ScopeConnected,
		ArgRequired: true,
		ActionID:    ActionJoin,
		Priority:    10,
	},

	{
		Keys:     []string{"channels", "list"},
		Name:     "Channels",
		HelpText: "List channels on the server",
		Scope:    ScopeConnected,
		ActionID: ActionListChannels,
		Priority: 20,
	},

	{
		Keys:     []string{"users", "who"},
		Name:     "Users",
		Usage:    "[channel]",
		HelpText: "List users in a channel",
		Scope:    ScopeConnected,
		ActionID: ActionListUsers,
		Priority: 30,
	},

	{
		Keys:     []string{"history"},
		Name:     "History",
		Usage:    "[channel]",
		HelpText: "Show messages received this session",
		Scope:    ScopeGlobal,
		ActionID: ActionHistory,
		Priority: 40,
	},

	// === User Commands ===

	{
		Keys:        []string{"nick"},
		Name:        "Nickname",
		Usage:       "<name>",
		HelpText:    "Change your user name",
		Scope:       ScopeConnected,
		ArgRequired: true,
		ActionID:    ActionChangeNickname,
		Priority:    50,
	},

	// === Global Commands ===

	{
		Keys:     []string{"stats"},
		Name:     "Stats",
		HelpText: "Show connection state and traffic",
		Scope:    ScopeGlobal,
		ActionID: ActionStats,
		Priority: 900,
	},

	{
		Keys:     []string{"help", "?"},
		Name:     "Help",
		HelpText: "Show available commands",
		Scope:    ScopeGlobal,
		ActionID: ActionHelp,
		Priority: 950,
	},

	{
		Keys:     []string{"quit", "exit"},
		Name:     "Quit",
		HelpText: "Exit application",
		Scope:    ScopeGlobal,
		ActionID: ActionQuit,
		Priority: 999,
	},
}

// GetCommandsForContext returns all commands available in the current state,
// sorted by priority
func GetCommandsForContext(executor CommandExecutor) []CommandDefinition {
	var available []CommandDefinition

	for _, cmd := range SharedCommands {
		if isCommandAvailable(cmd, executor) {
			available = append(available, cmd)
		}
	}

	// Sort by priority
	sort.Slice(available, func(i, j int) bool {
		return available[i].Priority < available[j].Priority
	})

	return available
}

// FindCommandForKey returns the command registered under key, regardless of
// availability. Returns nil if no command matches.
func FindCommandForKey(key string) *CommandDefinition {
	for i := range SharedCommands {
		cmd := &SharedCommands[i]
		if keyMatches(key, cmd.Keys) {
			return cmd
		}
	}
	return nil
}

// Parse splits a "/name arg" line into its command and trimmed argument
func Parse(line string) (*CommandDefinition, string, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return nil, "", ErrNotCommand
	}

	key, arg, _ := strings.Cut(line[1:], " ")
	cmd := FindCommandForKey(key)
	if cmd == nil {
		return nil, "", fmt.Errorf("%w /%s", ErrUnknownCommand, key)
	}
	return cmd, strings.TrimSpace(arg), nil
}

// Execute parses and runs one slash command line. It returns a message for
// the user when the command cannot run, and whether to keep going.
func Execute(line string, executor CommandExecutor) (string, bool) {
	cmd, arg, err := Parse(line)
	if err != nil {
		if errors.Is(err, ErrUnknownCommand) {
			return err.Error() + " (try /help)", true
		}
		return err.Error(), true
	}

	if cmd.ArgRequired && arg == "" {
		return "usage: " + cmd.UsageText(), true
	}
	if !isCommandAvailable(*cmd, executor) {
		return "not connected", true
	}

	return "", executor.ExecuteAction(cmd.ActionID, arg)
}

// isCommandAvailable checks if a command is available in the current state
func isCommandAvailable(cmd CommandDefinition, executor CommandExecutor) bool {
	switch cmd.Scope {
	case ScopeGlobal:
		// Global commands are always in scope
	case ScopeConnected:
		return executor.IsConnected()
	}
	return true
}

// keyMatches checks if a key string matches any of the command's keys
func keyMatches(key string, commandKeys []string) bool {
	keyLower := strings.ToLower(key)
	for _, cmdKey := range commandKeys {
		if strings.ToLower(cmdKey) == keyLower {
			return true
		}
	}
	return false
}

// UsageText returns the command line syntax
// Examples: "/join <channel>", "/quit"
func (c *CommandDefinition) UsageText() string {
	if len(c.Keys) == 0 {
		return ""
	}
	if c.Usage == "" {
		return "/" + c.Keys[0]
	}
	return "/" + c.Keys[0] + " " + c.Usage
}

// GenerateHelpContent returns help text formatted for display
// Returns [][]string where each entry is [usage, description]
func GenerateHelpContent(executor CommandExecutor) [][]string {
	commands := GetCommandsForContext(executor)

	var help [][]string
	for _, cmd := range commands {
		help = append(help, []string{cmd.UsageText(), cmd.HelpText})
	}

	return help
}
