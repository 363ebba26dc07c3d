// ABOUTME: CommandExecutor interface for the slash command system
// ABOUTME: Line-oriented front ends implement this to run parsed commands
package commands

// CommandExecutor is implemented by front ends that accept slash commands.
// It answers availability queries and performs the selected action.
type CommandExecutor interface {
	// === State Queries (for scope checks) ===

	IsConnected() bool // True if connected to a server

	// === Action Execution ===

	// ExecuteAction performs the given action with the command's argument.
	// Returns false if the user asked to quit.
	ExecuteAction(actionID, arg string) bool
}

// Standard action IDs
const (
	// Global actions
	ActionHelp  = "help"
	ActionQuit  = "quit"
	ActionStats = "stats"

	// Channel actions
	ActionJoin         = "join"
	ActionListChannels = "channels"
	ActionListUsers    = "users"
	ActionHistory      = "history"

	// User actions
	ActionChangeNickname = "nick"
)
