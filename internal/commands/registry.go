// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Handler executes a command.
type Handler func(ctx context.Context, env *Env, args []string) (Result, error)

// Command is a slash command.
type Command struct {
	// Name is the primary name, e.g. "/help".
	Name    string
	Aliases []string

	Description string
	Usage       string
	Args        []ArgDef
	Handler     Handler

	// Confirm, when set, is a question the front end must have the user
	// accept before running the command.
	Confirm string

	Hidden   bool
	Category string
}

// ArgDef describes one positional argument.
type ArgDef struct {
	Name        string
	Required    bool
	Type        ArgType
	Description string

	// Values lists the choices of an enum argument.
	Values []string
}

// ArgType selects how an argument is completed.
type ArgType int

const (
	ArgTypeString  ArgType = iota // Free-form string
	ArgTypeSession                // Session number from the session list
	ArgTypeMessage                // Message number in the active session
	ArgTypeFile                   // File path
	ArgTypeEnum                   // One of Values
)

// Result is what a command hands back to the front end.
type Result struct {
	// Lines are informational output, one per line.
	Lines []string

	// Alert is a message the user must acknowledge, e.g. a device failure.
	Alert string

	// Quit asks the front end to exit.
	Quit bool
}

// ErrUnknownCommand is returned for names that are not registered.
var ErrUnknownCommand = errors.New("unknown command")

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry creates a registry with the built-in commands.
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
	r.registerBuiltins()
	return r
}

// Register adds a command, replacing any with the same name.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) *Command {
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	return r.aliases[name]
}

// All returns the commands sorted by name.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// ByCategory groups the visible commands by category.
func (r *Registry) ByCategory() map[string][]*Command {
	result := make(map[string][]*Command)
	for _, cmd := range r.All() {
		if cmd.Hidden {
			continue
		}
		category := cmd.Category
		if category == "" {
			category = "General"
		}
		result[category] = append(result[category], cmd)
	}
	return result
}

// Execute validates and runs a parsed command.
func (r *Registry) Execute(ctx context.Context, env *Env, parsed ParseResult) (Result, error) {
	if parsed.Command == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownCommand, parsed.Name)
	}
	if err := ValidateArgs(parsed.Command, parsed.Args); err != nil {
		return Result{}, err
	}
	return parsed.Command.Handler(ctx, env, parsed.Args)
}

// =============================================================================
// BUILT-IN COMMANDS
// =============================================================================

func (r *Registry) registerBuiltins() {
	// Navigation
	r.Register(&Command{
		Name:        "/help",
		Aliases:     []string{"/h", "/?"},
		Description: "Show available commands",
		Category:    "Navigation",
		Handler:     r.handleHelp,
	})
	r.Register(&Command{
		Name:        "/quit",
		Aliases:     []string{"/q", "/exit"},
		Description: "Exit iachat",
		Category:    "Navigation",
		Handler:     handleQuit,
	})

	// Conversation
	r.Register(&Command{
		Name:        "/new",
		Aliases:     []string{"/n"},
		Description: "Start a new chat",
		Category:    "Conversation",
		Handler:     handleNew,
	})
	r.Register(&Command{
		Name:        "/sessions",
		Aliases:     []string{"/ls"},
		Description: "List chat history",
		Category:    "Conversation",
		Handler:     handleSessions,
	})
	r.Register(&Command{
		Name:        "/switch",
		Aliases:     []string{"/s"},
		Description: "Open a chat from the history",
		Usage:       "/switch <number|id>",
		Args: []ArgDef{
			{Name: "session", Required: true, Type: ArgTypeSession, Description: "number from /sessions or a session id"},
		},
		Category: "Conversation",
		Handler:  handleSwitch,
	})
	r.Register(&Command{
		Name:        "/history",
		Description: "Show the messages of the current chat",
		Category:    "Conversation",
		Handler:     handleHistory,
	})
	r.Register(&Command{
		Name:        "/export",
		Description: "Export the current chat to a file",
		Usage:       "/export [markdown|json|yaml]",
		Args: []ArgDef{
			{Name: "format", Type: ArgTypeEnum, Values: []string{"markdown", "md", "json", "yaml", "yml"}, Description: "output format"},
		},
		Category: "Conversation",
		Handler:  handleExport,
	})

	// Media
	r.Register(&Command{
		Name:        "/attach",
		Aliases:     []string{"/a"},
		Description: "Attach an image or audio file to the next message",
		Usage:       "/attach <file>",
		Args: []ArgDef{
			{Name: "file", Required: true, Type: ArgTypeFile, Description: "path to an image or audio file"},
		},
		Category: "Media",
		Handler:  handleAttach,
	})
	r.Register(&Command{
		Name:        "/camera",
		Description: "Take a photo and send it",
		Category:    "Media",
		Handler:     handleCamera,
	})
	r.Register(&Command{
		Name:        "/mic",
		Description: "Record a voice message and send it",
		Category:    "Media",
		Handler:     handleMic,
	})

	// Speech
	r.Register(&Command{
		Name:        "/speak",
		Description: "Read a message aloud (default: the last reply)",
		Usage:       "/speak [number]",
		Args: []ArgDef{
			{Name: "message", Type: ArgTypeMessage, Description: "number from /history"},
		},
		Category: "Speech",
		Handler:  handleSpeak,
	})
	r.Register(&Command{
		Name:        "/stop",
		Description: "Stop reading aloud",
		Category:    "Speech",
		Handler:     handleStop,
	})
	r.Register(&Command{
		Name:        "/voice",
		Description: "Toggle reading every reply aloud",
		Category:    "Speech",
		Handler:     handleVoice,
	})

	// Account
	r.Register(&Command{
		Name:        "/logout",
		Description: "Log out",
		Category:    "Account",
		Handler:     handleLogout,
	})
	r.Register(&Command{
		Name:        "/reset",
		Description: "Permanently delete all chat history (owner only)",
		Confirm:     ResetConfirmText,
		Category:    "Account",
		Handler:     handleReset,
	})
}
