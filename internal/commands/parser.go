// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"strings"
	"unicode"
)

// =============================================================================
// PARSE RESULT
// =============================================================================

// ParseResult is one line of user input split into command and arguments.
type ParseResult struct {
	// IsCommand is true if the input starts with /
	IsCommand bool

	// Command is nil when the name is not registered.
	Command *Command

	// Name is the command as typed, e.g. "/switch".
	Name string

	Args []string

	// RawArgs is everything after the command name, untokenized.
	RawArgs string
}

// =============================================================================
// PARSER
// =============================================================================

// Parser resolves command names against a registry.
type Parser struct {
	registry *Registry
}

// NewParser creates a parser over registry.
func NewParser(registry *Registry) *Parser {
	return &Parser{registry: registry}
}

// Parse splits input. Plain chat text yields IsCommand=false.
func (p *Parser) Parse(input string) ParseResult {
	input = strings.TrimSpace(input)
	if !IsCommand(input) {
		return ParseResult{}
	}

	result := ParseResult{IsCommand: true}
	parts := splitCommandLine(input)
	if len(parts) == 0 {
		return result
	}
	result.Name = strings.ToLower(parts[0])
	result.Args = parts[1:]
	if end := strings.IndexFunc(input, unicode.IsSpace); end >= 0 {
		result.RawArgs = strings.TrimSpace(input[end:])
	}
	result.Command = p.registry.Get(result.Name)
	return result
}

// IsCommand reports whether input is a slash command.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// splitCommandLine splits a command line into tokens. Single and double
// quotes group words; a backslash escapes a quote inside quotes.
func splitCommandLine(input string) []string {
	var tokens []string
	var current strings.Builder
	var inSingle, inDouble, started bool

	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\'' && !inDouble:
			inSingle = !inSingle
			started = true
		case r == '"' && !inSingle:
			inDouble = !inDouble
			started = true
		case r == '\\' && (inSingle || inDouble) && i+1 < len(runes) && strings.ContainsRune(`"'\`, runes[i+1]):
			current.WriteRune(runes[i+1])
			i++
		case unicode.IsSpace(r) && !inSingle && !inDouble:
			if started || current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
		}
	}
	if started || current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

// ValidateArgs checks the required argument count and enum values.
func ValidateArgs(cmd *Command, args []string) error {
	if cmd == nil {
		return nil
	}
	for i, def := range cmd.Args {
		if i >= len(args) {
			if def.Required {
				return &ValidationError{Command: cmd.Name, Arg: def.Name, Message: "required argument missing", Expected: def.Description}
			}
			continue
		}
		if def.Type != ArgTypeEnum {
			continue
		}
		ok := false
		for _, v := range def.Values {
			if strings.EqualFold(args[i], v) {
				ok = true
				break
			}
		}
		if !ok {
			return &ValidationError{Command: cmd.Name, Arg: def.Name, Message: "invalid value", Got: args[i], Expected: strings.Join(def.Values, ", ")}
		}
	}
	return nil
}

// ValidationError describes a bad command invocation.
type ValidationError struct {
	Command  string
	Arg      string
	Message  string
	Got      string
	Expected string
}

func (e *ValidationError) Error() string {
	msg := e.Command + ": " + e.Message
	if e.Arg != "" {
		msg += fmt.Sprintf(" for argument '%s'", e.Arg)
	}
	if e.Got != "" {
		msg += " (got: " + e.Got + ")"
	}
	if e.Expected != "" {
		msg += " - expected: " + e.Expected
	}
	return msg
}
