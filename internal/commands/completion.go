// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// =============================================================================
// COMPLETER
// =============================================================================

// Completion is one candidate.
type Completion struct {
	Value       string
	Description string
	Score       int
}

// Completer handles tab completion for commands and arguments.
type Completer struct {
	registry *Registry

	// SessionCount and MessageCount size the numeric argument ranges.
	SessionCount func() int
	MessageCount func() int
}

// NewCompleter creates a completer over registry.
func NewCompleter(registry *Registry) *Completer {
	return &Completer{registry: registry}
}

// Complete returns candidates for the last word of input.
func (c *Completer) Complete(input string) []Completion {
	if !IsCommand(input) {
		return nil
	}
	input = strings.TrimLeft(input, " \t")
	parts := splitCommandLine(input)
	trailingSpace := strings.HasSuffix(input, " ")

	if len(parts) == 0 || (len(parts) == 1 && !trailingSpace) {
		partial := ""
		if len(parts) == 1 {
			partial = parts[0]
		}
		return c.completeCommands(partial)
	}

	cmd := c.registry.Get(strings.ToLower(parts[0]))
	if cmd == nil {
		return nil
	}
	argIndex := len(parts) - 2
	partial := parts[len(parts)-1]
	if trailingSpace {
		argIndex++
		partial = ""
	}
	if argIndex < 0 || argIndex >= len(cmd.Args) {
		return nil
	}
	return c.completeArg(cmd.Args[argIndex], partial)
}

// CompleteLine returns whole replacement lines, the form line editors expect.
func (c *Completer) CompleteLine(line string) []string {
	completions := c.Complete(line)
	if len(completions) == 0 {
		return nil
	}
	prefix := ""
	if i := strings.LastIndexAny(line, " \t"); i >= 0 {
		prefix = line[:i+1]
	}
	out := make([]string, len(completions))
	for i, comp := range completions {
		out[i] = prefix + comp.Value
	}
	return out
}

func (c *Completer) completeCommands(partial string) []Completion {
	partial = strings.ToLower(partial)
	var completions []Completion
	for _, cmd := range c.registry.All() {
		if cmd.Hidden {
			continue
		}
		if strings.HasPrefix(cmd.Name, partial) {
			completions = append(completions, Completion{
				Value:       cmd.Name,
				Description: cmd.Description,
				Score:       calculateScore(cmd.Name, partial),
			})
		}
	}
	sortCompletions(completions)
	return completions
}

// =============================================================================
// ARGUMENT COMPLETION
// =============================================================================

func (c *Completer) completeArg(def ArgDef, partial string) []Completion {
	switch def.Type {
	case ArgTypeEnum:
		return completeFromList(def.Values, partial)
	case ArgTypeSession:
		return completeRange(c.SessionCount, partial)
	case ArgTypeMessage:
		return completeRange(c.MessageCount, partial)
	case ArgTypeFile:
		return completeFiles(partial)
	default:
		return nil
	}
}

func completeRange(count func() int, partial string) []Completion {
	if count == nil {
		return nil
	}
	n := count()
	values := make([]string, n)
	for i := range values {
		values[i] = strconv.Itoa(i + 1)
	}
	return completeFromList(values, partial)
}

func completeFromList(values []string, partial string) []Completion {
	var completions []Completion
	lower := strings.ToLower(partial)
	for _, v := range values {
		if strings.HasPrefix(strings.ToLower(v), lower) {
			completions = append(completions, Completion{Value: v, Score: calculateScore(v, partial)})
		}
	}
	sortCompletions(completions)
	return completions
}

// completeFiles lists directory entries matching partial. Hidden entries
// only show when partial names them.
func completeFiles(partial string) []Completion {
	dir, prefix := filepath.Split(partial)
	readDir := dir
	if readDir == "" {
		readDir = "."
	}
	entries, err := os.ReadDir(readDir)
	if err != nil {
		return nil
	}

	var completions []Completion
	lower := strings.ToLower(prefix)
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(strings.ToLower(name), lower) {
			continue
		}
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(prefix, ".") {
			continue
		}
		value := dir + name
		score := calculateScore(name, prefix)
		if entry.IsDir() {
			value += string(os.PathSeparator)
			score += 5
		}
		completions = append(completions, Completion{Value: value, Score: score})
	}
	sortCompletions(completions)
	if len(completions) > 20 {
		completions = completions[:20]
	}
	return completions
}

// calculateScore favors exact and short matches.
func calculateScore(value, partial string) int {
	if partial == "" {
		return 50
	}
	if strings.EqualFold(value, partial) {
		return 100
	}
	return 80 - (len(value) - len(partial))
}

func sortCompletions(completions []Completion) {
	sort.SliceStable(completions, func(i, j int) bool {
		if completions[i].Score != completions[j].Score {
			return completions[i].Score > completions[j].Score
		}
		return completions[i].Value < completions[j].Value
	})
}
