// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash commands shared by the line REPL and
// the full-screen chat UI.
//
// Input that starts with "/" is parsed against a Registry and executed
// against an Env, which wraps the application controller and the capture
// devices. Handlers never print; they return a Result that each front end
// renders in its own way.
//
// # Usage
//
//	reg := commands.NewRegistry()
//	parsed := commands.NewParser(reg).Parse("/switch 2")
//	if parsed.IsCommand {
//	    res, err := reg.Execute(ctx, env, parsed)
//	    ...
//	}
//
// A Completer offers tab completion of command names, session numbers and
// file paths.
package commands
