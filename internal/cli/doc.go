// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli is the iachat command line.
//
// The root command starts the full-screen chat. Subcommands cover the
// line-mode chat and scripted use:
//
//   - chat: line-mode chat with history and tab completion
//   - login, register, logout, whoami: the active account
//   - sessions, export: saved conversations
//   - reset: delete all chat history (owner only)
//   - config: show or change settings
//
// Every command boots the same runtime: config, log file, store, backend
// client, speech player and the app controller. Errors map to exit codes
// through GetExitCode.
package cli
