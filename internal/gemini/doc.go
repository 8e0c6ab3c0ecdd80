// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gemini is a small client for the Gemini generateContent REST API.
//
// Only what a chat client needs is implemented: streamed completions over
// server-sent events and a conversation handle that carries history.
//
// # Key Types
//
//   - Client: issues streamGenerateContent requests
//   - Chat: conversation handle; history grows only on completed replies
//   - Stream: pull-based reader of partial reply text
//   - ClientError: typed failure (connection, auth, rate limit, blocked)
package gemini
