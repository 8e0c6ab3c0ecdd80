// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for users, chat sessions and messages.
//
// # Key Types
//
//   - UserProfile: a locally registered account
//   - ChatSession: one conversation thread with ordered messages
//   - Message: a single user or assistant turn, optionally streaming
//   - Attachment: inline base64 image or audio sent with a user turn
//
// # Usage
//
//	sess := model.NewSession(user.Name)
//	if sess.IsFirstTurn() {
//	    sess.Title = model.DeriveTitle(text, len(attachments))
//	}
//	sess.Append(model.NewUserMessage(text, attachments))
//
// Stored JSON uses camelCase field names and RFC 3339 timestamps.
package model
