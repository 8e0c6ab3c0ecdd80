// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a chat session to Markdown, JSON or YAML.
//
// Usage:
//
//	exp, err := export.ForFormat("md", nil)
//	path, err := export.ToFile(&session, exp, nil)
package export
