// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app holds the UI-independent chat controller.
//
// A Controller owns the logged-in user, their sessions and the backend
// conversation for the active session. Front ends read immutable State
// snapshots and call action methods; they never touch the store or the
// backend directly.
package app
