// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the key-value blob store that holds credentials,
// the active-user pointer and per-user chat history.
//
// # Key Types
//
//   - Store: the Get/Set/Delete/Keys interface every backend implements
//   - FileStore: one JSON file per key, atomic writes, fsnotify change feed
//   - SQLiteStore: a single SQLite file with goose-managed schema
//   - MemoryStore: ephemeral store, also used by tests
//
// # Keys
//
//	chat_active_user     serialized profile of the logged-in user
//	chat_users_db        serialized credential collection
//	chats_<username>     serialized sessions of one user, most recent first
//
// # Quotas
//
// Each backend accepts an optional byte quota over the whole store. A Set
// that would exceed it fails with ErrQuotaExceeded and leaves the previous
// value untouched.
package storage
