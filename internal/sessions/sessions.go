// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sessions persists each user's chat sessions as one blob,
// most recent first.
package sessions

import (
	"context"
	"fmt"

	"github.com/jeranaias/iachat/internal/logging"
	"github.com/jeranaias/iachat/internal/model"
	"github.com/jeranaias/iachat/internal/storage"
)

// Repository reads and writes session snapshots.
type Repository struct {
	store storage.Store
	log   logging.Logger
}

// New creates a Repository over store.
func New(store storage.Store, log logging.Logger) *Repository {
	if log == nil {
		log = logging.Nop()
	}
	return &Repository{store: store, log: log.With("component", "sessions")}
}

// Load returns the user's sessions. Absent, unreadable and malformed data
// all read as no sessions; the latter two are logged.
func (r *Repository) Load(ctx context.Context, username string) []model.ChatSession {
	key := storage.SessionsKey(username)
	data, err := r.store.Get(ctx, key)
	if err != nil {
		r.log.Warn(ctx, "read history", "user", username, "error", err)
		return nil
	}
	if data == nil {
		return nil
	}
	sessions, err := model.DecodeSessions(data)
	if err != nil {
		r.log.Warn(ctx, "failed to parse history", "user", username, "error", err)
		return nil
	}
	return sessions
}

// Save writes a full snapshot of the user's sessions.
func (r *Repository) Save(ctx context.Context, username string, sessions []model.ChatSession) error {
	data, err := model.EncodeSessions(sessions)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := r.store.Set(ctx, storage.SessionsKey(username), data); err != nil {
		r.log.Error(ctx, "failed to save history", "user", username, "bytes", len(data), "error", err)
		return err
	}
	r.log.Debug(ctx, "history saved", "user", username, "sessions", len(sessions), "bytes", len(data))
	return nil
}

// Delete removes all of the user's sessions.
func (r *Repository) Delete(ctx context.Context, username string) error {
	if err := r.store.Delete(ctx, storage.SessionsKey(username)); err != nil {
		return err
	}
	r.log.Info(ctx, "history reset", "user", username)
	return nil
}
