// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
)

// =============================================================================
// KEYS
// =============================================================================

const (
	// KeyActiveUser holds the serialized profile of the logged-in user.
	KeyActiveUser = "chat_active_user"

	// KeyUsers holds the serialized credential collection.
	KeyUsers = "chat_users_db"

	sessionsKeyPrefix = "chats_"
)

// SessionsKey returns the key holding a user's chat sessions.
func SessionsKey(username string) string {
	return sessionsKeyPrefix + username
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is a string-keyed blob store. Every Set replaces the whole value;
// there are no partial writes.
type Store interface {
	// Get returns the value for key, or (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists all stored keys.
	Keys(ctx context.Context) ([]string, error)

	// Close releases resources held by the store.
	Close() error
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrQuotaExceeded is returned by Set when the write would push the store
// past its configured size limit. The previous value stays in place.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// OpError records the operation and key that failed.
type OpError struct {
	Op  string
	Key string
	Err error
}

func (e *OpError) Error() string {
	return "storage " + e.Op + " " + e.Key + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// IsQuotaExceeded reports whether err is a quota failure.
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// quotaAllows reports whether replacing a value of oldLen bytes with one of
// newLen bytes keeps total within quota. A quota of 0 means unlimited.
func quotaAllows(quota, total, oldLen, newLen int64) bool {
	if quota <= 0 {
		return true
	}
	return total-oldLen+newLen <= quota
}
