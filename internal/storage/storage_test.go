// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactories lets every behavioral test run against each backend.
func storeFactories(t *testing.T, quota int64) map[string]Store {
	t.Helper()
	ctx := context.Background()

	fs, err := NewFileStore(t.TempDir(), WithFileQuota(quota))
	require.NoError(t, err)

	sq, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "iachat.db"), WithSQLiteQuota(quota))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })

	return map[string]Store{
		"file":   fs,
		"sqlite": sq,
		"memory": NewMemoryStore(quota),
	}
}

// =============================================================================
// BEHAVIOR SHARED BY ALL BACKENDS
// =============================================================================

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeFactories(t, 0) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, KeyUsers, []byte(`[{"username":"a"}]`)))

			got, err := s.Get(ctx, KeyUsers)
			require.NoError(t, err)
			assert.Equal(t, `[{"username":"a"}]`, string(got))

			require.NoError(t, s.Set(ctx, KeyUsers, []byte(`[]`)))
			got, err = s.Get(ctx, KeyUsers)
			require.NoError(t, err)
			assert.Equal(t, `[]`, string(got))
		})
	}
}

func TestStore_AbsentKey(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeFactories(t, 0) {
		t.Run(name, func(t *testing.T) {
			got, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.Nil(t, got)

			assert.NoError(t, s.Delete(ctx, "missing"))
		})
	}
}

func TestStore_DeleteAndKeys(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeFactories(t, 0) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, SessionsKey("bob"), []byte("b")))
			require.NoError(t, s.Set(ctx, SessionsKey("alice"), []byte("a")))
			require.NoError(t, s.Set(ctx, KeyActiveUser, []byte("{}")))

			keys, err := s.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"chat_active_user", "chats_alice", "chats_bob"}, keys)

			require.NoError(t, s.Delete(ctx, SessionsKey("bob")))
			got, err := s.Get(ctx, SessionsKey("bob"))
			require.NoError(t, err)
			assert.Nil(t, got)

			keys, err = s.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"chat_active_user", "chats_alice"}, keys)
		})
	}
}

func TestStore_QuotaKeepsPreviousValue(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeFactories(t, 10) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, "a", []byte("12345")))
			require.NoError(t, s.Set(ctx, "b", []byte("123")))

			err := s.Set(ctx, "a", []byte("12345678"))
			require.Error(t, err)
			assert.True(t, IsQuotaExceeded(err))

			var opErr *OpError
			require.True(t, errors.As(err, &opErr))
			assert.Equal(t, "set", opErr.Op)
			assert.Equal(t, "a", opErr.Key)

			got, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "12345", string(got))

			// Shrinking one value frees room for another.
			require.NoError(t, s.Set(ctx, "a", []byte("1")))
			require.NoError(t, s.Set(ctx, "b", []byte("123456789")))
		})
	}
}

func TestQuotaAllows(t *testing.T) {
	assert.True(t, quotaAllows(0, 1<<30, 0, 1<<30))
	assert.True(t, quotaAllows(10, 10, 5, 5))
	assert.False(t, quotaAllows(10, 10, 5, 6))
	assert.True(t, quotaAllows(10, 0, 0, 10))
}

func TestSessionsKey(t *testing.T) {
	assert.Equal(t, "chats_Nice222", SessionsKey("Nice222"))
}

// =============================================================================
// FILE STORE
// =============================================================================

func TestFileStore_KeyEscaping(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	keys := []string{"chats_../../etc", "chats_ผู้ใช้", ".hidden", "a/b"}
	for _, k := range keys {
		require.NoError(t, s.Set(ctx, k, []byte(k)))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, len(keys), "every key must map to a file inside the store directory")

	for _, k := range keys {
		got, err := s.Get(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, k, string(got))
	}

	listed, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, keys, listed)
}

func TestFileStore_IgnoresTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tmp-123"), []byte("partial"), 0600))
	require.NoError(t, s.Set(ctx, "k", []byte("v")))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)
}

func TestFileStore_FilePermissions(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, KeyUsers, []byte("[]")))

	info, err := os.Stat(filepath.Join(dir, nameForKey(KeyUsers)))
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestFileStore_WatchReportsForeignWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	other, err := NewFileStore(dir)
	require.NoError(t, err)

	changed := make(chan string, 16)
	require.NoError(t, s.Watch(ctx, func(key string) { changed <- key }))

	require.NoError(t, s.Set(ctx, KeyActiveUser, []byte("mine")))
	require.NoError(t, other.Set(ctx, KeyUsers, []byte("theirs")))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case key := <-changed:
			require.NotEqual(t, KeyActiveUser, key, "own writes must not be reported")
			if key == KeyUsers {
				return
			}
		case <-deadline:
			t.Fatal("foreign write was not reported")
		}
	}
}

// =============================================================================
// MEMORY STORE
// =============================================================================

func TestMemoryStore_FailWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	require.NoError(t, s.Set(ctx, "k", []byte("old")))

	boom := errors.New("disk on fire")
	s.FailWrites(func(key string) error {
		if key == "k" {
			return boom
		}
		return nil
	})

	err := s.Set(ctx, "k", []byte("new"))
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, s.Set(ctx, "other", []byte("ok")))

	got, _ := s.Get(ctx, "k")
	assert.Equal(t, "old", string(got))

	s.FailWrites(nil)
	require.NoError(t, s.Set(ctx, "k", []byte("new")))
	got, _ = s.Get(ctx, "k")
	assert.Equal(t, "new", string(got))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	value := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", value))
	value[0] = 'X'

	got, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
	got[1] = 'Y'

	again, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}
