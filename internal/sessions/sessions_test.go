// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sessions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/iachat/internal/model"
	"github.com/jeranaias/iachat/internal/storage"
)

func TestLoad_Absent(t *testing.T) {
	repo := New(storage.NewMemoryStore(0), nil)
	assert.Nil(t, repo.Load(context.Background(), "nobody"))
}

func TestLoad_Malformed(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(0)
	require.NoError(t, store.Set(ctx, storage.SessionsKey("bob"), []byte("{not json")))

	repo := New(store, nil)
	assert.Nil(t, repo.Load(ctx, "bob"))
}

func TestSaveLoad_PreservesOrder(t *testing.T) {
	ctx := context.Background()
	repo := New(storage.NewMemoryStore(0), nil)

	newer := model.NewSession("Bob")
	older := model.NewSession("Bob")
	older.Append(model.NewUserMessage("hello", nil))
	require.NoError(t, repo.Save(ctx, "bob", []model.ChatSession{newer, older}))

	got := repo.Load(ctx, "bob")
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)
	require.Len(t, got[1].Messages, 2)
	assert.Equal(t, "hello", got[1].Messages[1].Text)
}

func TestSave_PerUser(t *testing.T) {
	ctx := context.Background()
	repo := New(storage.NewMemoryStore(0), nil)

	require.NoError(t, repo.Save(ctx, "a", []model.ChatSession{model.NewSession("A")}))
	assert.Nil(t, repo.Load(ctx, "b"))
	assert.Len(t, repo.Load(ctx, "a"), 1)
}

func TestSave_QuotaExceeded(t *testing.T) {
	ctx := context.Background()
	repo := New(storage.NewMemoryStore(16), nil)

	err := repo.Save(ctx, "bob", []model.ChatSession{model.NewSession("Bob")})
	require.Error(t, err)
	assert.True(t, storage.IsQuotaExceeded(err))
	assert.Nil(t, repo.Load(ctx, "bob"))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(0)
	repo := New(store, nil)
	require.NoError(t, repo.Save(ctx, "bob", []model.ChatSession{model.NewSession("Bob")}))

	require.NoError(t, repo.Delete(ctx, "bob"))

	data, err := store.Get(ctx, storage.SessionsKey("bob"))
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Nil(t, repo.Load(ctx, "bob"))
}
