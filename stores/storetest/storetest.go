// Package storetest holds behaviour checks shared by every store backend.
package storetest

import (
	"context"
	"testing"
	"time"

	"nocap-editor/core"
	"nocap-editor/document"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ProjectStore exercises the ProjectStore contract against a fresh store
// returned by newStore.
func ProjectStore(t *testing.T, newStore func(t *testing.T) core.ProjectStore) {
	t.Run("create seeds empty snapshot", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		p, err := store.CreateProject(ctx, "user-1", "Poster")
		require.NoError(t, err)
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, "user-1", p.UserID)
		assert.Equal(t, string(document.EmptySnapshot()), p.Content)

		fetched, err := store.FetchProject(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.Name, fetched.Name)
		assert.Equal(t, p.Content, fetched.Content)
		assert.WithinDuration(t, p.CreatedAt, fetched.CreatedAt, time.Second)
	})

	t.Run("fetch missing", func(t *testing.T) {
		_, err := newStore(t).FetchProject(context.Background(), "missing")
		assert.ErrorIs(t, err, core.ErrProjectNotFound)
	})

	t.Run("update applies only given fields", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		p, err := store.CreateProject(ctx, "user-1", "Poster")
		require.NoError(t, err)

		content := `{"objects":[{"type":"rect"}],"version":"5.3.0"}`
		thumb := "data:image/png;base64,AAAA"
		updated, err := store.UpdateProject(ctx, p.ID, core.ProjectUpdate{Content: &content, Thumbnail: &thumb})
		require.NoError(t, err)
		assert.Equal(t, "Poster", updated.Name)
		assert.Equal(t, content, updated.Content)
		assert.Equal(t, thumb, updated.Thumbnail)

		name := "Flyer"
		_, err = store.UpdateProject(ctx, p.ID, core.ProjectUpdate{Name: &name})
		require.NoError(t, err)

		fetched, err := store.FetchProject(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Flyer", fetched.Name)
		assert.Equal(t, content, fetched.Content)
		assert.False(t, fetched.UpdatedAt.Before(p.UpdatedAt))
	})

	t.Run("update missing", func(t *testing.T) {
		name := "x"
		_, err := newStore(t).UpdateProject(context.Background(), "missing", core.ProjectUpdate{Name: &name})
		assert.ErrorIs(t, err, core.ErrProjectNotFound)
	})

	t.Run("list is scoped and newest first", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		first, err := store.CreateProject(ctx, "user-1", "First")
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
		second, err := store.CreateProject(ctx, "user-1", "Second")
		require.NoError(t, err)
		_, err = store.CreateProject(ctx, "user-2", "Other")
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)
		name := "First again"
		_, err = store.UpdateProject(ctx, first.ID, core.ProjectUpdate{Name: &name})
		require.NoError(t, err)

		projects, err := store.ListProjects(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, projects, 2)
		assert.Equal(t, first.ID, projects[0].ID)
		assert.Equal(t, second.ID, projects[1].ID)
		assert.Empty(t, projects[0].Content)

		none, err := store.ListProjects(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		p, err := store.CreateProject(ctx, "user-1", "Poster")
		require.NoError(t, err)

		require.NoError(t, store.DeleteProject(ctx, p.ID))
		_, err = store.FetchProject(ctx, p.ID)
		assert.ErrorIs(t, err, core.ErrProjectNotFound)
		assert.ErrorIs(t, store.DeleteProject(ctx, p.ID), core.ErrProjectNotFound)
	})
}

// AssetStore exercises the AssetStore contract.
func AssetStore(t *testing.T, newStore func(t *testing.T) core.AssetStore) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.CreateAsset(ctx, core.NewAsset{UserID: "user-1"})
	assert.Error(t, err, "url is required")

	older, err := store.CreateAsset(ctx, core.NewAsset{UserID: "user-1", URL: "https://cdn/a.png", Name: "a.png", Size: 10, Type: "image/png"})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	newer, err := store.CreateAsset(ctx, core.NewAsset{UserID: "user-1", URL: "https://cdn/b.png"})
	require.NoError(t, err)

	assets, err := store.ListAssets(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, newer.ID, assets[0].ID)
	assert.Equal(t, older.ID, assets[1].ID)
	assert.Equal(t, int64(10), assets[1].Size)

	require.NoError(t, store.DeleteAsset(ctx, older.ID))
	assert.ErrorIs(t, store.DeleteAsset(ctx, older.ID), core.ErrAssetNotFound)

	assets, err = store.ListAssets(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, assets, 1)
}

// KeyValueStore exercises the KeyValueStore contract.
func KeyValueStore(t *testing.T, kv core.KeyValueStore) {
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "history")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Put(ctx, map[string]string{"history": `["a"]`, "history-index": "0"}))
	require.NoError(t, kv.Put(ctx, map[string]string{"history-index": "3"}))

	v, ok, err := kv.Get(ctx, "history")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `["a"]`, v)
	v, _, _ = kv.Get(ctx, "history-index")
	assert.Equal(t, "3", v)

	require.NoError(t, kv.Delete(ctx, "history", "history-index", "never-set"))
	_, ok, _ = kv.Get(ctx, "history")
	assert.False(t, ok)
	_, ok, _ = kv.Get(ctx, "history-index")
	assert.False(t, ok)
}
