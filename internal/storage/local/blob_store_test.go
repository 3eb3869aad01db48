// Package local_test tests the local filesystem resource store.
package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/adcatalog/internal/storage"
	"github.com/JakeFAU/adcatalog/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "public")
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		tempFile := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(tempFile, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: tempFile})
		assert.Error(t, err)
	})
}

func newStore(t *testing.T) (*local.BlobStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)
	return store, dir
}

func TestPutAndGet(t *testing.T) {
	t.Parallel()
	store, dir := newStore(t)
	ctx := context.Background()

	uri, err := store.Put(ctx, "300x250/entries.json", "application/json", []byte(`{"entries":{}}`))
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.Join(dir, "300x250", "entries.json"), uri)

	data, err := store.Get(ctx, "300x250/entries.json")
	require.NoError(t, err)
	assert.Equal(t, `{"entries":{}}`, string(data))

	_, err = store.Put(ctx, "300x250/entries.json", "application/json", []byte(`{"entries":{"a":{}}}`))
	require.NoError(t, err)
	data, err = store.Get(ctx, "300x250/entries.json")
	require.NoError(t, err)
	assert.Equal(t, `{"entries":{"a":{}}}`, string(data))

	// no temp files are left behind after replacement
	names, err := os.ReadDir(filepath.Join(dir, "300x250"))
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

func TestPutRejectsTraversalAndEmpty(t *testing.T) {
	t.Parallel()
	store, _ := newStore(t)

	_, err := store.Put(context.Background(), "", "", []byte("data"))
	assert.Error(t, err)
	_, err = store.Put(context.Background(), "../escape.txt", "", []byte("data"))
	assert.Error(t, err)
}

func TestPutHonoursCanceledContext(t *testing.T) {
	t.Parallel()
	store, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Put(ctx, "a.png", "image/png", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.Get(context.Background(), "a.png")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetMissing(t *testing.T) {
	t.Parallel()
	store, _ := newStore(t)

	_, err := store.Get(context.Background(), "nope.png")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMoveKeepsContent(t *testing.T) {
	t.Parallel()
	store, dir := newStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "300x250/a.png", "image/png", []byte("png"))
	require.NoError(t, err)
	require.NoError(t, store.Move(ctx, "300x250/a.png", "debug/a.png"))

	_, err = store.Get(ctx, "300x250/a.png")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	// #nosec G304 -- test reads from the controlled temp directory.
	moved, err := os.ReadFile(filepath.Join(dir, "debug", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(moved))

	assert.ErrorIs(t, store.Move(ctx, "300x250/missing.png", "debug/missing.png"), storage.ErrNotFound)
}

func TestListAndDelete(t *testing.T) {
	t.Parallel()
	store, _ := newStore(t)
	ctx := context.Background()

	for _, name := range []string{"300x250/b.png", "300x250/a.png", "300x250/nested/c.png", "fiction.json"} {
		_, err := store.Put(ctx, name, "", []byte(name))
		require.NoError(t, err)
	}

	names, err := store.List(ctx, "300x250")
	require.NoError(t, err)
	assert.Equal(t, []string{"300x250/a.png", "300x250/b.png"}, names)

	root, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"fiction.json"}, root)

	empty, err := store.List(ctx, "200x300")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, store.Delete(ctx, "300x250/a.png"))
	assert.ErrorIs(t, store.Delete(ctx, "300x250/a.png"), storage.ErrNotFound)
}
