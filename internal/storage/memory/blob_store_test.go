package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/adcatalog/internal/storage"
)

func TestBlobStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	ctx := context.Background()

	uri, err := store.Put(ctx, "300x250/a.png", "image/png", []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, "memory://300x250/a.png", uri)

	data, err := store.Get(ctx, "300x250/a.png")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)

	_, err = store.Put(ctx, "fiction.json", "application/json", []byte("{}"))
	require.NoError(t, err)

	names, err := store.List(ctx, "300x250")
	require.NoError(t, err)
	require.Equal(t, []string{"300x250/a.png"}, names)
	root, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"fiction.json"}, root)

	require.NoError(t, store.Move(ctx, "300x250/a.png", "debug/a.png"))
	require.False(t, store.Has("300x250/a.png"))
	require.True(t, store.Has("debug/a.png"))
	require.ErrorIs(t, store.Move(ctx, "300x250/a.png", "debug/b.png"), storage.ErrNotFound)

	require.NoError(t, store.Delete(ctx, "debug/a.png"))
	_, err = store.Get(ctx, "debug/a.png")
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.ErrorIs(t, store.Delete(ctx, "debug/a.png"), storage.ErrNotFound)
}

func TestBlobStoreCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	buf := []byte("abc")
	_, err := store.Put(context.Background(), "x", "", buf)
	require.NoError(t, err)
	buf[0] = 'z'
	got, err := store.Get(context.Background(), "x")
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))
}
