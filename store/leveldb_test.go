package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemKV(t *testing.T) *LevelDB {
	t.Helper()
	kv, err := NewMemLevelDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestLevelDB_GetMissing(t *testing.T) {
	kv := newMemKV(t)
	_, err := kv.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLevelDB_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV(t)

	// create-only
	require.NoError(t, kv.CompareAndSwap(ctx, "k", nil, []byte("v1")))
	assert.ErrorIs(t, kv.CompareAndSwap(ctx, "k", nil, []byte("again")), ErrConflict)

	// stale old value
	assert.ErrorIs(t, kv.CompareAndSwap(ctx, "k", []byte("v0"), []byte("v2")), ErrConflict)

	require.NoError(t, kv.CompareAndSwap(ctx, "k", []byte("v1"), []byte("v2")))
	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))

	// old set but key absent
	assert.ErrorIs(t, kv.CompareAndSwap(ctx, "missing", []byte("x"), []byte("y")), ErrConflict)
}

func TestLevelDB_IteratePrefixInKeyOrder(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV(t)

	for _, k := range []string{"b/2", "a/1", "b/1", "c/1", "b/10"} {
		require.NoError(t, kv.Put(ctx, k, []byte(k)))
	}

	var keys []string
	err := kv.Iterate(ctx, "b/", func(key string, value []byte) error {
		assert.Equal(t, key, string(value))
		keys = append(keys, key)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b/1", "b/10", "b/2"}, keys)
}

func TestLevelDB_HasAndDelete(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV(t)

	require.NoError(t, kv.Put(ctx, "k", []byte("v")))
	ok, err := kv.Has(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, kv.Delete(ctx, "k"))
	ok, err = kv.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
