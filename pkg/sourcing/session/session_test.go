package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/procura/pkg/sourcing"
)

func TestMemoryStoreSaveLoad(t *testing.T) {
	store := NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	state := sourcing.NewState("sess-1")
	state.Intent = sourcing.IntentSupplierSearch
	state.Entities["category"] = "electronics"

	require.NoError(t, store.Save(ctx, "sess-1", state, 0))

	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, sourcing.IntentSupplierSearch, loaded.Intent)
	assert.Equal(t, "electronics", loaded.Entities["category"])
}

func TestMemoryStoreLoadMissing(t *testing.T) {
	store := NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	store := NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sess-ttl", sourcing.NewState("sess-ttl"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := store.Load(ctx, "sess-ttl")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := store.Exists(ctx, "sess-ttl")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreExistsAndDelete(t *testing.T) {
	store := NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sess-2", sourcing.NewState("sess-2"), 0))

	ok, err := store.Exists(ctx, "sess-2")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, "sess-2"))
	// Deleting again is not an error.
	require.NoError(t, store.Delete(ctx, "sess-2"))

	ok, err = store.Exists(ctx, "sess-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreClosed(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Close())
	ctx := context.Background()

	assert.ErrorIs(t, store.Save(ctx, "x", sourcing.State{}, 0), ErrStoreClosed)
	_, err := store.Load(ctx, "x")
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.Exists(ctx, "x")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.Delete(ctx, "x"), ErrStoreClosed)
}
