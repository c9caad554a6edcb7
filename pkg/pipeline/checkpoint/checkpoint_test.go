package checkpoint

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRoundTrip(t *testing.T) {
	chkpt := New("run-1", "risk", 3, []byte(`{"value": 7}`), "hitl").
		WithPrevStage("compliance")

	data, err := chkpt.Marshal()
	require.NoError(t, err)

	restored, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, Version, restored.Version)
	assert.Equal(t, "run-1", restored.RunID)
	assert.Equal(t, "risk", restored.StageID)
	assert.Equal(t, 3, restored.Sequence)
	assert.Equal(t, "hitl", restored.NextStage)
	assert.Equal(t, "compliance", restored.PrevStageID)
	assert.JSONEq(t, `{"value": 7}`, string(restored.State))
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := Unmarshal([]byte("not a checkpoint"))
	require.Error(t, err)
}

// storeFactory builds a fresh store per conformance test.
type storeFactory func(t *testing.T) Store

func stores(t *testing.T) map[string]storeFactory {
	t.Helper()
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "checkpoints.db"))
			require.NoError(t, err)
			return store
		},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			defer store.Close()

			require.NoError(t, store.Save("run-1", "intent", []byte("v1")))

			data, err := store.Load("run-1", "intent")
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), data)
		})
	}
}

func TestStoreOverwriteSameStage(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			defer store.Close()

			require.NoError(t, store.Save("run-1", "hitl", []byte("paused")))
			require.NoError(t, store.Save("run-1", "hitl", []byte("resumed")))

			data, err := store.Load("run-1", "hitl")
			require.NoError(t, err)
			assert.Equal(t, []byte("resumed"), data)

			infos, err := store.List("run-1")
			require.NoError(t, err)
			require.Len(t, infos, 1)
		})
	}
}

func TestStoreListOrderedBySequence(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			defer store.Close()

			for _, stage := range []string{"guardrails", "intent", "search"} {
				require.NoError(t, store.Save("run-1", stage, []byte(stage)))
			}
			require.NoError(t, store.Save("run-2", "guardrails", []byte("other run")))

			infos, err := store.List("run-1")
			require.NoError(t, err)
			require.Len(t, infos, 3)

			assert.Equal(t, "guardrails", infos[0].StageID)
			assert.Equal(t, "intent", infos[1].StageID)
			assert.Equal(t, "search", infos[2].StageID)
			for i, info := range infos {
				assert.Equal(t, "run-1", info.RunID)
				assert.Equal(t, i+1, info.Sequence)
				assert.False(t, info.Timestamp.IsZero())
				assert.Positive(t, info.Size)
			}
		})
	}
}

func TestStoreListEmptyRun(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			defer store.Close()

			infos, err := store.List("no-such-run")
			require.NoError(t, err)
			assert.Empty(t, infos)
		})
	}
}

func TestStoreLoadNotFound(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			defer store.Close()

			_, err := store.Load("run-1", "missing")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreDelete(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			defer store.Close()

			require.NoError(t, store.Save("run-1", "intent", []byte("x")))
			require.NoError(t, store.Delete("run-1", "intent"))

			_, err := store.Load("run-1", "intent")
			require.ErrorIs(t, err, ErrNotFound)

			// Deleting a missing checkpoint is not an error.
			require.NoError(t, store.Delete("run-1", "intent"))
		})
	}
}

func TestStoreDeleteRun(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			defer store.Close()

			require.NoError(t, store.Save("run-1", "intent", []byte("x")))
			require.NoError(t, store.Save("run-1", "search", []byte("y")))
			require.NoError(t, store.Save("run-2", "intent", []byte("z")))

			require.NoError(t, store.DeleteRun("run-1"))

			infos, err := store.List("run-1")
			require.NoError(t, err)
			assert.Empty(t, infos)

			// Other runs are untouched.
			data, err := store.Load("run-2", "intent")
			require.NoError(t, err)
			assert.Equal(t, []byte("z"), data)
		})
	}
}

func TestStoreClosedErrors(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			require.NoError(t, store.Close())

			assert.ErrorIs(t, store.Save("r", "s", []byte("x")), ErrStoreClosed)
			_, err := store.Load("r", "s")
			assert.ErrorIs(t, err, ErrStoreClosed)
			_, err = store.List("r")
			assert.ErrorIs(t, err, ErrStoreClosed)
			assert.ErrorIs(t, store.Delete("r", "s"), ErrStoreClosed)
			assert.ErrorIs(t, store.DeleteRun("r"), ErrStoreClosed)
		})
	}
}

func TestMemoryStoreLen(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	assert.Zero(t, store.Len())
	require.NoError(t, store.Save("run-1", "a", []byte("x")))
	require.NoError(t, store.Save("run-1", "b", []byte("y")))
	require.NoError(t, store.Save("run-2", "a", []byte("z")))
	assert.Equal(t, 3, store.Len())
}
