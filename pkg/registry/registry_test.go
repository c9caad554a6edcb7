package registry

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	r := New[string, int]()

	r.Register("a", 1)
	r.Register("a", 2)

	v, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestHasDeleteLen(t *testing.T) {
	r := New[string, string]()

	r.Register("x", "one")
	assert.True(t, r.Has("x"))
	assert.Equal(t, 1, r.Len())

	r.Delete("x")
	assert.False(t, r.Has("x"))
	assert.Zero(t, r.Len())

	// Deleting a missing key is a no-op.
	r.Delete("x")
}

func TestKeysAndClear(t *testing.T) {
	r := New[string, int]()
	r.Register("a", 1)
	r.Register("b", 2)

	assert.ElementsMatch(t, []string{"a", "b"}, r.Keys())

	r.Clear()
	assert.Zero(t, r.Len())
	assert.Empty(t, r.Keys())
}

func TestRangeStopsEarly(t *testing.T) {
	r := New[string, int]()
	r.Register("a", 1)
	r.Register("b", 2)
	r.Register("c", 3)

	seen := 0
	r.Range(func(_ string, _ int) bool {
		seen++
		return seen < 2
	})
	assert.Equal(t, 2, seen)
}

func TestRangeAllowsMutation(t *testing.T) {
	r := New[string, int]()
	r.Register("a", 1)
	r.Register("b", 2)

	r.Range(func(k string, _ int) bool {
		r.Delete(k)
		r.Register("new-"+k, 0)
		return true
	})

	assert.True(t, r.Has("new-a"))
	assert.True(t, r.Has("new-b"))
}

func TestGetOrCreateCallsFactoryOnce(t *testing.T) {
	r := New[string, int]()
	var calls atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := r.GetOrCreate("shared", func() int {
				calls.Add(1)
				return 42
			})
			assert.Equal(t, 42, v)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestConcurrentRegisterAndGet(t *testing.T) {
	r := New[int, int]()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			r.Register(n, n*10)
		}(i)
		go func(n int) {
			defer wg.Done()
			r.Get(n)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 16, r.Len())
}
