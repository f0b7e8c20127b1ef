package app

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kris96tian/MOFAX-Online/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveMemoizesByKey(t *testing.T) {
	cache, err := NewDerivationCache(16, nil)
	require.NoError(t, err)
	id := core.NewModelID()

	calls := 0
	fn := func() (int, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := derive(cache, id, "weights", "views=rna", fn)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, 1, calls)

	_, err = derive(cache, id, "weights", "views=atac", fn)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "different parameters derive again")

	_, err = derive(cache, core.NewModelID(), "weights", "views=rna", fn)
	require.NoError(t, err)
	assert.Equal(t, 3, calls, "a different model never shares entries")
}

func TestDeriveDoesNotCacheErrors(t *testing.T) {
	cache, err := NewDerivationCache(16, nil)
	require.NoError(t, err)
	id := core.NewModelID()

	calls := 0
	fail := func() (string, error) {
		calls++
		return "", fmt.Errorf("boom")
	}
	_, err = derive(cache, id, "chart", "", fail)
	assert.Error(t, err)
	_, err = derive(cache, id, "chart", "", fail)
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, cache.Len())
}

func TestDeriveCollapsesConcurrentCalls(t *testing.T) {
	cache, err := NewDerivationCache(16, nil)
	require.NoError(t, err)
	id := core.NewModelID()

	var calls atomic.Int32
	release := make(chan struct{})
	fn := func() (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := derive(cache, id, "slow", "", fn)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(len(results)))
	for _, v := range results {
		assert.Equal(t, 7, v)
	}
	v, err := derive(cache, id, "slow", "", fn)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestForgetModel(t *testing.T) {
	cache, err := NewDerivationCache(16, nil)
	require.NoError(t, err)
	a, b := core.NewModelID(), core.NewModelID()

	one := func() (int, error) { return 1, nil }
	for _, p := range []string{"x", "y", "z"} {
		_, _ = derive(cache, a, "weights", p, one)
	}
	_, _ = derive(cache, b, "weights", "x", one)

	assert.Equal(t, 3, cache.ForgetModel(a))
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, 0, cache.ForgetModel(a))
}

func TestForgetModelDuringDerivation(t *testing.T) {
	cache, err := NewDerivationCache(16, nil)
	require.NoError(t, err)
	id := core.NewModelID()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		v, err := derive(cache, id, "weights", "", func() (int, error) {
			close(started)
			<-release
			return 7, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 7, v, "the caller still gets its result")
	}()

	<-started
	assert.Equal(t, 0, cache.ForgetModel(id))
	close(release)
	<-done

	assert.Equal(t, 0, cache.Len(), "a released model's result is not stored")
}
