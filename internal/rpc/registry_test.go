package rpc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryInsertErase(t *testing.T) {
	r := NewRegistry()

	r.Insert(1)
	r.Insert(1) // idempotent
	r.Insert(2)
	assert.Equal(t, 2, r.Len())
	assert.True(t, r.Contains(1))

	r.Erase(1)
	assert.False(t, r.Contains(1))
	assert.Equal(t, 1, r.Len())

	r.Erase(99) // no-op
	assert.Equal(t, 1, r.Len())
}

func TestRegistrySnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	r.Insert(1)
	r.Insert(2)

	snap := r.Snapshot()
	assert.Len(t, snap, 2)

	r.Erase(1)
	r.Erase(2)
	assert.Len(t, snap, 2, "snapshot must not observe later mutations")
}

func TestRegistrySweep(t *testing.T) {
	r := NewRegistry()
	for id := uint64(1); id <= 5; id++ {
		r.Insert(id)
	}

	// Odd ids are dead.
	alive := func(id uint64) bool { return id%2 == 0 }

	reclaimed := r.Sweep(alive)
	assert.Equal(t, 3, reclaimed)
	assert.Equal(t, 2, r.Len())

	// Sweep is idempotent: a second run with no intervening activity
	// changes nothing.
	assert.Equal(t, 0, r.Sweep(alive))
	assert.Equal(t, 2, r.Len())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			r.Insert(id)
			r.Contains(id)
			r.Snapshot()
			r.Erase(id)
		}(uint64(i))
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len())
}
