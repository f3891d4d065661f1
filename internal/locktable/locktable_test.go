package locktable

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"
)

func TestTable_Lifecycle(t *testing.T) {
	table := New()
	assert.Equal(t, 0, table.Len())

	table.Lock(64)
	assert.Equal(t, 1, table.Len())
	table.Unlock(64)
	assert.Equal(t, 0, table.Len(), "entry should be erased at refcount zero")

	table.RLock(64)
	table.RLock(64)
	assert.Equal(t, 1, table.Len(), "shared holders share one entry")
	table.RUnlock(64)
	assert.Equal(t, 1, table.Len())
	table.RUnlock(64)
	assert.Equal(t, 0, table.Len())
}

func TestTable_UnlockUnknownOffset(t *testing.T) {
	table := New()
	// Releasing an offset that was never locked must not panic.
	table.Unlock(128)
	table.RUnlock(128)
	assert.Equal(t, 0, table.Len())
}

func TestTable_ExclusiveSerializes(t *testing.T) {
	table := New()

	var counter int
	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			for range 1000 {
				table.Lock(42)
				counter++
				table.Unlock(42)
			}
			return nil
		})
	}
	assert.NoError(t, g.Wait())
	assert.Equal(t, 8000, counter)
	assert.Equal(t, 0, table.Len())
}

func TestTable_SharedConcurrent(t *testing.T) {
	table := New()

	table.RLock(7)

	var acquired sync.WaitGroup
	acquired.Add(4)
	done := make(chan struct{})
	for range 4 {
		go func() {
			table.RLock(7)
			acquired.Done()
			<-done
			table.RUnlock(7)
		}()
	}
	// All shared acquisitions succeed while the first is held.
	acquired.Wait()
	close(done)
	table.RUnlock(7)
}

func TestTable_IndependentOffsets(t *testing.T) {
	table := New()

	table.Lock(1)
	// A different offset must not block.
	table.Lock(2)
	table.Unlock(2)
	table.Unlock(1)
	assert.Equal(t, 0, table.Len())
}
