package mockfs_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/balinomad/go-mockfs/v3"
)

func TestCounters(t *testing.T) {
	t.Parallel()

	c := mockfs.NewCounters()
	assert.Zero(t, c.Total())
	assert.Equal(t, "Counters{}", c.String())

	c.Set(mockfs.OpCreate, 1)
	c.Set(mockfs.OpWrite, 2)
	c.Set(mockfs.InvalidOperation, 5)

	assert.Equal(t, 1, c.Count(mockfs.OpCreate))
	assert.Equal(t, 2, c.Count(mockfs.OpWrite))
	assert.Zero(t, c.Count(mockfs.InvalidOperation))
	assert.Equal(t, 3, c.Total())
	assert.Equal(t, "Counters{Create: 1, Write: 2}", c.String())

	snap := c.Snapshot()
	assert.Equal(t, 2, snap[mockfs.OpWrite])

	clone := c.Clone()
	assert.True(t, c.Equal(clone))
	clone.Set(mockfs.OpRead, 1)
	assert.False(t, c.Equal(clone))
	assert.Zero(t, c.Count(mockfs.OpRead), "clone is independent")
	assert.False(t, c.Equal(nil))

	c.ResetAll()
	assert.Zero(t, c.Total())
}

func TestCounters_ConcurrentViaMockFS(t *testing.T) {
	t.Parallel()

	mfs := mockfs.NewMockFS(map[string]*mockfs.MapFile{
		"f.txt": {Data: []byte("x"), Mode: 0o644},
	})

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = mfs.ReadFile("f.txt")
		}()
	}
	wg.Wait()

	assert.Equal(t, n, mfs.Counters().Count(mockfs.OpRead))
}
