package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elevtiles/internal/tile"
)

func bitmap(v float32) *tile.Bitmap {
	return &tile.Bitmap{Width: 1, Height: 1, Samples: []float32{v}}
}

func TestMemoryCachePutLevelCreatesTile(t *testing.T) {
	c := NewMemoryCache()
	coord := tile.Coord{X: 1, Y: 2, Z: 3}

	_, ok := c.Get(coord)
	assert.False(t, ok)

	created := c.PutLevel(coord, 0, bitmap(1))
	again := c.PutLevel(coord, 1, bitmap(2))
	assert.Same(t, created, again)

	got, ok := c.Get(coord)
	require.True(t, ok)
	assert.Same(t, created, got)
	assert.Equal(t, []int{0, 1}, got.Levels())
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCacheSweepEvictsOnlyUnused(t *testing.T) {
	c := NewMemoryCache()
	used := tile.Coord{X: 1}
	unused := tile.Coord{X: 2}

	owner := tile.NewOwner()
	c.PutLevel(used, 0, bitmap(1)).Tracker().Use(owner)
	orphan := c.PutLevel(unused, 0, bitmap(2))

	evicted := c.Sweep()
	assert.Equal(t, []tile.Coord{unused}, evicted)
	assert.Empty(t, orphan.Levels(), "evicted tiles drop their levels")

	_, ok := c.Get(unused)
	assert.False(t, ok)
	_, ok = c.Get(used)
	assert.True(t, ok)

	got, _ := c.Get(used)
	got.Tracker().Release(owner)
	assert.Equal(t, []tile.Coord{used}, c.Sweep())
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCacheClear(t *testing.T) {
	c := NewMemoryCache()
	c.PutLevel(tile.Coord{}, 0, bitmap(1)).Tracker().Use(tile.NewOwner())
	c.Clear()
	assert.Equal(t, 0, c.Len())
}
