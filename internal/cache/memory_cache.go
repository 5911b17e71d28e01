package cache

import (
	"sync"

	"elevtiles/internal/tile"
)

// MemoryCache keeps tiles in process memory for as long as they are used.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[tile.Coord]*tile.Tile
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items: make(map[tile.Coord]*tile.Tile),
	}
}

func (c *MemoryCache) Get(coord tile.Coord) (*tile.Tile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.items[coord]
	return t, ok
}

func (c *MemoryCache) PutLevel(coord tile.Coord, level int, bitmap *tile.Bitmap) *tile.Tile {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.items[coord]
	if !ok {
		t = tile.New(coord)
		c.items[coord] = t
	}
	t.SetLevel(level, bitmap)
	return t
}

func (c *MemoryCache) Sweep() []tile.Coord {
	c.mu.Lock()
	defer c.mu.Unlock()

	var evicted []tile.Coord
	for coord, t := range c.items {
		if t.Tracker().IsUsed() {
			continue
		}
		t.ReleaseLevels()
		delete(c.items, coord)
		evicted = append(evicted, coord)
	}
	return evicted
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range c.items {
		t.ReleaseLevels()
	}
	c.items = make(map[tile.Coord]*tile.Tile)
}
