package tile

import (
	"slices"
	"sync"
)

// Tile is the cached elevation data of one coordinate. Level 0 is native
// resolution, each further level halves it.
type Tile struct {
	coord   Coord
	tracker *UsageTracker

	mu     sync.RWMutex
	levels map[int]*Bitmap
}

func New(coord Coord) *Tile {
	return &Tile{
		coord:   coord,
		tracker: NewUsageTracker(),
		levels:  make(map[int]*Bitmap),
	}
}

func (t *Tile) Coord() Coord {
	return t.coord
}

func (t *Tile) Tracker() *UsageTracker {
	return t.tracker
}

func (t *Tile) SetLevel(level int, bitmap *Bitmap) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.levels[level] = bitmap
}

func (t *Tile) Level(level int) (*Bitmap, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.levels[level]
	return b, ok
}

// Levels returns the stored pyramid levels in ascending order.
func (t *Tile) Levels() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	levels := make([]int, 0, len(t.levels))
	for l := range t.levels {
		levels = append(levels, l)
	}
	slices.Sort(levels)
	return levels
}

// Sample reads one elevation value from the given level.
func (t *Tile) Sample(level, x, y int) (float32, bool) {
	b, ok := t.Level(level)
	if !ok {
		return 0, false
	}
	return b.At(x, y)
}

// ReleaseLevels drops every level.
func (t *Tile) ReleaseLevels() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.levels)
}
