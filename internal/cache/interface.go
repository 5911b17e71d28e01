package cache

import "elevtiles/internal/tile"

// Cache holds tiles keyed by coordinate. Tiles leave it only through Sweep.
type Cache interface {
	Get(coord tile.Coord) (*tile.Tile, bool)
	// PutLevel stores bitmap as the given level of the tile at coord,
	// creating the tile if absent.
	PutLevel(coord tile.Coord, level int, bitmap *tile.Bitmap) *tile.Tile
	// Sweep evicts every tile nobody uses and returns their coordinates.
	Sweep() []tile.Coord
	Len() int
	Clear()
}
