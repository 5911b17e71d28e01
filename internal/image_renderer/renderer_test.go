package image_renderer

import (
	"bytes"
	"image/png"
	"os"
	"testing"

	"github.com/cshum/vipsgen/vips"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"elevtiles/internal/tile"
)

func TestMain(m *testing.M) {
	vips.Startup(nil)
	code := m.Run()
	vips.Shutdown()
	os.Exit(code)
}

func ramp() *tile.Bitmap {
	return &tile.Bitmap{Width: 2, Height: 2, Samples: []float32{-100, 0, 100, 300}}
}

func TestHeightmapNormalisesRange(t *testing.T) {
	img := Heightmap(ramp())

	assert.Equal(t, uint8(0), img.Pix[0])
	assert.Equal(t, uint8(64), img.Pix[1])
	assert.Equal(t, uint8(128), img.Pix[2])
	assert.Equal(t, uint8(255), img.Pix[3])
}

func TestHeightmapFlatIsBlack(t *testing.T) {
	img := Heightmap(&tile.Bitmap{Width: 2, Height: 1, Samples: []float32{12, 12}})
	assert.Equal(t, []uint8{0, 0}, img.Pix)
}

func TestRenderTileScalesToTileSize(t *testing.T) {
	r := New(16, zap.NewNop())

	result, err := r.RenderTile(tile.Coord{X: 1, Y: 2, Z: 3}, 0, ramp())
	require.NoError(t, err)
	assert.Equal(t, len(result.Data), result.Size)
	assert.Len(t, result.ETag, 16)

	img, err := png.Decode(bytes.NewReader(result.Data))
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())
}

func TestRenderTilePadsNonSquare(t *testing.T) {
	r := New(8, zap.NewNop())
	b := &tile.Bitmap{Width: 4, Height: 2, Samples: []float32{0, 1, 2, 3, 4, 5, 6, 7}}

	result, err := r.RenderTile(tile.Coord{}, 1, b)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(result.Data))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())
}

func TestETagDependsOnLevel(t *testing.T) {
	r := New(8, zap.NewNop())
	coord := tile.Coord{X: 1, Y: 1, Z: 1}

	assert.Equal(t, r.generateETag(coord, 0, ramp()), r.generateETag(coord, 0, ramp()))
	assert.NotEqual(t, r.generateETag(coord, 0, ramp()), r.generateETag(coord, 1, ramp()))
}

func TestRenderTileRejectsEmptyBitmap(t *testing.T) {
	_, err := New(8, zap.NewNop()).RenderTile(tile.Coord{}, 0, &tile.Bitmap{})
	assert.Error(t, err)
}
