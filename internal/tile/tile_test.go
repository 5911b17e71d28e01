package tile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordAncestor(t *testing.T) {
	c := Coord{X: 13, Y: 6, Z: 9}

	assert.Equal(t, c, c.Ancestor(0))
	assert.Equal(t, Coord{X: 6, Y: 3, Z: 9}, c.Ancestor(1))
	assert.Equal(t, Coord{X: 3, Y: 1, Z: 9}, c.Ancestor(2))
	assert.Equal(t, Coord{X: -1, Y: -2, Z: 0}, Coord{X: -1, Y: -3, Z: 0}.Ancestor(1), "negative coordinates floor")
	assert.Equal(t, "9/13/6", c.String())
}

func TestParseCoord(t *testing.T) {
	c, err := ParseCoord("9/13/6")
	require.NoError(t, err)
	assert.Equal(t, Coord{X: 13, Y: 6, Z: 9}, c)

	c, err = ParseCoord("0/-1/-2")
	require.NoError(t, err)
	assert.Equal(t, Coord{X: -1, Y: -2, Z: 0}, c)

	for _, bad := range []string{"", "1/2", "1/2/3/4", "a/b/c"} {
		_, err := ParseCoord(bad)
		assert.Error(t, err, bad)
	}
}

func TestTileLevels(t *testing.T) {
	tl := New(Coord{X: 1, Y: 2, Z: 3})
	assert.Empty(t, tl.Levels())

	tl.SetLevel(1, &Bitmap{Width: 1, Height: 1, Samples: []float32{7}})
	tl.SetLevel(0, &Bitmap{Width: 2, Height: 1, Samples: []float32{1, 2}})
	assert.Equal(t, []int{0, 1}, tl.Levels())

	b, ok := tl.Level(0)
	require.True(t, ok)
	assert.Equal(t, 2, b.Width)

	v, ok := tl.Sample(1, 0, 0)
	assert.True(t, ok)
	assert.Equal(t, float32(7), v)

	_, ok = tl.Sample(2, 0, 0)
	assert.False(t, ok)

	tl.ReleaseLevels()
	assert.Empty(t, tl.Levels())
}

func TestTileTrackerStartsUnused(t *testing.T) {
	tl := New(Coord{})
	assert.False(t, tl.Tracker().IsUsed())
}
