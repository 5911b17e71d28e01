package vips_decoder

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/cshum/vipsgen/vips"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	vips.Startup(nil)
	code := m.Run()
	vips.Shutdown()
	os.Exit(code)
}

func TestDecodePNG(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 0, G: 39, B: 16, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	raster, err := New().Decode(context.Background(), buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, 3, raster.Width)
	assert.Equal(t, 2, raster.Height)
	r, g, b := raster.RGB(2, 1)
	assert.Equal(t, [3]uint8{0, 39, 16}, [3]uint8{r, g, b})
}

func TestDecodeGarbage(t *testing.T) {
	_, err := New().Decode(context.Background(), []byte("garbage"))
	assert.Error(t, err)
}
