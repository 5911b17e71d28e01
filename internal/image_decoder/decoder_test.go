package image_decoder

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStdDecoderDecodesRGB(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 0, G: 39, B: 16, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	raster, err := NewStdDecoder().Decode(context.Background(), encodePNG(t, img))
	require.NoError(t, err)

	assert.Equal(t, 2, raster.Width)
	assert.Equal(t, 2, raster.Height)
	assert.Len(t, raster.Pix, 12)

	r, g, b := raster.RGB(0, 0)
	assert.Equal(t, [3]uint8{0, 39, 16}, [3]uint8{r, g, b})
	r, g, b = raster.RGB(1, 1)
	assert.Equal(t, [3]uint8{10, 20, 30}, [3]uint8{r, g, b})
}

func TestStdDecoderRejectsGarbage(t *testing.T) {
	_, err := NewStdDecoder().Decode(context.Background(), []byte("not an image"))
	assert.Error(t, err)
}

func TestStdDecoderHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStdDecoder().Decode(ctx, encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 1, 1))))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromImageHandlesSubImages(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(2, 3, color.RGBA{R: 7, G: 8, B: 9, A: 255})

	sub := img.SubImage(image.Rect(2, 2, 4, 4))
	raster := FromImage(sub)

	require.Equal(t, 2, raster.Width)
	r, g, b := raster.RGB(0, 1)
	assert.Equal(t, [3]uint8{7, 8, 9}, [3]uint8{r, g, b})
}

func TestFromImageGray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	img.SetGray(0, 0, color.Gray{Y: 42})

	raster := FromImage(img)
	r, g, b := raster.RGB(0, 0)
	assert.Equal(t, [3]uint8{42, 42, 42}, [3]uint8{r, g, b})
}
