package image_decoder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Raster is a decoded width×height image with 3 interleaved 8-bit channels (RGB).
type Raster struct {
	Width  int
	Height int
	Pix    []uint8
}

// RGB returns the channels of the pixel at (x, y).
func (r *Raster) RGB(x, y int) (uint8, uint8, uint8) {
	i := (y*r.Width + x) * 3
	return r.Pix[i], r.Pix[i+1], r.Pix[i+2]
}

type Decoder interface {
	Decode(ctx context.Context, data []byte) (*Raster, error)
}

// StdDecoder decodes PNG, JPEG, TIFF and WebP payloads with the Go image packages.
type StdDecoder struct{}

func NewStdDecoder() *StdDecoder {
	return &StdDecoder{}
}

func (d *StdDecoder) Decode(ctx context.Context, data []byte) (*Raster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	raster := FromImage(img)
	if raster.Width == 0 || raster.Height == 0 {
		return nil, fmt.Errorf("empty %s image", format)
	}
	return raster, nil
}

// FromImage copies img into an RGB raster. Alpha is dropped, not applied.
func FromImage(img image.Image) *Raster {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	raster := &Raster{
		Width:  w,
		Height: h,
		Pix:    make([]uint8, w*h*3),
	}

	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < h; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			copyRGBA(raster.Pix[y*w*3:(y+1)*w*3], src.Pix[off:off+w*4])
		}
	case *image.RGBA:
		// Opaque RGBA is identical to NRGBA; terrain tiles carry no transparency.
		for y := 0; y < h; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			copyRGBA(raster.Pix[y*w*3:(y+1)*w*3], src.Pix[off:off+w*4])
		}
	default:
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				raster.Pix[i] = c.R
				raster.Pix[i+1] = c.G
				raster.Pix[i+2] = c.B
				i += 3
			}
		}
	}

	return raster
}

func copyRGBA(dst, src []uint8) {
	for i, j := 0, 0; j+3 < len(src); i, j = i+3, j+4 {
		dst[i] = src[j]
		dst[i+1] = src[j+1]
		dst[i+2] = src[j+2]
	}
}
