package vips_decoder

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/cshum/vipsgen/vips"

	"elevtiles/internal/image_decoder"
)

// Decoder loads elevation tiles with libvips, so any format libvips reads
// (TIFF, AVIF, WebP, PNG, ...) is accepted. The image is re-emitted as
// lossless PNG and rasterised from there. vips.Startup must have been called.
type Decoder struct{}

func New() *Decoder {
	return &Decoder{}
}

func (d *Decoder) Decode(ctx context.Context, data []byte) (*image_decoder.Raster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	image, err := vips.NewImageFromBuffer(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer image.Close()

	if image.Width() == 0 || image.Height() == 0 {
		return nil, fmt.Errorf("empty image")
	}

	lossless, err := image.PngsaveBuffer(vips.DefaultPngsaveBufferOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to export: %w", err)
	}

	decoded, err := png.Decode(bytes.NewReader(lossless))
	if err != nil {
		return nil, fmt.Errorf("failed to decode exported image: %w", err)
	}

	return image_decoder.FromImage(decoded), nil
}
