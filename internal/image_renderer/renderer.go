package image_renderer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/png"

	"github.com/cshum/vipsgen/vips"
	"go.uber.org/zap"

	"elevtiles/internal/tile"
)

// Renderer turns elevation levels into grayscale heightmap previews.
type Renderer struct {
	tileSize int
	logger   *zap.Logger
}

type TileResult struct {
	Data []byte
	ETag string
	Size int
}

func New(tileSize int, logger *zap.Logger) *Renderer {
	if tileSize <= 0 {
		tileSize = 256
	}
	return &Renderer{
		tileSize: tileSize,
		logger:   logger,
	}
}

// Heightmap maps the bitmap's own elevation range linearly onto 0..255.
// A flat bitmap renders black.
func Heightmap(b *tile.Bitmap) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, b.Width, b.Height))
	lo, hi := b.Range()
	span := hi - lo
	if span <= 0 {
		return img
	}

	for i, s := range b.Samples {
		img.Pix[i] = uint8((s-lo)/span*255 + 0.5)
	}
	return img
}

func (r *Renderer) RenderTile(coord tile.Coord, level int, b *tile.Bitmap) (*TileResult, error) {
	if b.Width == 0 || b.Height == 0 {
		return nil, fmt.Errorf("empty bitmap")
	}

	// Step 1: Rasterise the samples and hand them to libvips as lossless PNG
	var raw bytes.Buffer
	if err := png.Encode(&raw, Heightmap(b)); err != nil {
		return nil, fmt.Errorf("failed to encode heightmap: %w", err)
	}

	image, err := vips.NewImageFromBuffer(raw.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open heightmap: %w", err)
	}
	defer image.Close()

	// Step 2: Scale the longer side to the tile size. Coarser levels are
	// upsampled so every preview of a coordinate has the same footprint.
	longest := max(b.Width, b.Height)
	if longest != r.tileSize {
		resizeOpts := vips.DefaultResizeOptions()
		resizeOpts.Kernel = vips.KernelLanczos3
		if err := image.Resize(float64(r.tileSize)/float64(longest), resizeOpts); err != nil {
			return nil, fmt.Errorf("failed to resize: %w", err)
		}
	}

	// Step 3: Pad non-square tiles, anchored at top-left
	if image.Width() < r.tileSize || image.Height() < r.tileSize {
		embedOpts := vips.DefaultEmbedOptions()
		embedOpts.Extend = vips.ExtendBackground
		embedOpts.Background = []float64{0}
		if err := image.Embed(0, 0, r.tileSize, r.tileSize, embedOpts); err != nil {
			return nil, fmt.Errorf("failed to pad: %w", err)
		}
	}

	// Step 4: Export as PNG so the grey levels survive
	data, err := image.PngsaveBuffer(vips.DefaultPngsaveBufferOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to export: %w", err)
	}

	r.logger.Debug("Rendered preview",
		zap.Int("z", coord.Z), zap.Int("x", coord.X), zap.Int("y", coord.Y),
		zap.Int("level", level),
		zap.Int("bytes", len(data)),
	)

	return &TileResult{
		Data: data,
		ETag: r.generateETag(coord, level, b),
		Size: len(data),
	}, nil
}

func (r *Renderer) generateETag(coord tile.Coord, level int, b *tile.Bitmap) string {
	lo, hi := b.Range()
	keyStr := fmt.Sprintf("%s/%d_%d_%dx%d_%g_%g", coord, level, r.tileSize, b.Width, b.Height, lo, hi)
	hash := sha256.Sum256([]byte(keyStr))
	return hex.EncodeToString(hash[:])[:16]
}
