package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // PNG format support

	"github.com/disintegration/imaging"
	"github.com/genricoloni/eddy/internal/config"
	"github.com/genricoloni/eddy/internal/domain"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp" // WebP format support
)

const jpegQuality = 90

// ErrInvalidSize is returned when the requested thumbnail edge is out of range
var ErrInvalidSize = errors.New("invalid thumbnail size")

// ThumbnailProcessor renders album and artist art as square JPEG thumbnails
type ThumbnailProcessor struct {
	logger  *zap.Logger
	maxSize int
}

// NewThumbnailProcessor creates a new thumbnail processor bounded by the configured art size
func NewThumbnailProcessor(logger *zap.Logger, cfg *config.AppConfig) *ThumbnailProcessor {
	return &ThumbnailProcessor{
		logger:  logger,
		maxSize: cfg.Art.MaxSize,
	}
}

// Process crops imageData to a centered square of opts.Size pixels and applies
// an optional Gaussian blur
func (p *ThumbnailProcessor) Process(ctx context.Context, imageData []byte, opts domain.ArtOptions) ([]byte, error) {
	if opts.Size < 1 || (p.maxSize > 0 && opts.Size > p.maxSize) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, opts.Size)
	}

	// 1. Decode image from bytes
	img, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dy() == 0 || bounds.Dx() == 0 {
		return nil, fmt.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 2. Fill the square, then blur
	p.logger.Debug("Rendering thumbnail",
		zap.String("format", format),
		zap.Int("size", opts.Size),
		zap.Float64("blur", opts.Blur))
	thumb := imaging.Fill(img, opts.Size, opts.Size, imaging.Center, imaging.Lanczos)
	if opts.Blur > 0 {
		thumb = imaging.Blur(thumb, opts.Blur)
	}

	// 3. Encode result to JPEG (in-memory buffer)
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, thumb, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	p.logger.Debug("Thumbnail rendered", zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}
