package processor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/genricoloni/eddy/internal/config"
	"github.com/genricoloni/eddy/internal/domain"
	"go.uber.org/zap"
)

func newTestProcessor() *ThumbnailProcessor {
	return NewThumbnailProcessor(zap.NewNop(), &config.AppConfig{Art: config.ArtConfig{Size: 640, MaxSize: 1280}})
}

func TestThumbnailProcessor_Process(t *testing.T) {
	tests := []struct {
		name          string
		imageData     []byte
		opts          domain.ArtOptions
		expectedError string
		expectedSize  int
	}{
		{
			name:         "Success - Square JPEG",
			imageData:    createTestJPEG(100, 100, color.RGBA{R: 255, A: 255}),
			opts:         domain.ArtOptions{Size: 64},
			expectedSize: 64,
		},
		{
			name:         "Success - Landscape Cropped To Square",
			imageData:    createTestJPEG(300, 150, color.RGBA{G: 255, A: 255}),
			opts:         domain.ArtOptions{Size: 120},
			expectedSize: 120,
		},
		{
			name:         "Success - PNG Upscaled With Blur",
			imageData:    createTestPNG(20, 40, color.RGBA{B: 255, A: 255}),
			opts:         domain.ArtOptions{Size: 200, Blur: 8},
			expectedSize: 200,
		},
		{
			name:         "Edge Case - Very Small Image",
			imageData:    createTestJPEG(1, 1, color.RGBA{R: 128, G: 128, B: 128, A: 255}),
			opts:         domain.ArtOptions{Size: 1280},
			expectedSize: 1280,
		},
		{
			name:          "Error - Invalid Image Data",
			imageData:     []byte("not-an-image"),
			opts:          domain.ArtOptions{Size: 64},
			expectedError: "failed to decode image",
		},
		{
			name:          "Error - Corrupted JPEG",
			imageData:     []byte{0xFF, 0xD8, 0xFF, 0x00, 0x00},
			opts:          domain.ArtOptions{Size: 64},
			expectedError: "failed to decode image",
		},
		{
			name:          "Error - Zero Size",
			imageData:     createTestJPEG(10, 10, color.White),
			opts:          domain.ArtOptions{Size: 0},
			expectedError: "invalid thumbnail size",
		},
		{
			name:          "Error - Size Above Maximum",
			imageData:     createTestJPEG(10, 10, color.White),
			opts:          domain.ArtOptions{Size: 4096},
			expectedError: "invalid thumbnail size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := newTestProcessor().Process(context.Background(), tt.imageData, tt.opts)

			if tt.expectedError != "" {
				if err == nil {
					t.Fatalf("expected error containing '%s', got nil", tt.expectedError)
				}
				if !strings.Contains(err.Error(), tt.expectedError) {
					t.Errorf("expected error '%s' to contain '%s'", err.Error(), tt.expectedError)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			img, format, err := image.Decode(bytes.NewReader(result))
			if err != nil {
				t.Fatalf("result is not a valid image: %v", err)
			}
			if format != "jpeg" {
				t.Errorf("expected jpeg output, got %s", format)
			}
			bounds := img.Bounds()
			if bounds.Dx() != tt.expectedSize || bounds.Dy() != tt.expectedSize {
				t.Errorf("expected %dx%d, got %dx%d", tt.expectedSize, tt.expectedSize, bounds.Dx(), bounds.Dy())
			}
		})
	}
}

func TestThumbnailProcessor_Process_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestProcessor().Process(ctx, createTestJPEG(50, 50, color.White), domain.ArtOptions{Size: 32})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// createTestJPEG generates a simple JPEG image for testing
func createTestJPEG(width, height int, col color.Color) []byte {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, solid(width, height, col), &jpeg.Options{Quality: 80}); err != nil {
		panic("failed to create test JPEG: " + err.Error())
	}
	return buf.Bytes()
}

func createTestPNG(width, height int, col color.Color) []byte {
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, solid(width, height, col)); err != nil {
		panic("failed to create test PNG: " + err.Error())
	}
	return buf.Bytes()
}

func solid(width, height int, col color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, col)
		}
	}
	return img
}
