// Package imageio loads, encodes and resizes the images being labeled.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/bbox-labeler/pkg/geometry"
	"github.com/menta2k/bbox-labeler/pkg/types"
)

// Config holds encoding defaults
type Config struct {
	Quality      int
	Lossless     bool
	MinImageSize int
}

// DefaultConfig returns the encoding defaults
func DefaultConfig() Config {
	return Config{Quality: 90, MinImageSize: 1}
}

// Processor handles image loading and encoding
type Processor struct {
	config Config
}

// NewProcessor creates a processor with default configuration
func NewProcessor() *Processor {
	return &Processor{config: DefaultConfig()}
}

// NewProcessorWithConfig creates a processor with custom configuration
func NewProcessorWithConfig(config Config) *Processor {
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = DefaultConfig().Quality
	}
	return &Processor{config: config}
}

// ImageInfo contains basic image dimensions
type ImageInfo struct {
	Width       int
	Height      int
	AspectRatio float64
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	img, err := p.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image: unknown format for %s", path)
	}
	return img, nil
}

// Decode decodes image data, falling back to the WebP decoder
func (p *Processor) Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// ReadInfo returns the dimensions of the image at path without decoding the pixels
func (p *Processor) ReadInfo(path string) (ImageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		img, lerr := p.LoadImage(path)
		if lerr != nil {
			return ImageInfo{}, fmt.Errorf("failed to decode image config: %w", err)
		}
		return GetImageInfo(img), nil
	}
	return newInfo(cfg.Width, cfg.Height), nil
}

// GetImageInfo returns basic information about an image
func GetImageInfo(img image.Image) ImageInfo {
	b := img.Bounds()
	return newInfo(b.Dx(), b.Dy())
}

func newInfo(w, h int) ImageInfo {
	info := ImageInfo{Width: w, Height: h}
	if h > 0 {
		info.AspectRatio = float64(w) / float64(h)
	}
	return info
}

// ValidateImage checks if an image meets the minimum size
func (p *Processor) ValidateImage(img image.Image) error {
	b := img.Bounds()
	if b.Dx() < p.config.MinImageSize || b.Dy() < p.config.MinImageSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)", b.Dx(), b.Dy(), p.config.MinImageSize)
	}
	return nil
}

// Encode writes img in the given format (jpg, png or webp)
func (p *Processor) Encode(w io.Writer, img image.Image, format string) error {
	switch strings.ToLower(format) {
	case "webp":
		return webp.Encode(w, img, &webp.Options{Lossless: p.config.Lossless, Quality: float32(p.config.Quality)})
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		return enc.Encode(w, img)
	case "jpg", "jpeg", "":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: p.config.Quality})
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// SaveImage saves an image to a file; the format is taken from the extension
func (p *Processor) SaveImage(img image.Image, path string) error {
	format := strings.TrimPrefix(strings.ToLower(extOf(path)), ".")
	switch format {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		return p.Encode(f, img, format)
	case "png":
		return imaging.Save(img, path)
	case "jpg", "jpeg":
		return imaging.Save(img, path, imaging.JPEGQuality(p.config.Quality))
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// Thumbnail returns a size x size center crop of img
func (p *Processor) Thumbnail(img image.Image, size int) image.Image {
	if size <= 0 {
		size = 160
	}
	return imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)
}

// FitWithin downscales img so neither side exceeds maxDim
func (p *Processor) FitWithin(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	if maxDim <= 0 || (b.Dx() <= maxDim && b.Dy() <= maxDim) {
		return img
	}
	return imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
}

// CropBox crops img to a labeled box. When targetWidth and targetHeight
// are positive the crop is filled to that size.
func (p *Processor) CropBox(img image.Image, box types.Box, targetWidth, targetHeight int) (image.Image, error) {
	bounds := img.Bounds()
	r := geometry.ToPixelRect(box, float64(bounds.Dx()), float64(bounds.Dy()))

	x0 := int(math.Round(r.X)) + bounds.Min.X
	y0 := int(math.Round(r.Y)) + bounds.Min.Y
	x1 := int(math.Round(r.X+r.W)) + bounds.Min.X
	y1 := int(math.Round(r.Y+r.H)) + bounds.Min.Y

	rect := image.Rect(x0, y0, x1, y1).Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("empty crop rectangle")
	}

	cropped := imaging.Crop(img, rect)
	if targetWidth > 0 && targetHeight > 0 {
		cropped = imaging.Fill(cropped, targetWidth, targetHeight, imaging.Center, imaging.Lanczos)
	}
	return cropped, nil
}

func extOf(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 && !strings.ContainsAny(path[i:], `/\`) {
		return path[i:]
	}
	return ""
}
