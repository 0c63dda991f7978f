package imageio

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/bbox-labeler/pkg/types"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	// Fill with a gradient pattern
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.Set(x, y, color.RGBA{r, g, 128, 255})
		}
	}

	return img
}

func TestNewProcessorWithConfig(t *testing.T) {
	p := NewProcessorWithConfig(Config{Quality: 0, MinImageSize: 200})
	if p.config.Quality != 90 {
		t.Errorf("Expected quality fallback 90, got %d", p.config.Quality)
	}
	if p.config.MinImageSize != 200 {
		t.Errorf("Expected min size 200, got %d", p.config.MinImageSize)
	}
}

func TestGetImageInfo(t *testing.T) {
	info := GetImageInfo(createTestImage(400, 300))

	if info.Width != 400 || info.Height != 300 {
		t.Errorf("Expected 400x300, got %dx%d", info.Width, info.Height)
	}
	if info.AspectRatio != float64(400)/float64(300) {
		t.Errorf("Unexpected aspect ratio %f", info.AspectRatio)
	}
}

func TestValidateImage(t *testing.T) {
	p := NewProcessorWithConfig(Config{Quality: 80, MinImageSize: 100})

	if err := p.ValidateImage(createTestImage(200, 200)); err != nil {
		t.Errorf("Expected valid image, got %v", err)
	}
	if err := p.ValidateImage(createTestImage(50, 200)); err == nil {
		t.Error("Expected error for small image")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()

	for _, ext := range []string{"jpg", "png", "webp"} {
		path := filepath.Join(dir, "img."+ext)
		if err := p.SaveImage(createTestImage(64, 48), path); err != nil {
			t.Fatalf("SaveImage(%s) failed: %v", ext, err)
		}

		img, err := p.LoadImage(path)
		if err != nil {
			t.Fatalf("LoadImage(%s) failed: %v", ext, err)
		}
		if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
			t.Errorf("%s: expected 64x48, got %v", ext, img.Bounds())
		}

		info, err := p.ReadInfo(path)
		if err != nil {
			t.Fatalf("ReadInfo(%s) failed: %v", ext, err)
		}
		if info.Width != 64 || info.Height != 48 {
			t.Errorf("%s: ReadInfo returned %dx%d", ext, info.Width, info.Height)
		}
	}
}

func TestSaveImageRejectsUnknownFormat(t *testing.T) {
	p := NewProcessor()
	if err := p.SaveImage(createTestImage(10, 10), filepath.Join(t.TempDir(), "img.tiffx")); err == nil {
		t.Error("Expected error for unknown extension")
	}
}

func TestLoadImageRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jpg")
	if err := os.WriteFile(path, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewProcessor().LoadImage(path); err == nil {
		t.Error("Expected error for garbage data")
	}
}

func TestDecodeWebP(t *testing.T) {
	p := NewProcessor()
	var buf bytes.Buffer
	if err := p.Encode(&buf, createTestImage(32, 16), "webp"); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	img, err := p.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Bounds().Dx() != 32 {
		t.Errorf("Expected width 32, got %d", img.Bounds().Dx())
	}
}

func TestThumbnail(t *testing.T) {
	thumb := NewProcessor().Thumbnail(createTestImage(400, 300), 100)
	if thumb.Bounds().Dx() != 100 || thumb.Bounds().Dy() != 100 {
		t.Errorf("Expected 100x100 thumbnail, got %v", thumb.Bounds())
	}
}

func TestFitWithin(t *testing.T) {
	p := NewProcessor()
	out := p.FitWithin(createTestImage(400, 200), 100)
	if out.Bounds().Dx() != 100 || out.Bounds().Dy() != 50 {
		t.Errorf("Expected 100x50, got %v", out.Bounds())
	}
	small := createTestImage(50, 50)
	if p.FitWithin(small, 100) != small {
		t.Error("Expected small image unchanged")
	}
}

func TestCropBox(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(400, 300)

	crop, err := p.CropBox(img, types.NewBox(0, 0.5, 0.5, 0.2, 0.2), 0, 0)
	if err != nil {
		t.Fatalf("CropBox failed: %v", err)
	}
	if crop.Bounds().Dx() != 80 || crop.Bounds().Dy() != 60 {
		t.Errorf("Expected 80x60 crop, got %v", crop.Bounds())
	}

	filled, err := p.CropBox(img, types.NewBox(0, 0.5, 0.5, 0.2, 0.2), 32, 32)
	if err != nil {
		t.Fatalf("CropBox with target failed: %v", err)
	}
	if filled.Bounds().Dx() != 32 || filled.Bounds().Dy() != 32 {
		t.Errorf("Expected 32x32, got %v", filled.Bounds())
	}

	if _, err := p.CropBox(img, types.NewBox(0, 2, 2, 0.1, 0.1), 0, 0); err == nil {
		t.Error("Expected error for box outside the image")
	}
}
