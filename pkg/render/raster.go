package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/menta2k/bbox-labeler/pkg/classes"
	"github.com/menta2k/bbox-labeler/pkg/editor"
	"github.com/menta2k/bbox-labeler/pkg/types"
)

var (
	fontOnce sync.Once
	ttf      *truetype.Font
)

func regularFont() *truetype.Font {
	fontOnce.Do(func() {
		f, err := truetype.Parse(goregular.TTF)
		if err == nil {
			ttf = f
		}
	})
	return ttf
}

// RasterCanvas implements Canvas on an in-memory image. When a background
// is set it is scaled to the canvas size and painted on every Clear.
type RasterCanvas struct {
	dc         *gg.Context
	background image.Image
	faces      map[float64]font.Face
}

// NewRasterCanvas creates a canvas; background may be nil
func NewRasterCanvas(background image.Image) *RasterCanvas {
	c := &RasterCanvas{background: background, faces: map[float64]font.Face{}}
	w, h := 1, 1
	if background != nil {
		b := background.Bounds()
		w, h = b.Dx(), b.Dy()
	}
	c.dc = gg.NewContext(w, h)
	return c
}

// Resize implements Canvas
func (c *RasterCanvas) Resize(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if c.dc.Width() == width && c.dc.Height() == height {
		return
	}
	c.dc = gg.NewContext(width, height)
}

// Clear implements Canvas
func (c *RasterCanvas) Clear() {
	c.dc.SetColor(color.Transparent)
	c.dc.Clear()
	if c.background == nil {
		return
	}
	bg := c.background
	b := bg.Bounds()
	if b.Dx() != c.dc.Width() || b.Dy() != c.dc.Height() {
		bg = imaging.Resize(bg, c.dc.Width(), c.dc.Height(), imaging.Linear)
	}
	c.dc.DrawImage(bg, 0, 0)
}

// FillRect implements Canvas
func (c *RasterCanvas) FillRect(r types.PixelRect, col color.Color) {
	c.dc.DrawRectangle(r.X, r.Y, r.W, r.H)
	c.fill(col)
}

// StrokeRect implements Canvas
func (c *RasterCanvas) StrokeRect(r types.PixelRect, col color.Color, lineWidth float64) {
	c.dc.DrawRectangle(r.X, r.Y, r.W, r.H)
	c.stroke(col, lineWidth)
}

// FillRoundedRect implements Canvas
func (c *RasterCanvas) FillRoundedRect(r types.PixelRect, radius float64, col color.Color) {
	c.dc.DrawRoundedRectangle(r.X, r.Y, r.W, r.H, radius)
	c.fill(col)
}

// StrokeRoundedRect implements Canvas
func (c *RasterCanvas) StrokeRoundedRect(r types.PixelRect, radius float64, col color.Color, lineWidth float64) {
	c.dc.DrawRoundedRectangle(r.X, r.Y, r.W, r.H, radius)
	c.stroke(col, lineWidth)
}

// Line implements Canvas
func (c *RasterCanvas) Line(from, to types.Point, col color.Color, lineWidth float64) {
	c.dc.DrawLine(from.X, from.Y, to.X, to.Y)
	c.stroke(col, lineWidth)
}

// FillCircle implements Canvas
func (c *RasterCanvas) FillCircle(center types.Point, radius float64, col color.Color) {
	c.dc.DrawCircle(center.X, center.Y, radius)
	c.fill(col)
}

// StrokeCircle implements Canvas
func (c *RasterCanvas) StrokeCircle(center types.Point, radius float64, col color.Color, lineWidth float64) {
	c.dc.DrawCircle(center.X, center.Y, radius)
	c.stroke(col, lineWidth)
}

// Text implements Canvas
func (c *RasterCanvas) Text(s string, center types.Point, size float64, col color.Color) {
	if s == "" {
		return
	}
	c.dc.SetFontFace(c.face(size))
	c.dc.SetColor(col)
	c.dc.DrawStringAnchored(s, center.X, center.Y, 0.5, 0.35)
}

// Image returns the rendered pixels
func (c *RasterCanvas) Image() image.Image { return c.dc.Image() }

// EncodePNG writes the canvas as PNG
func (c *RasterCanvas) EncodePNG(w io.Writer) error {
	if err := c.dc.EncodePNG(w); err != nil {
		return fmt.Errorf("failed to encode overlay: %w", err)
	}
	return nil
}

func (c *RasterCanvas) fill(col color.Color) {
	c.dc.SetColor(col)
	c.dc.Fill()
}

func (c *RasterCanvas) stroke(col color.Color, lineWidth float64) {
	c.dc.SetColor(col)
	c.dc.SetLineWidth(lineWidth)
	c.dc.Stroke()
}

func (c *RasterCanvas) face(size float64) font.Face {
	if f, ok := c.faces[size]; ok {
		return f
	}
	var f font.Face = basicfont.Face7x13
	if tt := regularFont(); tt != nil {
		f = truetype.NewFace(tt, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull})
	}
	c.faces[size] = f
	return f
}

// Overlay draws boxes over img at its native size and returns the result
func Overlay(img image.Image, boxes []types.Box, registry *classes.Registry, opts Options) image.Image {
	b := img.Bounds()
	c := NewRasterCanvas(img)
	NewRenderer(registry, opts).Draw(c, editor.View{
		Width:    float64(b.Dx()),
		Height:   float64(b.Dy()),
		Boxes:    boxes,
		Selected: editor.NoSelection,
	})
	return c.Image()
}
