// Package render draws the labeling overlay onto an abstract canvas. The
// same Renderer drives the browser canvas and the server-side raster canvas.
package render

import (
	"image/color"

	"github.com/menta2k/bbox-labeler/pkg/types"
)

// Canvas is the drawing capability the renderer needs
type Canvas interface {
	// Resize sets the pixel buffer size
	Resize(width, height int)
	// Clear erases the whole canvas
	Clear()
	FillRect(r types.PixelRect, c color.Color)
	StrokeRect(r types.PixelRect, c color.Color, lineWidth float64)
	FillRoundedRect(r types.PixelRect, radius float64, c color.Color)
	StrokeRoundedRect(r types.PixelRect, radius float64, c color.Color, lineWidth float64)
	Line(from, to types.Point, c color.Color, lineWidth float64)
	FillCircle(center types.Point, radius float64, c color.Color)
	StrokeCircle(center types.Point, radius float64, c color.Color, lineWidth float64)
	// Text draws s centered on center with the given pixel size
	Text(s string, center types.Point, size float64, c color.Color)
}
