// Package geometry converts between normalized boxes, canvas pixels and
// screen coordinates.
package geometry

import (
	"math"

	"github.com/menta2k/bbox-labeler/pkg/types"
)

// ToPixelRect maps a normalized box onto a canvas of the given size
func ToPixelRect(box types.Box, canvasWidth, canvasHeight float64) types.PixelRect {
	w := box.Width * canvasWidth
	h := box.Height * canvasHeight
	return types.PixelRect{
		X: box.CenterX*canvasWidth - w/2,
		Y: box.CenterY*canvasHeight - h/2,
		W: w,
		H: h,
	}
}

// FromPixelRect is the inverse of ToPixelRect. Class and flag fields of the
// returned box are zero; callers merge them from the original box.
func FromPixelRect(rect types.PixelRect, canvasWidth, canvasHeight float64) types.Box {
	if canvasWidth <= 0 || canvasHeight <= 0 {
		return types.Box{}
	}
	return types.Box{
		CenterX: (rect.X + rect.W/2) / canvasWidth,
		CenterY: (rect.Y + rect.H/2) / canvasHeight,
		Width:   rect.W / canvasWidth,
		Height:  rect.H / canvasHeight,
	}
}

// ApplyPixelRect returns box with its geometry replaced by rect, keeping
// class and true-positive flag.
func ApplyPixelRect(box types.Box, rect types.PixelRect, canvasWidth, canvasHeight float64) types.Box {
	n := FromPixelRect(rect, canvasWidth, canvasHeight)
	box.CenterX, box.CenterY, box.Width, box.Height = n.CenterX, n.CenterY, n.Width, n.Height
	return box
}

// ScreenToCanvas converts client coordinates into canvas pixel coordinates,
// compensating for CSS scaling of the canvas element. The bounding rect must
// be read fresh for every event.
func ScreenToCanvas(clientX, clientY float64, rect types.ClientRect, canvasPixelWidth, canvasPixelHeight float64) types.Point {
	sx, sy := 1.0, 1.0
	if rect.Width > 0 {
		sx = canvasPixelWidth / rect.Width
	}
	if rect.Height > 0 {
		sy = canvasPixelHeight / rect.Height
	}
	return types.Point{
		X: (clientX - rect.Left) * sx,
		Y: (clientY - rect.Top) * sy,
	}
}

// NormalizeDrag returns the rectangle spanned by an anchor and the current
// pointer position regardless of drag direction.
func NormalizeDrag(anchor, current types.Point) types.PixelRect {
	return types.PixelRect{
		X: math.Min(anchor.X, current.X),
		Y: math.Min(anchor.Y, current.Y),
		W: math.Abs(current.X - anchor.X),
		H: math.Abs(current.Y - anchor.Y),
	}
}

// Clamp limits v to [lo, hi]. When hi < lo the result is lo.
func Clamp(v, lo, hi float64) float64 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

// ClampBox pulls a normalized box back inside the unit square, shrinking it
// if it is larger than the image.
func ClampBox(box types.Box) types.Box {
	box.Width = Clamp(box.Width, 0, 1)
	box.Height = Clamp(box.Height, 0, 1)
	box.CenterX = Clamp(box.CenterX, box.Width/2, 1-box.Width/2)
	box.CenterY = Clamp(box.CenterY, box.Height/2, 1-box.Height/2)
	return box
}

// Corners returns the pixel rectangle as x1, y1, x2, y2
func Corners(r types.PixelRect) (float64, float64, float64, float64) {
	return r.X, r.Y, r.X + r.W, r.Y + r.H
}
