package editor

import (
	"github.com/menta2k/bbox-labeler/pkg/geometry"
	"github.com/menta2k/bbox-labeler/pkg/types"
)

// Handle indices, clockwise from the top-left corner
const (
	HandleTopLeft = iota
	HandleTop
	HandleTopRight
	HandleRight
	HandleBottomRight
	HandleBottom
	HandleBottomLeft
	HandleLeft
)

// ResizeRect applies the edit rule of handle to start using the pointer delta,
// keeping the edge or corner opposite the handle anchored. The result is
// clamped to at least MinBoxSize and at most the canvas, then moved inside it.
func ResizeRect(handle int, start types.PixelRect, dx, dy, width, height float64) types.PixelRect {
	r := start
	switch handle {
	case HandleTopLeft:
		r.X += dx
		r.Y += dy
		r.W -= dx
		r.H -= dy
	case HandleTop:
		r.Y += dy
		r.H -= dy
	case HandleTopRight:
		r.Y += dy
		r.W += dx
		r.H -= dy
	case HandleRight:
		r.W += dx
	case HandleBottomRight:
		r.W += dx
		r.H += dy
	case HandleBottom:
		r.H += dy
	case HandleBottomLeft:
		r.X += dx
		r.W -= dx
		r.H += dy
	case HandleLeft:
		r.X += dx
		r.W -= dx
	}

	r.W = clampSize(r.W, width)
	r.H = clampSize(r.H, height)
	r.X = geometry.Clamp(r.X, 0, width-r.W)
	r.Y = geometry.Clamp(r.Y, 0, height-r.H)
	return r
}

// MoveRect translates start by the pointer delta, keeping it inside the canvas
func MoveRect(start types.PixelRect, dx, dy, width, height float64) types.PixelRect {
	r := start
	r.X = geometry.Clamp(start.X+dx, 0, width-start.W)
	r.Y = geometry.Clamp(start.Y+dy, 0, height-start.H)
	return r
}

func clampSize(v, max float64) float64 {
	if v > max {
		v = max
	}
	if v < MinBoxSize {
		v = MinBoxSize
	}
	return v
}
