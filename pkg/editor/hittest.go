package editor

import (
	"github.com/menta2k/bbox-labeler/pkg/geometry"
	"github.com/menta2k/bbox-labeler/pkg/types"
)

const (
	// IconSize is the side of the delete and flag icon squares
	IconSize = 16
	// IconPad insets icons from the box corner
	IconPad = 4
	// HandleHitRadius is how close the pointer must be to a handle point
	HandleHitRadius = 7
	// HandleDrawRadius is the radius of drawn handle circles
	HandleDrawRadius = 5
	// MinBoxSize is the smallest side, in pixels, a box may have
	MinBoxSize = 2
)

// HitKind identifies what a pointer position landed on
type HitKind int

const (
	HitNone HitKind = iota
	HitDelete
	HitFlag
	HitHandle
	HitBody
)

func (k HitKind) String() string {
	switch k {
	case HitDelete:
		return "delete"
	case HitFlag:
		return "flag"
	case HitHandle:
		return "handle"
	case HitBody:
		return "body"
	default:
		return "none"
	}
}

// HitResult is the outcome of a hit test. Box and Handle are -1 when unused.
type HitResult struct {
	Kind   HitKind
	Box    int
	Handle int
}

var noHit = HitResult{Kind: HitNone, Box: -1, Handle: -1}

// DeleteIconRect returns the delete icon square anchored at the top-right corner
func DeleteIconRect(r types.PixelRect) types.PixelRect {
	return types.PixelRect{X: r.X + r.W - IconPad - IconSize, Y: r.Y + IconPad, W: IconSize, H: IconSize}
}

// FlagIconRect returns the flag icon square anchored at the bottom-right corner
func FlagIconRect(r types.PixelRect) types.PixelRect {
	return types.PixelRect{X: r.X + r.W - IconPad - IconSize, Y: r.Y + r.H - IconPad - IconSize, W: IconSize, H: IconSize}
}

// BadgeRect returns the class badge square above the top-left corner
func BadgeRect(r types.PixelRect) types.PixelRect {
	return types.PixelRect{X: r.X + IconPad - 5, Y: r.Y + IconPad - 25, W: IconSize, H: IconSize}
}

// HandlePoints returns the 8 resize handles clockwise from the top-left corner
func HandlePoints(r types.PixelRect) [8]types.Point {
	cx, cy := r.X+r.W/2, r.Y+r.H/2
	return [8]types.Point{
		{X: r.X, Y: r.Y},
		{X: cx, Y: r.Y},
		{X: r.X + r.W, Y: r.Y},
		{X: r.X + r.W, Y: cy},
		{X: r.X + r.W, Y: r.Y + r.H},
		{X: cx, Y: r.Y + r.H},
		{X: r.X, Y: r.Y + r.H},
		{X: r.X, Y: cy},
	}
}

// HitTest resolves a canvas point against the boxes. Each category is scanned
// over all boxes from topmost to bottommost before the next one is tried:
// delete icons, flag icons, handles, then bodies.
func HitTest(pt types.Point, boxes []types.Box, width, height float64) HitResult {
	rects := make([]types.PixelRect, len(boxes))
	for i, b := range boxes {
		rects[i] = geometry.ToPixelRect(b, width, height)
	}

	for i := len(rects) - 1; i >= 0; i-- {
		if DeleteIconRect(rects[i]).Contains(pt) {
			return HitResult{Kind: HitDelete, Box: i, Handle: -1}
		}
	}
	for i := len(rects) - 1; i >= 0; i-- {
		if FlagIconRect(rects[i]).Contains(pt) {
			return HitResult{Kind: HitFlag, Box: i, Handle: -1}
		}
	}
	const r2 = HandleHitRadius * HandleHitRadius
	for i := len(rects) - 1; i >= 0; i-- {
		for h, p := range HandlePoints(rects[i]) {
			dx, dy := pt.X-p.X, pt.Y-p.Y
			if dx*dx+dy*dy <= r2 {
				return HitResult{Kind: HitHandle, Box: i, Handle: h}
			}
		}
	}
	for i := len(rects) - 1; i >= 0; i-- {
		if rects[i].Contains(pt) {
			return HitResult{Kind: HitBody, Box: i, Handle: -1}
		}
	}
	return noHit
}
