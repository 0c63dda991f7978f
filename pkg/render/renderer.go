package render

import (
	"image/color"

	"github.com/menta2k/bbox-labeler/pkg/classes"
	"github.com/menta2k/bbox-labeler/pkg/editor"
	"github.com/menta2k/bbox-labeler/pkg/geometry"
	"github.com/menta2k/bbox-labeler/pkg/types"
)

const (
	iconRadius     = 3
	iconOutline    = 1.5
	deleteInset    = 4
	strokeSelected = 3
	strokeNormal   = 2
	crossWidth     = 2
	handleOutline  = 2
	previewOutline = 2
	badgeTextScale = 0.55
	flagGlyphScale = 0.65
)

var (
	red          = color.NRGBA{R: 255, A: 255}
	black        = color.NRGBA{A: 255}
	white        = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	neutral      = color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 255}
	badgeFill    = color.NRGBA{R: 255, G: 255, B: 255, A: 235}
	iconFill     = color.NRGBA{R: 255, G: 255, B: 255, A: 242}
	previewColor = color.NRGBA{R: 255, A: 31}
)

// Options tune the renderer
type Options struct {
	// FillAlpha is the opacity of box fills, 0 leaves boxes hollow
	FillAlpha float64
}

// Renderer redraws the full overlay from a view snapshot
type Renderer struct {
	registry *classes.Registry
	opts     Options
}

// NewRenderer creates a renderer using registry for colors and initials
func NewRenderer(registry *classes.Registry, opts Options) *Renderer {
	if registry == nil {
		registry = classes.Default()
	}
	return &Renderer{registry: registry, opts: opts}
}

// Draw resizes and clears the canvas, then paints every box in store order,
// the selected box's handles and the drawing preview.
func (r *Renderer) Draw(c Canvas, v editor.View) {
	c.Resize(int(v.Width+0.5), int(v.Height+0.5))
	c.Clear()

	for i, b := range v.Boxes {
		r.drawBox(c, geometry.ToPixelRect(b, v.Width, v.Height), b, i == v.Selected)
	}

	if v.Preview != nil {
		c.FillRect(*v.Preview, previewColor)
		c.StrokeRect(*v.Preview, red, previewOutline)
	}
}

func (r *Renderer) drawBox(c Canvas, px types.PixelRect, b types.Box, selected bool) {
	col := r.registry.RGBA(b.ClassID)

	width := float64(strokeNormal)
	if selected {
		width = strokeSelected
	}
	c.FillRect(px, classes.WithAlpha(col, r.opts.FillAlpha))
	c.StrokeRect(px, col, width)

	badge := editor.BadgeRect(px)
	drawIcon(c, badge, badgeFill, black)
	c.Text(r.registry.Initials(b.ClassID), center(badge), editor.IconSize*badgeTextScale, black)

	del := editor.DeleteIconRect(px)
	drawIcon(c, del, iconFill, red)
	c.Line(types.Point{X: del.X + deleteInset, Y: del.Y + deleteInset},
		types.Point{X: del.X + del.W - deleteInset, Y: del.Y + del.H - deleteInset}, red, crossWidth)
	c.Line(types.Point{X: del.X + del.W - deleteInset, Y: del.Y + deleteInset},
		types.Point{X: del.X + deleteInset, Y: del.Y + del.H - deleteInset}, red, crossWidth)

	flagColor := neutral
	if !b.IsTruePositive {
		flagColor = col
	}
	flag := editor.FlagIconRect(px)
	drawIcon(c, flag, iconFill, flagColor)
	c.Text("O", center(flag), editor.IconSize*flagGlyphScale, flagColor)

	if !b.IsTruePositive {
		c.Line(types.Point{X: px.X, Y: px.Y}, types.Point{X: px.X + px.W, Y: px.Y + px.H}, col, crossWidth)
		c.Line(types.Point{X: px.X + px.W, Y: px.Y}, types.Point{X: px.X, Y: px.Y + px.H}, col, crossWidth)
	}

	if selected {
		for _, p := range editor.HandlePoints(px) {
			c.FillCircle(p, editor.HandleDrawRadius, white)
			c.StrokeCircle(p, editor.HandleDrawRadius, red, handleOutline)
		}
	}
}

func drawIcon(c Canvas, r types.PixelRect, fill, outline color.Color) {
	c.FillRoundedRect(r, iconRadius, fill)
	c.StrokeRoundedRect(r, iconRadius, outline, iconOutline)
}

func center(r types.PixelRect) types.Point {
	return types.Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}
