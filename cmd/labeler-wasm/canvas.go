//go:build js && wasm

package main

import (
	"fmt"
	"image/color"
	"math"
	"syscall/js"

	"github.com/menta2k/bbox-labeler/pkg/types"
)

// domCanvas draws on an HTML canvas element through its 2D context
type domCanvas struct {
	el  js.Value
	ctx js.Value
}

func newDOMCanvas(el js.Value) *domCanvas {
	return &domCanvas{el: el, ctx: el.Call("getContext", "2d")}
}

func cssColor(c color.Color) string {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("rgba(%d,%d,%d,%.3f)", n.R, n.G, n.B, float64(n.A)/255)
}

func (c *domCanvas) Resize(width, height int) {
	if c.el.Get("width").Int() != width {
		c.el.Set("width", width)
	}
	if c.el.Get("height").Int() != height {
		c.el.Set("height", height)
	}
}

func (c *domCanvas) Clear() {
	c.ctx.Call("clearRect", 0, 0, c.el.Get("width"), c.el.Get("height"))
}

func (c *domCanvas) FillRect(r types.PixelRect, col color.Color) {
	c.ctx.Set("fillStyle", cssColor(col))
	c.ctx.Call("fillRect", r.X, r.Y, r.W, r.H)
}

func (c *domCanvas) StrokeRect(r types.PixelRect, col color.Color, lineWidth float64) {
	c.ctx.Set("strokeStyle", cssColor(col))
	c.ctx.Set("lineWidth", lineWidth)
	c.ctx.Call("strokeRect", r.X, r.Y, r.W, r.H)
}

func (c *domCanvas) roundedPath(r types.PixelRect, radius float64) {
	radius = math.Min(radius, math.Min(r.W, r.H)/2)
	c.ctx.Call("beginPath")
	c.ctx.Call("moveTo", r.X+radius, r.Y)
	c.ctx.Call("arcTo", r.X+r.W, r.Y, r.X+r.W, r.Y+r.H, radius)
	c.ctx.Call("arcTo", r.X+r.W, r.Y+r.H, r.X, r.Y+r.H, radius)
	c.ctx.Call("arcTo", r.X, r.Y+r.H, r.X, r.Y, radius)
	c.ctx.Call("arcTo", r.X, r.Y, r.X+r.W, r.Y, radius)
	c.ctx.Call("closePath")
}

func (c *domCanvas) FillRoundedRect(r types.PixelRect, radius float64, col color.Color) {
	c.roundedPath(r, radius)
	c.ctx.Set("fillStyle", cssColor(col))
	c.ctx.Call("fill")
}

func (c *domCanvas) StrokeRoundedRect(r types.PixelRect, radius float64, col color.Color, lineWidth float64) {
	c.roundedPath(r, radius)
	c.ctx.Set("strokeStyle", cssColor(col))
	c.ctx.Set("lineWidth", lineWidth)
	c.ctx.Call("stroke")
}

func (c *domCanvas) Line(from, to types.Point, col color.Color, lineWidth float64) {
	c.ctx.Call("beginPath")
	c.ctx.Call("moveTo", from.X, from.Y)
	c.ctx.Call("lineTo", to.X, to.Y)
	c.ctx.Set("strokeStyle", cssColor(col))
	c.ctx.Set("lineWidth", lineWidth)
	c.ctx.Call("stroke")
}

func (c *domCanvas) circle(center types.Point, radius float64) {
	c.ctx.Call("beginPath")
	c.ctx.Call("arc", center.X, center.Y, radius, 0, 2*math.Pi)
}

func (c *domCanvas) FillCircle(center types.Point, radius float64, col color.Color) {
	c.circle(center, radius)
	c.ctx.Set("fillStyle", cssColor(col))
	c.ctx.Call("fill")
}

func (c *domCanvas) StrokeCircle(center types.Point, radius float64, col color.Color, lineWidth float64) {
	c.circle(center, radius)
	c.ctx.Set("strokeStyle", cssColor(col))
	c.ctx.Set("lineWidth", lineWidth)
	c.ctx.Call("stroke")
}

func (c *domCanvas) Text(s string, center types.Point, size float64, col color.Color) {
	c.ctx.Set("font", fmt.Sprintf("bold %.0fpx sans-serif", size))
	c.ctx.Set("textAlign", "center")
	c.ctx.Set("textBaseline", "middle")
	c.ctx.Set("fillStyle", cssColor(col))
	c.ctx.Call("fillText", s, center.X, center.Y)
}
