//go:build js && wasm

// Command labeler-wasm runs the labeling engine in the browser. It binds the
// labeler page's image, canvas, buttons and label list to a Controller that
// talks to the server through the HTTP client.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"syscall/js"

	"go.uber.org/zap"

	"github.com/menta2k/bbox-labeler/internal/logger"
	"github.com/menta2k/bbox-labeler/pkg/classes"
	"github.com/menta2k/bbox-labeler/pkg/client"
	"github.com/menta2k/bbox-labeler/pkg/editor"
	"github.com/menta2k/bbox-labeler/pkg/geometry"
	"github.com/menta2k/bbox-labeler/pkg/render"
	"github.com/menta2k/bbox-labeler/pkg/types"
)

type page struct {
	doc      js.Value
	img      js.Value
	canvas   *domCanvas
	status   js.Value
	count    js.Value
	list     js.Value
	registry *classes.Registry
	renderer *render.Renderer
	ctrl     *editor.Controller
	funcs    []js.Func
}

func main() {
	log, err := logger.Init("info", "console", "stderr")
	if err != nil {
		log = zap.NewNop()
	}

	doc := js.Global().Get("document")
	cfg := js.Global().Get("labelerConfig")

	registry := loadRegistry(cfg, log)
	api, err := client.NewClient(js.Global().Get("location").Get("origin").String())
	if err != nil {
		log.Error("cannot create client", zap.Error(err))
		return
	}

	p := &page{
		doc:      doc,
		img:      doc.Call("getElementById", "previewImage"),
		canvas:   newDOMCanvas(doc.Call("getElementById", "bboxCanvas")),
		status:   doc.Call("getElementById", "status"),
		count:    doc.Call("getElementById", "numLabels"),
		list:     doc.Call("getElementById", "labelsList"),
		registry: registry,
		renderer: render.NewRenderer(registry, render.Options{}),
	}

	engine := editor.NewEngine(registry)
	session := editor.NewSession(engine, log)
	p.ctrl = editor.NewController(session, api, p.draw, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.ctrl.Run(ctx)

	p.bind()

	image := ""
	if cfg.Truthy() && cfg.Get("image").Truthy() {
		image = cfg.Get("image").String()
	}
	p.open(image, api.ImageURL(image))

	<-p.ctrl.Done()
	for _, f := range p.funcs {
		f.Release()
	}
}

// loadRegistry reads the class list the page embeds, falling back to the
// default registry
func loadRegistry(cfg js.Value, log *zap.Logger) *classes.Registry {
	if !cfg.Truthy() || !cfg.Get("classes").Truthy() {
		return classes.Default()
	}
	raw := js.Global().Get("JSON").Call("stringify", cfg.Get("classes")).String()
	var list []classes.Class
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		log.Warn("invalid class list", zap.Error(err))
		return classes.Default()
	}
	registry, err := classes.New(list)
	if err != nil {
		log.Warn("invalid class list", zap.Error(err))
		return classes.Default()
	}
	return registry
}

func (p *page) on(target js.Value, event string, fn func(ev js.Value)) {
	f := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		fn(args[0])
		return nil
	})
	p.funcs = append(p.funcs, f)
	target.Call("addEventListener", event, f)
}

// point maps a pointer event to canvas pixels, reading the bounding rect
// fresh every time
func (p *page) point(ev js.Value) types.Point {
	r := p.canvas.el.Call("getBoundingClientRect")
	rect := types.ClientRect{
		Left:   r.Get("left").Float(),
		Top:    r.Get("top").Float(),
		Width:  r.Get("width").Float(),
		Height: r.Get("height").Float(),
	}
	return geometry.ScreenToCanvas(ev.Get("clientX").Float(), ev.Get("clientY").Float(), rect,
		p.canvas.el.Get("width").Float(), p.canvas.el.Get("height").Float())
}

func (p *page) bind() {
	el := p.canvas.el
	p.on(el, "pointerdown", func(ev js.Value) {
		ev.Call("preventDefault")
		p.ctrl.PointerDown(p.point(ev))
	})
	p.on(el, "pointermove", func(ev js.Value) { p.ctrl.PointerMove(p.point(ev)) })
	p.on(el, "pointerup", func(ev js.Value) { p.ctrl.PointerUp(p.point(ev)) })
	p.on(el, "pointerleave", func(ev js.Value) { p.ctrl.PointerLeave(p.point(ev)) })

	p.on(p.doc, "keydown", func(ev js.Value) {
		switch ev.Get("target").Get("tagName").String() {
		case "INPUT", "SELECT", "TEXTAREA":
			return
		}
		key := ev.Get("key").String()
		if key == "Backspace" || key == "Delete" {
			ev.Call("preventDefault")
		}
		p.ctrl.Key(key)
	})

	// the list is rebuilt on every frame, so rows are handled by delegation
	p.on(p.list, "click", func(ev js.Value) {
		target := ev.Get("target")
		if target.Get("tagName").String() == "SELECT" || target.Get("tagName").String() == "OPTION" {
			return
		}
		if row := target.Call("closest", ".row"); row.Truthy() {
			if i, err := strconv.Atoi(row.Get("dataset").Get("index").String()); err == nil {
				p.ctrl.Select(i)
			}
		}
	})
	p.on(p.list, "change", func(ev js.Value) {
		target := ev.Get("target")
		i, err := strconv.Atoi(target.Get("dataset").Get("index").String())
		if err != nil {
			return
		}
		if cls, err := strconv.Atoi(target.Get("value").String()); err == nil {
			p.ctrl.SetClass(i, cls)
		}
	})

	if btn := p.doc.Call("getElementById", "newBoxBtn"); btn.Truthy() {
		p.on(btn, "click", func(js.Value) { p.ctrl.ArmCreate() })
	}
	if btn := p.doc.Call("getElementById", "saveTxtBtn"); btn.Truthy() {
		p.on(btn, "click", func(js.Value) { p.ctrl.Save() })
	}
}

// open starts loading labels and the image. Image completions carry the
// name so a late load for a previous image is discarded.
func (p *page) open(image, url string) {
	p.ctrl.Open(image, url)
	if image == "" {
		return
	}
	p.doc.Call("getElementById", "imgName").Set("textContent", image)

	onLoad := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		w, h := p.img.Get("naturalWidth").Float(), p.img.Get("naturalHeight").Float()
		p.canvas.el.Get("style").Set("width", fmt.Sprintf("%.0fpx", w))
		p.canvas.el.Get("style").Set("height", fmt.Sprintf("%.0fpx", h))
		p.ctrl.ImageLoaded(image, w, h)
		return nil
	})
	onError := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		p.ctrl.ImageFailed(image)
		return nil
	})
	p.funcs = append(p.funcs, onLoad, onError)
	p.img.Set("onload", onLoad)
	p.img.Set("onerror", onError)
	p.img.Set("src", url)
}

// draw repaints the overlay and the companion list. It runs on the
// controller goroutine.
func (p *page) draw(f editor.Frame) {
	if f.View.Width > 0 && f.View.Height > 0 {
		p.renderer.Draw(p.canvas, f.View)
	} else {
		p.canvas.Clear()
	}
	p.status.Set("textContent", f.Status)
	p.count.Set("textContent", len(f.Rows))
	p.drawList(f.Rows)
}

func (p *page) drawList(rows []editor.Row) {
	p.list.Set("innerHTML", "")
	for _, row := range rows {
		index := row.Index
		div := p.doc.Call("createElement", "div")
		div.Get("dataset").Set("index", index)
		div.Set("className", "row")
		if row.Selected {
			div.Set("className", "row selected")
		}

		swatch := p.doc.Call("createElement", "span")
		swatch.Set("className", "swatch")
		swatch.Get("style").Set("background", row.Color)
		div.Call("appendChild", swatch)

		num := p.doc.Call("createElement", "span")
		num.Set("textContent", fmt.Sprintf("#%d", index))
		div.Call("appendChild", num)

		sel := p.doc.Call("createElement", "select")
		sel.Get("dataset").Set("index", index)
		for _, c := range p.registry.All() {
			opt := p.doc.Call("createElement", "option")
			opt.Set("value", strconv.Itoa(c.ID))
			opt.Set("textContent", c.Label)
			if c.ID == row.ClassID {
				opt.Set("selected", true)
			}
			sel.Call("appendChild", opt)
		}
		if !p.registry.Has(row.ClassID) {
			opt := p.doc.Call("createElement", "option")
			opt.Set("value", strconv.Itoa(row.ClassID))
			opt.Set("textContent", row.ClassLabel)
			opt.Set("selected", true)
			sel.Call("appendChild", opt)
		}
		div.Call("appendChild", sel)

		flag := p.doc.Call("createElement", "span")
		if row.IsTruePositive {
			flag.Set("textContent", "TP")
		} else {
			flag.Set("textContent", "FP")
		}
		div.Call("appendChild", flag)

		p.list.Call("appendChild", div)
	}
}
