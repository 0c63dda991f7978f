package editor

import (
	"context"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"github.com/menta2k/bbox-labeler/pkg/types"
)

// Frame is what the controller hands to its render callback after every
// event that changed something visible.
type Frame struct {
	View   View
	Rows   []Row
	Status string
	Image  string
}

// RenderFunc draws a frame. It runs on the controller goroutine.
type RenderFunc func(Frame)

// Controller serializes all input, image and network completions through a
// single goroutine that owns the Session and Engine. Network calls run on
// their own goroutines and post their results back as events.
type Controller struct {
	session *Session
	client  LabelClient
	render  RenderFunc
	logger  *zap.Logger

	events   chan interface{}
	stopping chan struct{}
	done     chan struct{}
	inflight sync.WaitGroup
}

// events
type (
	evtPointerDown  struct{ pt types.Point }
	evtPointerMove  struct{ pt types.Point }
	evtPointerUp    struct{ pt types.Point }
	evtPointerLeave struct{ pt types.Point }
	evtArmCreate    struct{}
	evtKey          struct{ key string }
	evtSelect       struct{ index int }
	evtSetClass     struct{ index, cls int }
	evtOpen         struct{ image, url string }
	evtImageLoaded  struct {
		image         string
		width, height float64
	}
	evtImageFailed struct{ image string }
	evtResize      struct{ width, height float64 }
	evtSave        struct{}
	evtLabels      struct {
		image string
		boxes []types.Box
		err   error
	}
	evtSaved struct {
		image, message string
		err            error
	}
	evtInspect struct {
		fn   func(*Session)
		done chan struct{}
	}
)

// NewController creates a controller. Call Run to start processing.
func NewController(session *Session, client LabelClient, render RenderFunc, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		session:  session,
		client:   client,
		render:   render,
		logger:   logger,
		events:   make(chan interface{}, 64),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled, then waits for in-flight
// requests to finish.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.done)
	defer c.inflight.Wait()
	defer close(c.stopping)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.events:
			c.dispatch(ctx, ev)
		}
	}
}

// dispatch handles one event. A panic drops the event and any gesture in
// progress; the loop keeps running.
func (c *Controller) dispatch(ctx context.Context, ev interface{}) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("controller panic", zap.Any("error", r), zap.String("stack", string(debug.Stack())))
			c.session.Engine().Disarm()
		}
	}()
	c.handle(ctx, ev)
}

// Done is closed once Run has returned
func (c *Controller) Done() <-chan struct{} { return c.done }

func (c *Controller) post(ev interface{}) {
	select {
	case c.events <- ev:
	case <-c.stopping:
	}
}

// PointerDown posts a press at canvas point pt
func (c *Controller) PointerDown(pt types.Point) { c.post(evtPointerDown{pt}) }

// PointerMove posts pointer motion
func (c *Controller) PointerMove(pt types.Point) { c.post(evtPointerMove{pt}) }

// PointerUp posts a release
func (c *Controller) PointerUp(pt types.Point) { c.post(evtPointerUp{pt}) }

// PointerLeave posts the pointer leaving the canvas
func (c *Controller) PointerLeave(pt types.Point) { c.post(evtPointerLeave{pt}) }

// ArmCreate arms create mode
func (c *Controller) ArmCreate() { c.post(evtArmCreate{}) }

// Key posts a key press by its DOM key name
func (c *Controller) Key(key string) { c.post(evtKey{key}) }

// Select selects a box from the list view
func (c *Controller) Select(index int) { c.post(evtSelect{index}) }

// SetClass reclassifies a box from the list view
func (c *Controller) SetClass(index, cls int) { c.post(evtSetClass{index, cls}) }

// Open switches to image and starts fetching its labels
func (c *Controller) Open(image, url string) { c.post(evtOpen{image, url}) }

// ImageLoaded reports the decoded size of image
func (c *Controller) ImageLoaded(image string, width, height float64) {
	c.post(evtImageLoaded{image, width, height})
}

// ImageFailed reports that image could not be loaded
func (c *Controller) ImageFailed(image string) { c.post(evtImageFailed{image}) }

// Resize reports a new canvas pixel size
func (c *Controller) Resize(width, height float64) { c.post(evtResize{width, height}) }

// Save starts saving the current labels
func (c *Controller) Save() { c.post(evtSave{}) }

// Inspect runs fn on the controller goroutine and waits for it
func (c *Controller) Inspect(ctx context.Context, fn func(*Session)) error {
	done := make(chan struct{})
	select {
	case c.events <- evtInspect{fn, done}:
	case <-c.stopping:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-c.stopping:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) handle(ctx context.Context, ev interface{}) {
	e := c.session.Engine()
	var eff Effect
	switch ev := ev.(type) {
	case evtPointerDown:
		eff = e.PointerDown(ev.pt)
	case evtPointerMove:
		eff = e.PointerMove(ev.pt)
	case evtPointerUp:
		eff = e.PointerUp(ev.pt)
	case evtPointerLeave:
		eff = e.PointerLeave(ev.pt)
	case evtArmCreate:
		eff = e.ArmCreate()
	case evtKey:
		eff = c.handleKey(ev.key)
	case evtSelect:
		eff = e.Select(ev.index)
	case evtSetClass:
		eff = e.SetClass(ev.index, ev.cls)
	case evtOpen:
		eff = c.session.Open(ev.image, ev.url)
		if ev.image != "" {
			c.fetchLabels(ctx, ev.image)
		}
	case evtImageLoaded:
		eff, _ = c.session.ImageLoaded(ev.image, ev.width, ev.height)
	case evtImageFailed:
		eff, _ = c.session.ImageFailed(ev.image)
	case evtResize:
		e.SetCanvasSize(ev.width, ev.height)
		eff = Effect{Redraw: true}
	case evtSave:
		req, err := c.session.BeginSave()
		if err != nil {
			eff = Effect{Status: e.Status()}
			break
		}
		c.saveLabels(ctx, req)
	case evtLabels:
		eff, _ = c.session.LabelsLoaded(ev.image, ev.boxes, ev.err)
	case evtSaved:
		eff, _ = c.session.SaveDone(ev.image, ev.message, ev.err)
	case evtInspect:
		defer close(ev.done)
		ev.fn(c.session)
		return
	}
	if (eff.Redraw || eff.Status != "") && c.render != nil {
		c.render(Frame{
			View:   e.View(),
			Rows:   e.Rows(),
			Status: e.Status(),
			Image:  c.session.Image(),
		})
	}
}

func (c *Controller) handleKey(key string) Effect {
	e := c.session.Engine()
	switch key {
	case "Delete", "Backspace":
		return e.DeleteSelected()
	case "Escape":
		return e.Disarm()
	case "n", "N":
		return e.ArmCreate()
	default:
		return Effect{}
	}
}

func (c *Controller) fetchLabels(ctx context.Context, image string) {
	if c.client == nil {
		return
	}
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		boxes, err := c.client.GetLabels(ctx, image)
		c.post(evtLabels{image, boxes, err})
	}()
}

func (c *Controller) saveLabels(ctx context.Context, req SaveRequest) {
	if c.client == nil {
		return
	}
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		msg, err := c.client.SaveLabels(ctx, req.Image, req.Boxes)
		c.post(evtSaved{req.Image, msg, err})
	}()
}
