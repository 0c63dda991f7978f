// Package labeler provides headless access to the bounding-box labeling
// engine: open an image with its labels, edit them with the same pointer
// gestures the browser uses, render the overlay and save the result.
//
// Basic usage:
//
//	l := labeler.New(labeler.NewHTTPClient(client), classes.Default())
//	if err := l.OpenFile(ctx, "static/uploads/bee.jpg"); err != nil {
//		log.Fatal(err)
//	}
//	l.AddBox(types.Point{X: 10, Y: 10}, types.Point{X: 120, Y: 90})
//	if err := l.Save(ctx); err != nil {
//		log.Fatal(err)
//	}
//	if err := l.RenderTo("bee_labeled.png"); err != nil {
//		log.Fatal(err)
//	}
//
// The package consists of these components:
//
//  1. Geometry (pkg/geometry): normalized boxes to canvas pixels and back
//  2. Editor (pkg/editor): label store, hit testing and the interaction state machine
//  3. Render (pkg/render): overlay drawing on a browser or raster canvas
//  4. Client (pkg/client): the HTTP persistence boundary
package labeler

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/menta2k/bbox-labeler/internal/storage"
	"github.com/menta2k/bbox-labeler/pkg/classes"
	"github.com/menta2k/bbox-labeler/pkg/client"
	"github.com/menta2k/bbox-labeler/pkg/editor"
	"github.com/menta2k/bbox-labeler/pkg/imageio"
	"github.com/menta2k/bbox-labeler/pkg/render"
	"github.com/menta2k/bbox-labeler/pkg/types"
)

// Version of the labeler
const Version = "1.0.0"

// Labeler drives one editing session without a browser. It is not safe for
// concurrent use.
type Labeler struct {
	client   editor.LabelClient
	engine   *editor.Engine
	session  *editor.Session
	renderer *render.Renderer
	proc     *imageio.Processor
	img      image.Image
}

// New creates a Labeler with default render and image settings
func New(c editor.LabelClient, registry *classes.Registry) *Labeler {
	return NewWithConfig(c, registry, render.Options{}, imageio.DefaultConfig())
}

// NewWithConfig creates a Labeler with custom render and image settings
func NewWithConfig(c editor.LabelClient, registry *classes.Registry, renderOpts render.Options, imageConfig imageio.Config) *Labeler {
	engine := editor.NewEngine(registry)
	return &Labeler{
		client:   c,
		engine:   engine,
		session:  editor.NewSession(engine, nil),
		renderer: render.NewRenderer(engine.Registry(), renderOpts),
		proc:     imageio.NewProcessorWithConfig(imageConfig),
	}
}

// NewHTTPClient adapts the HTTP client to the label boundary
func NewHTTPClient(c *client.Client) editor.LabelClient { return c }

// NewStoreClient serves labels straight from a store, for tools running
// next to the data
func NewStoreClient(store storage.LabelStorage) editor.LabelClient {
	return storeClient{store: store}
}

type storeClient struct {
	store storage.LabelStorage
}

func (c storeClient) GetLabels(ctx context.Context, image string) ([]types.Box, error) {
	boxes, err := c.store.Load(ctx, image)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return boxes, err
}

func (c storeClient) SaveLabels(ctx context.Context, image string, boxes []types.Box) (string, error) {
	if err := c.store.Save(ctx, image, boxes); err != nil {
		return "", err
	}
	return fmt.Sprintf("Saved %d labels for %s", len(boxes), image), nil
}

// Engine returns the interaction engine
func (l *Labeler) Engine() *editor.Engine { return l.engine }

// Image returns the active image name
func (l *Labeler) Image() string { return l.session.Image() }

// Boxes returns a copy of the current labels
func (l *Labeler) Boxes() []types.Box { return l.engine.Store().All() }

// Status returns the status line
func (l *Labeler) Status() string { return l.engine.Status() }

// Load opens img under name with the given labels, without asking the client
func (l *Labeler) Load(name string, img image.Image, boxes []types.Box) error {
	if err := l.proc.ValidateImage(img); err != nil {
		return err
	}
	l.img = img
	l.session.Open(name, name)
	b := img.Bounds()
	l.session.ImageLoaded(name, float64(b.Dx()), float64(b.Dy()))
	l.session.LabelsLoaded(name, boxes, nil)
	return nil
}

// Open opens img under name and fetches its labels from the client
func (l *Labeler) Open(ctx context.Context, name string, img image.Image) error {
	if err := l.Load(name, img, nil); err != nil {
		return err
	}
	l.session.Load(ctx, l.client)
	return nil
}

// OpenFile loads an image from disk; its base name is the image name
func (l *Labeler) OpenFile(ctx context.Context, path string) error {
	img, err := l.proc.LoadImage(path)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}
	return l.Open(ctx, filepath.Base(path), img)
}

// Click presses and releases at pt
func (l *Labeler) Click(pt types.Point) editor.Effect {
	eff := l.engine.PointerDown(pt)
	return merge(eff, l.engine.PointerUp(pt))
}

// Drag presses at from, moves to to and releases there
func (l *Labeler) Drag(from, to types.Point) editor.Effect {
	eff := l.engine.PointerDown(from)
	eff = merge(eff, l.engine.PointerMove(to))
	return merge(eff, l.engine.PointerUp(to))
}

// AddBox arms create mode and draws a box between two corners
func (l *Labeler) AddBox(from, to types.Point) editor.Effect {
	return merge(l.engine.ArmCreate(), l.Drag(from, to))
}

// Save sends the current labels to the client
func (l *Labeler) Save(ctx context.Context) error {
	_, err := l.session.Save(ctx, l.client)
	return err
}

// Render draws the overlay over the active image at its native size
func (l *Labeler) Render() (image.Image, error) {
	if l.img == nil {
		return nil, editor.ErrNoImage
	}
	c := render.NewRasterCanvas(l.img)
	l.renderer.Draw(c, l.engine.View())
	return c.Image(), nil
}

// RenderTo renders and saves the overlay; the format follows the extension
func (l *Labeler) RenderTo(path string) error {
	img, err := l.Render()
	if err != nil {
		return err
	}
	return l.proc.SaveImage(img, path)
}

// Crops returns one image per label cut from the active image
func (l *Labeler) Crops() ([]image.Image, error) {
	if l.img == nil {
		return nil, editor.ErrNoImage
	}
	var crops []image.Image
	for i, b := range l.Boxes() {
		crop, err := l.proc.CropBox(l.img, b, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("label %d: %w", i, err)
		}
		crops = append(crops, crop)
	}
	return crops, nil
}

func merge(a, b editor.Effect) editor.Effect {
	a.Redraw = a.Redraw || b.Redraw
	a.Changed = a.Changed || b.Changed
	if b.Status != "" {
		a.Status = b.Status
	}
	return a
}
