package labeler

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"testing"

	"github.com/menta2k/bbox-labeler/internal/storage"
	"github.com/menta2k/bbox-labeler/pkg/classes"
	"github.com/menta2k/bbox-labeler/pkg/editor"
	"github.com/menta2k/bbox-labeler/pkg/types"
)

// createTestImage creates a flat gray test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{64, 64, 64, 255})
		}
	}
	return img
}

func newTestLabeler(t *testing.T) (*Labeler, storage.LabelStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	existing := []types.Box{types.NewBox(0, 0.8, 0.5, 0.2, 0.4)}
	if err := store.Save(context.Background(), "bee.jpg", existing); err != nil {
		t.Fatal(err)
	}
	return New(NewStoreClient(store), classes.Default()), store
}

func TestOpenLoadsLabels(t *testing.T) {
	l, _ := newTestLabeler(t)
	if err := l.Open(context.Background(), "bee.jpg", createTestImage(100, 50)); err != nil {
		t.Fatal(err)
	}
	if got := len(l.Boxes()); got != 1 {
		t.Fatalf("expected 1 box, got %d", got)
	}
	if l.Status() != "Loaded bee.jpg (1 labels)" {
		t.Errorf("unexpected status %q", l.Status())
	}
	if l.Image() != "bee.jpg" {
		t.Errorf("unexpected image %q", l.Image())
	}
}

func TestEditAndSave(t *testing.T) {
	l, store := newTestLabeler(t)
	ctx := context.Background()
	if err := l.Open(ctx, "bee.jpg", createTestImage(100, 50)); err != nil {
		t.Fatal(err)
	}

	eff := l.AddBox(types.Point{X: 10, Y: 10}, types.Point{X: 60, Y: 40})
	if !eff.Changed || l.Status() != editor.StatusAdded {
		t.Fatalf("box not added: %+v, status %q", eff, l.Status())
	}
	boxes := l.Boxes()
	if len(boxes) != 2 {
		t.Fatalf("expected 2 boxes, got %d", len(boxes))
	}
	added := boxes[1]
	if math.Abs(added.CenterX-0.35) > 1e-9 || math.Abs(added.Width-0.5) > 1e-9 || math.Abs(added.Height-0.6) > 1e-9 {
		t.Errorf("unexpected added box %+v", added)
	}

	if err := l.Save(ctx); err != nil {
		t.Fatal(err)
	}
	if l.Status() != "Saved 2 labels for bee.jpg" {
		t.Errorf("unexpected status %q", l.Status())
	}
	saved, err := store.Load(ctx, "bee.jpg")
	if err != nil || len(saved) != 2 {
		t.Fatalf("store has %v, %v", saved, err)
	}

	// delete icon of the added box sits at its top-right corner
	l.Click(types.Point{X: 45, Y: 20})
	if len(l.Boxes()) != 1 || l.Status() != "Label deleted." {
		t.Errorf("delete click left %d boxes, status %q", len(l.Boxes()), l.Status())
	}
}

func TestRenderAndCrops(t *testing.T) {
	l, _ := newTestLabeler(t)
	if _, err := l.Render(); !errors.Is(err, editor.ErrNoImage) {
		t.Errorf("expected ErrNoImage, got %v", err)
	}

	err := l.Load("bee.jpg", createTestImage(100, 50), []types.Box{types.NewBox(0, 0.5, 0.5, 0.5, 0.6)})
	if err != nil {
		t.Fatal(err)
	}

	out, err := l.Render()
	if err != nil {
		t.Fatal(err)
	}
	if out.Bounds() != image.Rect(0, 0, 100, 50) {
		t.Errorf("unexpected bounds %v", out.Bounds())
	}
	r, g, b, _ := out.At(25, 25).RGBA()
	if r>>8 == 64 && g>>8 == 64 && b>>8 == 64 {
		t.Error("box edge was not drawn")
	}

	crops, err := l.Crops()
	if err != nil {
		t.Fatal(err)
	}
	if len(crops) != 1 || crops[0].Bounds().Dx() != 50 || crops[0].Bounds().Dy() != 30 {
		t.Errorf("unexpected crops %v", crops)
	}

	path := filepath.Join(t.TempDir(), "bee_labeled.png")
	if err := l.RenderTo(path); err != nil {
		t.Fatal(err)
	}
}

func TestSaveWithoutImage(t *testing.T) {
	l, _ := newTestLabeler(t)
	if err := l.Save(context.Background()); !errors.Is(err, editor.ErrNoImage) {
		t.Errorf("expected ErrNoImage, got %v", err)
	}
	if l.Status() != editor.StatusNoImageSave {
		t.Errorf("unexpected status %q", l.Status())
	}
}
