package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/menta2k/bbox-labeler/pkg/types"
)

func TestHitTestPriority(t *testing.T) {
	boxes := []types.Box{boxAt120x90()}

	tests := []struct {
		name string
		at   types.Point
		want HitResult
	}{
		{"delete icon", pt(188, 102), HitResult{Kind: HitDelete, Box: 0, Handle: -1}},
		{"delete icon edge inclusive", pt(180, 94), HitResult{Kind: HitDelete, Box: 0, Handle: -1}},
		{"flag icon", pt(188, 138), HitResult{Kind: HitFlag, Box: 0, Handle: -1}},
		{"top-left handle", pt(121, 91), HitResult{Kind: HitHandle, Box: 0, Handle: HandleTopLeft}},
		{"top-left handle outside box", pt(115, 86), HitResult{Kind: HitHandle, Box: 0, Handle: HandleTopLeft}},
		{"bottom-mid handle", pt(160, 157), HitResult{Kind: HitHandle, Box: 0, Handle: HandleBottom}},
		{"left-mid handle", pt(120, 120), HitResult{Kind: HitHandle, Box: 0, Handle: HandleLeft}},
		{"body", pt(140, 110), HitResult{Kind: HitBody, Box: 0, Handle: -1}},
		{"body edge inclusive", pt(150, 90+60), HitResult{Kind: HitBody, Box: 0, Handle: -1}},
		{"nothing", pt(10, 10), HitResult{Kind: HitNone, Box: -1, Handle: -1}},
		{"just past handle radius", pt(120-7.1, 90), HitResult{Kind: HitNone, Box: -1, Handle: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HitTest(tt.at, boxes, canvasW, canvasH))
		})
	}
}

func TestHitTestPrefersTopmost(t *testing.T) {
	boxes := []types.Box{
		types.NewBox(0, 0.5, 0.5, 0.4, 0.4),
		types.NewBox(1, 0.5, 0.5, 0.2, 0.2),
	}

	got := HitTest(pt(180, 140), boxes, canvasW, canvasH)

	assert.Equal(t, HitBody, got.Kind)
	assert.Equal(t, 1, got.Box)
}

func TestHitTestIconsBeatHandlesOfOtherBoxes(t *testing.T) {
	// The top box's bottom-right handle sits on the lower box's delete icon.
	lower := types.NewBox(0, 0.4, 0.4, 0.2, 0.2) // rect 120,90 80x60; delete icon 180..196, 94..110
	upper := types.Box{ClassID: 0, CenterX: 170.0 / 400, CenterY: 80.0 / 300, Width: 40.0 / 400, Height: 40.0 / 300, IsTruePositive: true}

	got := HitTest(pt(190, 100), []types.Box{lower, upper}, canvasW, canvasH)

	assert.Equal(t, HitDelete, got.Kind)
	assert.Equal(t, 0, got.Box)
}

func TestHandlePointsOrder(t *testing.T) {
	p := HandlePoints(types.PixelRect{X: 0, Y: 0, W: 10, H: 20})
	want := [8]types.Point{
		{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10},
		{X: 10, Y: 20}, {X: 5, Y: 20}, {X: 0, Y: 20}, {X: 0, Y: 10},
	}
	assert.Equal(t, want, p)
}

func TestHitKindString(t *testing.T) {
	assert.Equal(t, "delete", HitDelete.String())
	assert.Equal(t, "none", HitKind(99).String())
}
