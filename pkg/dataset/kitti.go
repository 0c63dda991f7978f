package dataset

// KITTI label export.

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/bbox-labeler/pkg/classes"
	"github.com/menta2k/bbox-labeler/pkg/geometry"
)

// KITTIAnnotation is a single annotation within a KITTI file
type KITTIAnnotation struct {
	Coords [4]float64 // x1, y1, x2, y2
	Label  string
	Score  float64
}

// String formats the annotation as a KITTI line without the newline
func (a KITTIAnnotation) String() string {
	return fmt.Sprintf("%s 0.0 0 0.0 %.2f %.2f %.2f %.2f 0.0 0.0 0.0 0.0 0.0 0.0 0.0 %f",
		a.Label, a.Coords[0], a.Coords[1], a.Coords[2], a.Coords[3], a.Score)
}

// ToKITTI converts the boxes of an item. True positives score 1, false
// positives 0. Items without pixel dimensions yield nil.
func ToKITTI(it Item, registry *classes.Registry) []KITTIAnnotation {
	if it.Width <= 0 || it.Height <= 0 {
		return nil
	}
	if registry == nil {
		registry = classes.Default()
	}
	out := make([]KITTIAnnotation, 0, len(it.Boxes))
	for _, b := range it.Boxes {
		r := geometry.ToPixelRect(b, float64(it.Width), float64(it.Height))
		x1, y1, x2, y2 := geometry.Corners(r)
		a := KITTIAnnotation{
			Coords: [4]float64{x1, y1, x2, y2},
			Label:  strings.ReplaceAll(registry.Label(b.ClassID), " ", "_"),
		}
		if b.IsTruePositive {
			a.Score = 1
		}
		out = append(out, a)
	}
	return out
}

// WriteKITTI writes one label file per labeled item into dir
func WriteKITTI(dir string, items []Item, registry *classes.Registry) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("cannot access directory %q: %v", dir, err)
	}
	for _, it := range items {
		if !it.Labeled {
			continue
		}
		var sb strings.Builder
		for _, a := range ToKITTI(it, registry) {
			sb.WriteString(a.String())
			sb.WriteByte('\n')
		}
		p := filepath.Join(dir, LabelName(it.Filename))
		if err := os.WriteFile(p, []byte(sb.String()), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", p, err)
		}
	}
	return nil
}
