package dataset

// VGG Image Annotator (VIA) project export.

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/menta2k/bbox-labeler/pkg/classes"
	"github.com/menta2k/bbox-labeler/pkg/geometry"
)

// VIAShape describes the shape of a region
type VIAShape struct {
	Name   string `json:"name"`
	X      int32  `json:"x"`
	Y      int32  `json:"y"`
	Width  int32  `json:"width"`
	Height int32  `json:"height"`
}

// VIARegion is a single region annotation of an image
type VIARegion struct {
	Attributes map[string]string `json:"region_attributes"`
	Shape      VIAShape          `json:"shape_attributes"`
}

// VIAFile is the annotation structure of a single image
type VIAFile struct {
	Regions    []VIARegion       `json:"regions"`
	Attributes map[string]string `json:"file_attributes"`
	Filename   string            `json:"filename"`
	Size       int64             `json:"size"`
}

// VIAOptionsAttribute defines a radio or dropdown attribute
type VIAOptionsAttribute struct {
	Type           string            `json:"type"`
	Description    string            `json:"description"`
	Options        map[string]string `json:"options"`
	DefaultOptions map[string]bool   `json:"default_options"`
}

// VIAAttributes is the attribute metadata of a project
type VIAAttributes struct {
	Region map[string]VIAOptionsAttribute `json:"region"`
	File   map[string]VIAOptionsAttribute `json:"file"`
}

// VIAProject is a complete VIA project
type VIAProject struct {
	Attributes    VIAAttributes      `json:"_via_attributes"`
	ImageMetadata map[string]VIAFile `json:"_via_img_metadata"`
	// must exist for VIA to load the project
	Settings struct{} `json:"_via_settings"`
}

// Region attribute keys
const (
	VIAClassAttribute = "class"
	VIAFlagAttribute  = "is_tp"
)

// ToVIA converts items to a VIA project. Items without pixel dimensions are
// skipped since VIA shapes are absolute.
func ToVIA(items []Item, registry *classes.Registry) VIAProject {
	if registry == nil {
		registry = classes.Default()
	}
	classAttr := VIAOptionsAttribute{Type: "radio", Options: map[string]string{}, DefaultOptions: map[string]bool{}}
	for _, c := range registry.All() {
		classAttr.Options[c.Label] = ""
	}
	project := VIAProject{
		Attributes: VIAAttributes{
			Region: map[string]VIAOptionsAttribute{
				VIAClassAttribute: classAttr,
				VIAFlagAttribute: {
					Type:           "radio",
					Options:        map[string]string{"true": "", "false": ""},
					DefaultOptions: map[string]bool{"true": true},
				},
			},
			File: map[string]VIAOptionsAttribute{},
		},
		ImageMetadata: make(map[string]VIAFile, len(items)),
	}

	for _, it := range items {
		if it.Width <= 0 || it.Height <= 0 {
			continue
		}
		file := VIAFile{
			Regions:    make([]VIARegion, 0, len(it.Boxes)),
			Attributes: map[string]string{},
			Filename:   it.Filename,
			Size:       it.Size,
		}
		for _, b := range it.Boxes {
			r := geometry.ToPixelRect(b, float64(it.Width), float64(it.Height))
			file.Regions = append(file.Regions, VIARegion{
				Attributes: map[string]string{
					VIAClassAttribute: registry.Label(b.ClassID),
					VIAFlagAttribute:  strconv.FormatBool(b.IsTruePositive),
				},
				Shape: VIAShape{
					Name:   "rect",
					X:      int32(math.Round(r.X)),
					Y:      int32(math.Round(r.Y)),
					Width:  int32(math.Round(r.W)),
					Height: int32(math.Round(r.H)),
				},
			})
		}
		project.ImageMetadata[it.Filename+strconv.FormatInt(it.Size, 10)] = file
	}
	return project
}

// WriteVIA writes the project as indented JSON
func WriteVIA(w io.Writer, project VIAProject) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(project); err != nil {
		return fmt.Errorf("failed to encode VIA project: %w", err)
	}
	return nil
}
