// Package classes holds the fixed, ordered class registry used for colors,
// dropdowns and badge initials.
package classes

import (
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// FallbackColor is used for class ids missing from the registry
const FallbackColor = "#ff0000"

// Class is one registry entry
type Class struct {
	ID    int    `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
	Color string `yaml:"color" json:"color"`
}

// Registry is a read-only ordered list of classes
type Registry struct {
	classes []Class
	byID    map[int]int
}

// Default returns the single-class registry the labeler ships with
func Default() *Registry {
	r, _ := New([]Class{
		{ID: 0, Label: "Halyomorpha halys", Color: "#e6194B"},
	})
	return r
}

// Ants returns the alternate ant species registry
func Ants() *Registry {
	r, _ := New([]Class{
		{ID: 0, Label: "Camponotus vagus", Color: "#e6194B"},
		{ID: 1, Label: "Plagiolepis pygmaea", Color: "#3cb44b"},
		{ID: 2, Label: "Crematogaster scutellaris", Color: "#ffe119"},
		{ID: 3, Label: "Temnothorax spp.", Color: "#4363d8"},
		{ID: 4, Label: "Dolichoderus quadripunctatus", Color: "#f58231"},
		{ID: 5, Label: "Colobopsis truncata", Color: "#911eb4"},
	})
	return r
}

// Preset returns a built-in registry by name
func Preset(name string) (*Registry, error) {
	switch strings.ToLower(name) {
	case "", "default", "halyomorpha":
		return Default(), nil
	case "ants":
		return Ants(), nil
	default:
		return nil, fmt.Errorf("unknown class preset: %s", name)
	}
}

// New builds a registry, rejecting duplicate ids and malformed colors
func New(list []Class) (*Registry, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("class registry cannot be empty")
	}
	r := &Registry{
		classes: make([]Class, 0, len(list)),
		byID:    make(map[int]int, len(list)),
	}
	for _, c := range list {
		if c.ID < 0 {
			return nil, fmt.Errorf("class %q: id must be non-negative", c.Label)
		}
		if _, dup := r.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate class id %d", c.ID)
		}
		if _, err := ParseHex(c.Color); err != nil {
			return nil, fmt.Errorf("class %d: %w", c.ID, err)
		}
		r.byID[c.ID] = len(r.classes)
		r.classes = append(r.classes, c)
	}
	return r, nil
}

type registryFile struct {
	Classes []Class `yaml:"classes"`
}

// LoadFile reads a registry from a YAML file with a top-level classes list
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read class file: %w", err)
	}
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse class file: %w", err)
	}
	return New(f.Classes)
}

// All returns the classes in registry order
func (r *Registry) All() []Class {
	out := make([]Class, len(r.classes))
	copy(out, r.classes)
	return out
}

// Lookup returns the class with the given id
func (r *Registry) Lookup(id int) (Class, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Class{}, false
	}
	return r.classes[i], true
}

// Has reports whether id is a registered class
func (r *Registry) Has(id int) bool {
	_, ok := r.byID[id]
	return ok
}

// Color returns the class color, or the fallback red for unknown ids
func (r *Registry) Color(id int) string {
	if c, ok := r.Lookup(id); ok {
		return c.Color
	}
	return FallbackColor
}

// RGBA returns the parsed class color
func (r *Registry) RGBA(id int) color.NRGBA {
	c, err := ParseHex(r.Color(id))
	if err != nil {
		return color.NRGBA{R: 255, A: 255}
	}
	return c
}

// Label returns the display label, or "Class <id>" for unknown ids
func (r *Registry) Label(id int) string {
	if c, ok := r.Lookup(id); ok {
		return c.Label
	}
	return fmt.Sprintf("Class %d", id)
}

// Initials returns the badge text for a class id
func (r *Registry) Initials(id int) string {
	return Initials(r.Label(id))
}

// Initials takes the uppercased first letter of each whitespace-separated word
func Initials(label string) string {
	var b strings.Builder
	for _, word := range strings.Fields(label) {
		first, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(first))
	}
	return b.String()
}

// ParseHex parses #rgb or #rrggbb into an opaque color
func ParseHex(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color: %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color: %q", s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// WithAlpha returns c with its alpha channel set from a [0,1] fraction
func WithAlpha(c color.NRGBA, alpha float64) color.NRGBA {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	c.A = uint8(alpha*255 + 0.5)
	return c
}
