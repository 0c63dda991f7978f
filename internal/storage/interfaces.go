// Package storage persists the labels of each image behind one interface.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/menta2k/bbox-labeler/pkg/types"
)

var (
	// ErrNotFound is returned when an image has no stored labels
	ErrNotFound = errors.New("labels not found")
	// ErrInvalidName is returned for image names that are empty or contain path elements
	ErrInvalidName = errors.New("invalid image name")
)

// LabelStorage defines the interface for label persistence
type LabelStorage interface {
	// Load returns the boxes of image, or ErrNotFound
	Load(ctx context.Context, image string) ([]types.Box, error)

	// Save replaces the boxes of image and marks it labeled
	Save(ctx context.Context, image string, boxes []types.Box) error

	// Delete removes the labels of image and reports whether any existed
	Delete(ctx context.Context, image string) (bool, error)

	// Summaries returns per-image label info keyed by image name
	Summaries(ctx context.Context) (map[string]Summary, error)

	// Health checks if the storage is reachable
	Health(ctx context.Context) error

	// Close closes the storage connection
	Close() error
}

// Summary describes the stored labels of one image
type Summary struct {
	Count   int       `json:"count"`
	Labeled bool      `json:"labeled"`
	SavedAt time.Time `json:"saved_at"`
}

// ValidateName rejects names that could escape the labels directory
func ValidateName(image string) error {
	if image == "" || image == "." || image == ".." ||
		strings.ContainsAny(image, `/\`) || strings.ContainsRune(image, 0) {
		return ErrInvalidName
	}
	return nil
}

// record is the serialized form used by the database backends
type record struct {
	Image   string        `json:"image"`
	Labels  []types.Label `json:"labels"`
	SavedAt time.Time     `json:"saved_at"`
}

func newRecord(image string, boxes []types.Box) record {
	labels := types.LabelsFromBoxes(boxes)
	if labels == nil {
		labels = []types.Label{}
	}
	return record{Image: image, Labels: labels, SavedAt: time.Now().UTC()}
}

func (r record) summary() Summary {
	return Summary{Count: len(r.Labels), Labeled: true, SavedAt: r.SavedAt}
}
