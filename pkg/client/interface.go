// Package client is the HTTP side of the label persistence boundary.
package client

import (
	"context"

	"github.com/menta2k/bbox-labeler/pkg/editor"
	"github.com/menta2k/bbox-labeler/pkg/types"
)

// LabelerAPI is everything the browser page needs from the server
type LabelerAPI interface {
	editor.LabelClient
	ListImages(ctx context.Context, filter string, onlyUnlabeled bool) ([]types.ImageEntry, error)
	ImageURL(image string) string
}

var _ LabelerAPI = (*Client)(nil)
