// Package gallery manages the uploads directory: listing, receiving and
// deleting images and collecting them for dataset export.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/menta2k/bbox-labeler/internal/logger"
	"github.com/menta2k/bbox-labeler/internal/storage"
	"github.com/menta2k/bbox-labeler/internal/utils"
	"github.com/menta2k/bbox-labeler/pkg/dataset"
	"github.com/menta2k/bbox-labeler/pkg/imageio"
	"github.com/menta2k/bbox-labeler/pkg/types"
)

const (
	// TimestampLayout is the filename prefix written by the capture devices,
	// e.g. 2023-07-20T20-19-46+0200_b8-27-eb-3b-8d-1c.jpeg
	TimestampLayout = "2006-01-02T15-04-05-0700"
	// UploadTimeLayout is the human readable upload time of a listing row
	UploadTimeLayout = "2006-01-02 15:04:05"
)

var (
	// ErrInvalidType is returned when an upload is not an accepted image type
	ErrInvalidType = errors.New("Invalid file type")
	// ErrNoFile is returned when an upload carries no file name
	ErrNoFile = errors.New("No selected file")
)

// DatasetExtensions are the image types packed into dataset archives
var DatasetExtensions = []string{"jpg", "jpeg", "png"}

// Gallery is the uploads directory plus the label store
type Gallery struct {
	dir   string
	store storage.LabelStorage
	proc  *imageio.Processor
	exts  []string
	loc   *time.Location
}

// Option configures a Gallery
type Option func(*Gallery)

// WithExtensions sets the listed and accepted image extensions
func WithExtensions(exts []string) Option {
	return func(g *Gallery) {
		if len(exts) > 0 {
			g.exts = exts
		}
	}
}

// WithLocation sets the zone used for upload_time and date ranges
func WithLocation(loc *time.Location) Option {
	return func(g *Gallery) {
		if loc != nil {
			g.loc = loc
		}
	}
}

// WithProcessor sets the image processor used to read dimensions
func WithProcessor(p *imageio.Processor) Option {
	return func(g *Gallery) {
		if p != nil {
			g.proc = p
		}
	}
}

// Query filters a listing
type Query struct {
	Filter        string // case-insensitive filename substring
	OnlyUnlabeled bool   // keep only images without saved labels
}

// Removed reports what a delete removed
type Removed struct {
	Image  bool `json:"image"`
	Labels bool `json:"labels"`
}

// DeleteResult is the outcome of Delete
type DeleteResult struct {
	Status  string  `json:"status"`
	Removed Removed `json:"removed"`
}

// New creates a gallery over dir, creating it when missing
func New(dir string, store storage.LabelStorage, opts ...Option) (*Gallery, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	g := &Gallery{
		dir:   dir,
		store: store,
		proc:  imageio.NewProcessor(),
		exts:  []string{"jpg", "jpeg"},
		loc:   time.Local,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Dir returns the uploads directory
func (g *Gallery) Dir() string { return g.dir }

// Store returns the label store
func (g *Gallery) Store() storage.LabelStorage { return g.store }

// Location returns the zone used for dates
func (g *Gallery) Location() *time.Location { return g.loc }

// Accepts reports whether filename has a listed image extension
func (g *Gallery) Accepts(filename string) bool {
	return utils.HasExtension(filename, g.exts)
}

// Path resolves an image name inside the uploads directory
func (g *Gallery) Path(filename string) (string, error) {
	if err := storage.ValidateName(filename); err != nil {
		return "", err
	}
	return filepath.Join(g.dir, filename), nil
}

// ParseTimestamp parses the timestamp prefix of a filename: the part of the
// base name before the first underscore
func ParseTimestamp(filename string) (time.Time, bool) {
	base := dataset.BaseName(filename)
	prefix, _, _ := strings.Cut(base, "_")
	t, err := time.Parse(TimestampLayout, prefix)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// UploadTime returns the filename timestamp, falling back to the mtime
func UploadTime(filename string, info fs.FileInfo) time.Time {
	if t, ok := ParseTimestamp(filename); ok {
		return t
	}
	if info != nil {
		return info.ModTime()
	}
	return time.Time{}
}

// IsTruthy reports whether a query flag is set: 1, true, yes or on
func IsTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Metadata returns the sensor metadata of an image. EXIF extraction is
// disabled so every field is null.
func Metadata(path string) types.Metadata {
	return types.Metadata{}
}

// List returns the images newest first
func (g *Gallery) List(ctx context.Context, q Query) ([]types.ImageEntry, error) {
	names, err := utils.ListFiles(g.dir, g.exts)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	sums, err := g.store.Summaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load label status: %w", err)
	}

	filter := strings.ToLower(strings.TrimSpace(q.Filter))
	entries := make([]types.ImageEntry, 0, len(names))
	for _, name := range names {
		if filter != "" && !strings.Contains(strings.ToLower(name), filter) {
			continue
		}
		sum, labeled := sums[name]
		if q.OnlyUnlabeled && labeled {
			continue
		}
		path := filepath.Join(g.dir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		ts := UploadTime(name, info)
		entries = append(entries, types.ImageEntry{
			Filename:    name,
			UploadTS:    float64(ts.UnixNano()) / 1e9,
			UploadTime:  ts.In(g.loc).Format(UploadTimeLayout),
			Metadata:    Metadata(path),
			LabelsCount: sum.Count,
			IsLabeled:   labeled,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].UploadTS > entries[j].UploadTS
	})
	return entries, nil
}

// Receive stores an uploaded image and returns its sanitized name
func (g *Gallery) Receive(ctx context.Context, filename string, r io.Reader) (string, types.Metadata, error) {
	if filename == "" {
		return "", types.Metadata{}, ErrNoFile
	}
	if !g.Accepts(filename) {
		return "", types.Metadata{}, ErrInvalidType
	}
	name := utils.SanitizeFilename(filename)
	if !g.Accepts(name) || storage.ValidateName(name) != nil {
		return "", types.Metadata{}, ErrInvalidType
	}

	path := filepath.Join(g.dir, name)
	tmp, err := os.CreateTemp(g.dir, ".upload-*")
	if err != nil {
		return "", types.Metadata{}, fmt.Errorf("failed to create upload: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", types.Metadata{}, fmt.Errorf("failed to write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", types.Metadata{}, fmt.Errorf("failed to write upload: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return "", types.Metadata{}, fmt.Errorf("failed to write upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", types.Metadata{}, fmt.Errorf("failed to store upload: %w", err)
	}

	logger.FromContext(ctx).Sugar().Infow("image received", "filename", name)
	return name, Metadata(path), nil
}

// Delete removes an image and its labels. Status is success when both went,
// partial when one did, not_found when neither existed.
func (g *Gallery) Delete(ctx context.Context, filename string) (DeleteResult, error) {
	path, err := g.Path(filename)
	if err != nil {
		return DeleteResult{Status: "error"}, err
	}

	var res DeleteResult
	if err := os.Remove(path); err == nil {
		res.Removed.Image = true
	} else if !errors.Is(err, fs.ErrNotExist) {
		return DeleteResult{Status: "error"}, fmt.Errorf("failed to remove image: %w", err)
	}

	res.Removed.Labels, err = g.store.Delete(ctx, filename)
	if err != nil {
		return DeleteResult{Status: "error", Removed: res.Removed}, err
	}

	switch {
	case res.Removed.Image && res.Removed.Labels:
		res.Status = "success"
	case res.Removed.Image || res.Removed.Labels:
		res.Status = "partial"
	default:
		res.Status = "not_found"
	}
	return res, nil
}

// Items collects every dataset image with its labels. withSize also reads
// pixel dimensions, which VIA and KITTI need.
func (g *Gallery) Items(ctx context.Context, withSize bool) ([]dataset.Item, error) {
	names, err := utils.ListFiles(g.dir, DatasetExtensions)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}

	items := make([]dataset.Item, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(g.dir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		it := dataset.Item{
			Filename:   name,
			Path:       path,
			Size:       info.Size(),
			UploadTime: UploadTime(name, info),
		}

		boxes, err := g.store.Load(ctx, name)
		switch {
		case err == nil:
			it.Labeled = true
			it.Boxes = boxes
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("failed to load labels for %s: %w", name, err)
		}

		if withSize {
			imgInfo, err := g.proc.ReadInfo(path)
			if err != nil {
				logger.FromContext(ctx).Sugar().Warnw("skipping image size", "filename", name, "error", err)
			} else {
				it.Width, it.Height = imgInfo.Width, imgInfo.Height
			}
		}
		items = append(items, it)
	}
	return items, nil
}
