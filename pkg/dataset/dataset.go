// Package dataset exports labeled images as training datasets.
//
// Three label formats are written: YOLO text (one normalized box per line),
// VIA project JSON and KITTI text. The YOLO export is packed into a zip with
// the images under uploads/ and the label files under labels/.
package dataset

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/menta2k/bbox-labeler/pkg/types"
)

// DateLayout is the layout of the from/to range bounds
const DateLayout = "2006-01-02"

// Item is one image of the dataset
type Item struct {
	Filename   string      // base name, e.g. 2023-07-20T20-19-46+0200_cam.jpg
	Path       string      // image on disk; empty skips the image bytes
	Size       int64       // file size in bytes
	Width      int         // pixel width, required by VIA and KITTI
	Height     int         // pixel height, required by VIA and KITTI
	UploadTime time.Time   // parsed from the filename or the mtime
	Labeled    bool        // a label file exists for the image
	Boxes      []types.Box // labels
}

// LabelName returns the label file name for an image: base name with .txt
func LabelName(filename string) string {
	return BaseName(filename) + ".txt"
}

// BaseName strips directory and extension
func BaseName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParseDateRange parses inclusive from/to dates in loc. The returned end is
// exclusive: midnight after the to date.
func ParseDateRange(from, to string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	start, err := time.ParseInLocation(DateLayout, strings.TrimSpace(from), loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from date %q: expected YYYY-MM-DD", from)
	}
	last, err := time.ParseInLocation(DateLayout, strings.TrimSpace(to), loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to date %q: expected YYYY-MM-DD", to)
	}
	if last.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("from date %s is after to date %s", from, to)
	}
	return start, last.AddDate(0, 0, 1), nil
}

// FilterRange keeps the items uploaded in [start, end)
func FilterRange(items []Item, start, end time.Time) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if !it.UploadTime.Before(start) && it.UploadTime.Before(end) {
			out = append(out, it)
		}
	}
	return out
}
