package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/menta2k/bbox-labeler/pkg/types"
)

// FormatYOLO renders boxes as YOLO label lines: cls xc yc w h
func FormatYOLO(boxes []types.Box) string {
	var sb strings.Builder
	for _, b := range boxes {
		fmt.Fprintf(&sb, "%d %.6f %.6f %.6f %.6f\n", b.ClassID, b.CenterX, b.CenterY, b.Width, b.Height)
	}
	return sb.String()
}

// ParseYOLO reads YOLO label lines. Blank lines are ignored. Malformed
// lines are skipped and reported in the returned error, next to the boxes
// that did parse. Parsed boxes are true positives.
func ParseYOLO(r io.Reader) ([]types.Box, error) {
	var (
		boxes []types.Box
		errs  []error
	)
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		b, err := parseYOLOLine(line)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", n, err))
			continue
		}
		boxes = append(boxes, b)
	}
	if err := sc.Err(); err != nil {
		errs = append(errs, fmt.Errorf("failed to read labels: %w", err))
	}
	return boxes, errors.Join(errs...)
}

func parseYOLOLine(line string) (types.Box, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return types.Box{}, fmt.Errorf("expected 5 values, got %d", len(fields))
	}
	cls, err := strconv.Atoi(fields[0])
	if err != nil || cls < 0 {
		return types.Box{}, fmt.Errorf("invalid class id %q", fields[0])
	}
	var v [4]float64
	for i := range v {
		if v[i], err = strconv.ParseFloat(fields[i+1], 64); err != nil {
			return types.Box{}, fmt.Errorf("invalid coordinate %q", fields[i+1])
		}
	}
	return types.NewBox(cls, v[0], v[1], v[2], v[3]), nil
}
