package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/menta2k/bbox-labeler/internal/logger"
	"github.com/menta2k/bbox-labeler/pkg/dataset"
	"github.com/menta2k/bbox-labeler/pkg/types"
)

// StatusFile is the name of the labeled-status index inside the labels directory
const StatusFile = "status.json"

// FilesStorage keeps one YOLO text file per image plus a status.json index.
// The text files carry five columns; false positive flags live in the index
// and only apply while the text file is the one that was saved.
type FilesStorage struct {
	dir   string
	mutex sync.Mutex
}

// statusEntry is one status.json value, keyed by image name
type statusEntry struct {
	SavedAt        time.Time `json:"saved_at"`
	Count          int       `json:"count"`
	Digest         string    `json:"digest,omitempty"`
	FalsePositives []int     `json:"false_positives,omitempty"`
}

func digest(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// NewFilesStorage creates a files backend rooted at dir
func NewFilesStorage(dir string) (*FilesStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return &FilesStorage{dir: dir}, nil
}

// Dir returns the labels directory
func (s *FilesStorage) Dir() string { return s.dir }

// LabelPath returns the text file holding the labels of image
func (s *FilesStorage) LabelPath(image string) string {
	return filepath.Join(s.dir, dataset.LabelName(image))
}

// Load implements LabelStorage
func (s *FilesStorage) Load(ctx context.Context, image string) ([]types.Box, error) {
	if err := ValidateName(image); err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := os.ReadFile(s.LabelPath(image))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}

	boxes, perr := dataset.ParseYOLO(bytes.NewReader(data))
	if perr != nil {
		logger.Warn("skipping malformed label lines", "image", image, "error", perr)
	}

	status, err := s.readStatus()
	if err != nil {
		return nil, err
	}
	entry, ok := status[image]
	if !ok || len(entry.FalsePositives) == 0 {
		return boxes, nil
	}
	if perr != nil || len(boxes) != entry.Count || (entry.Digest != "" && entry.Digest != digest(data)) {
		logger.Warn("label file changed since it was saved, ignoring false positive flags",
			"image", image, "saved_count", entry.Count, "count", len(boxes))
		return boxes, nil
	}
	for _, i := range entry.FalsePositives {
		if i >= 0 && i < len(boxes) {
			boxes[i].IsTruePositive = false
		}
	}
	return boxes, nil
}

// Save implements LabelStorage
func (s *FilesStorage) Save(ctx context.Context, image string, boxes []types.Box) error {
	if err := ValidateName(image); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data := []byte(dataset.FormatYOLO(boxes))
	if err := writeAtomic(s.LabelPath(image), data); err != nil {
		return fmt.Errorf("failed to write labels: %w", err)
	}

	status, err := s.readStatus()
	if err != nil {
		return err
	}
	entry := statusEntry{SavedAt: time.Now().UTC(), Count: len(boxes), Digest: digest(data)}
	for i, b := range boxes {
		if !b.IsTruePositive {
			entry.FalsePositives = append(entry.FalsePositives, i)
		}
	}
	status[image] = entry
	return s.writeStatus(status)
}

// Delete implements LabelStorage
func (s *FilesStorage) Delete(ctx context.Context, image string) (bool, error) {
	if err := ValidateName(image); err != nil {
		return false, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := true
	if err := os.Remove(s.LabelPath(image)); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("failed to remove labels: %w", err)
		}
		removed = false
	}

	status, err := s.readStatus()
	if err != nil {
		return removed, err
	}
	if _, ok := status[image]; ok {
		delete(status, image)
		if err := s.writeStatus(status); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// Summaries implements LabelStorage; the index is status.json
func (s *FilesStorage) Summaries(ctx context.Context) (map[string]Summary, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	status, err := s.readStatus()
	if err != nil {
		return nil, err
	}
	out := make(map[string]Summary, len(status))
	for image, e := range status {
		out[image] = Summary{Count: e.Count, Labeled: true, SavedAt: e.SavedAt}
	}
	return out, nil
}

// Health implements LabelStorage
func (s *FilesStorage) Health(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("labels directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("labels path %s is not a directory", s.dir)
	}
	return nil
}

// Close implements LabelStorage
func (s *FilesStorage) Close() error { return nil }

// readStatus loads status.json; a missing or malformed file is an empty index
func (s *FilesStorage) readStatus() (map[string]statusEntry, error) {
	status := map[string]statusEntry{}
	data, err := os.ReadFile(filepath.Join(s.dir, StatusFile))
	if errors.Is(err, fs.ErrNotExist) {
		return status, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status: %w", err)
	}
	if err := json.Unmarshal(data, &status); err != nil {
		logger.Warn("ignoring malformed status file", "path", filepath.Join(s.dir, StatusFile), "error", err)
		return map[string]statusEntry{}, nil
	}
	return status, nil
}

func (s *FilesStorage) writeStatus(status map[string]statusEntry) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	if err := writeAtomic(filepath.Join(s.dir, StatusFile), data); err != nil {
		return fmt.Errorf("failed to write status: %w", err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+strings.TrimPrefix(filepath.Base(path), ".")+".tmp*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Chmod(name, 0644); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}
