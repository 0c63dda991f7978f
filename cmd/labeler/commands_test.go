package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/bbox-labeler/internal/config"
	"github.com/menta2k/bbox-labeler/internal/storage"
	"github.com/menta2k/bbox-labeler/pkg/types"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 90, G: 90, B: 90, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

// writeConfig creates an uploads dir with one labeled and one unlabeled
// image and returns the config path
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Uploads.Dir = filepath.Join(root, "uploads")
	cfg.Logging.Level = "error"
	require.NoError(t, os.MkdirAll(cfg.Uploads.Dir, 0755))

	writePNG(t, filepath.Join(cfg.Uploads.Dir, "2024-05-15T12-00-00+0000_a.png"), 40, 20)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Uploads.Dir, "2024-06-15T12-00-00+0000_b.jpg"), []byte("b"), 0644))

	store, err := storage.NewFilesStorage(cfg.Uploads.Dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), "2024-05-15T12-00-00+0000_a.png",
		[]types.Box{types.NewBox(0, 0.5, 0.5, 0.5, 0.5)}))

	path := filepath.Join(root, "labeler.yaml")
	require.NoError(t, cfg.SaveToFile(path))
	return path, root
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestExportYOLO(t *testing.T) {
	cfgPath, root := writeConfig(t)
	out := filepath.Join(root, "export", "set.zip")

	stdout, err := run(t, "export", "--config", cfgPath, "--format", "yolo", "--out", out,
		"--from", "2024-05-01", "--to", "2024-05-31")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Exported 1 images")

	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{
		"uploads/2024-05-15T12-00-00+0000_a.png",
		"labels/2024-05-15T12-00-00+0000_a.txt",
		"data.yaml",
	}, names)
}

func TestExportVIA(t *testing.T) {
	cfgPath, root := writeConfig(t)
	out := filepath.Join(root, "via.json")

	_, err := run(t, "export", "--config", cfgPath, "--format", "via", "--out", out, "--from", "", "--to", "")
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var project map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &project))
	assert.NotEmpty(t, project)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	_, err := run(t, "export", "--config", cfgPath, "--format", "coco", "--out", "", "--from", "", "--to", "")
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	cfgPath, root := writeConfig(t)
	imagePath := filepath.Join(root, "uploads", "2024-05-15T12-00-00+0000_a.png")
	out := filepath.Join(root, "rendered.png")

	stdout, err := run(t, "render", "--config", cfgPath, "--image", imagePath, "--out", out, "--crops")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Rendered 1 labels")
	assert.Contains(t, stdout, "Wrote 1 crops")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 20), img.Bounds())

	assert.FileExists(t, filepath.Join(root, "2024-05-15T12-00-00+0000_a_crop0.jpg"))
}

func TestReadLabelsMissingFile(t *testing.T) {
	boxes, err := readLabels(filepath.Join(t.TempDir(), "none.txt"))
	require.NoError(t, err)
	assert.Empty(t, boxes)
}

func TestVersion(t *testing.T) {
	stdout, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "labeler ")
}
