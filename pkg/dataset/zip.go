package dataset

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/bbox-labeler/pkg/classes"
)

// Directory names inside the archive
const (
	ImagesDir = "uploads"
	LabelsDir = "labels"
)

// ArchiveName returns the download name for a dataset
func ArchiveName(name string) string {
	if name == "" {
		name = "antpi"
	}
	return name + "_dataset.zip"
}

// dataYAML is the class manifest placed at the archive root
type dataYAML struct {
	Path  string         `yaml:"path"`
	Train string         `yaml:"train"`
	Val   string         `yaml:"val"`
	NC    int            `yaml:"nc"`
	Names map[int]string `yaml:"names"`
}

// WriteZip writes a deflated zip with every item's image under uploads/ and
// the YOLO labels of labeled items under labels/. When registry is non-nil a
// data.yaml class manifest is added at the root.
func WriteZip(w io.Writer, items []Item, registry *classes.Registry) (err error) {
	zw := zip.NewWriter(w)
	defer func() {
		if cerr := zw.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to finish archive: %w", cerr)
		}
	}()

	for _, it := range items {
		if it.Path != "" {
			if err := addFile(zw, path.Join(ImagesDir, it.Filename), it.Path); err != nil {
				return err
			}
		}
		if !it.Labeled {
			continue
		}
		if err := addBytes(zw, path.Join(LabelsDir, LabelName(it.Filename)), []byte(FormatYOLO(it.Boxes))); err != nil {
			return err
		}
	}

	if registry != nil {
		manifest := dataYAML{Path: ".", Train: ImagesDir, Val: ImagesDir, Names: map[int]string{}}
		for _, c := range registry.All() {
			manifest.Names[c.ID] = c.Label
		}
		manifest.NC = len(manifest.Names)
		data, err := yaml.Marshal(manifest)
		if err != nil {
			return fmt.Errorf("failed to marshal data.yaml: %w", err)
		}
		if err := addBytes(zw, "data.yaml", data); err != nil {
			return err
		}
	}
	return nil
}

func addFile(zw *zip.Writer, name, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer f.Close()

	dst, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func addBytes(zw *zip.Writer, name string, data []byte) error {
	dst, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := dst.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
