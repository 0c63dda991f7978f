package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/menta2k/bbox-labeler/internal/utils"
	"github.com/menta2k/bbox-labeler/pkg/dataset"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the labeled dataset as a YOLO zip, a VIA project or KITTI files",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().String("from", "", "first upload date, YYYY-MM-DD")
	exportCmd.Flags().String("to", "", "last upload date, YYYY-MM-DD")
	exportCmd.Flags().StringP("format", "f", "yolo", "export format: yolo|via|kitti")
	exportCmd.Flags().StringP("out", "o", "", "output file (yolo, via) or directory (kitti)")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")

	switch format {
	case "yolo", "via", "kitti":
	default:
		return fmt.Errorf("unknown format %q: expected yolo, via or kitti", format)
	}
	if (from == "") != (to == "") {
		return fmt.Errorf("--from and --to must be given together")
	}

	g, store, err := openGallery(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	registry, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("failed to load classes: %w", err)
	}

	ctx := cmd.Context()
	items, err := g.Items(ctx, format != "yolo")
	if err != nil {
		return err
	}
	if from != "" {
		start, end, err := dataset.ParseDateRange(from, to, g.Location())
		if err != nil {
			return err
		}
		items = dataset.FilterRange(items, start, end)
	}

	switch format {
	case "yolo":
		if out == "" {
			out = dataset.ArchiveName(cfg.Dataset.Name)
		}
		err = writeFile(out, func(f *os.File) error { return dataset.WriteZip(f, items, registry) })
	case "via":
		if out == "" {
			out = cfg.Dataset.Name + "_via.json"
		}
		err = writeFile(out, func(f *os.File) error { return dataset.WriteVIA(f, dataset.ToVIA(items, registry)) })
	case "kitti":
		if out == "" {
			out = cfg.Dataset.Name + "_kitti"
		}
		if utils.FileExists(out) && !utils.DirExists(out) {
			return fmt.Errorf("%s exists and is not a directory", out)
		}
		err = dataset.WriteKITTI(out, items, registry)
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	log.Info("dataset exported", zap.String("format", format), zap.String("out", out), zap.Int("images", len(items)))
	if info, err := os.Stat(out); err == nil && !info.IsDir() {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d images to %s (%s)\n", len(items), out, utils.FormatFileSize(info.Size()))
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d images to %s\n", len(items), out)
	}
	return nil
}

func writeFile(path string, write func(*os.File) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}
