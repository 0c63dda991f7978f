package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	labeler "github.com/menta2k/bbox-labeler"
	"github.com/menta2k/bbox-labeler/internal/utils"
	"github.com/menta2k/bbox-labeler/pkg/dataset"
	"github.com/menta2k/bbox-labeler/pkg/imageio"
	"github.com/menta2k/bbox-labeler/pkg/render"
	"github.com/menta2k/bbox-labeler/pkg/types"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Draw the labels of an image into a new image file",
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().String("image", "", "input image (jpg, png or webp)")
	renderCmd.Flags().String("labels", "", "YOLO label file (default: the image name with .txt)")
	renderCmd.Flags().String("out", "", "output image (default: <image>_labeled.<render.format>)")
	renderCmd.Flags().Bool("crops", false, "also write one crop per label next to the output")
	_ = renderCmd.MarkFlagRequired("image")
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	imagePath, _ := cmd.Flags().GetString("image")
	labelsPath, _ := cmd.Flags().GetString("labels")
	out, _ := cmd.Flags().GetString("out")
	withCrops, _ := cmd.Flags().GetBool("crops")

	if labelsPath == "" {
		labelsPath = strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".txt"
	}
	if out == "" {
		out = utils.GenerateOutputFilename(imagePath, filepath.Dir(imagePath), "", "_labeled", cfg.Render.Format)
	}

	boxes, err := readLabels(labelsPath)
	if err != nil {
		return err
	}

	registry, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("failed to load classes: %w", err)
	}
	imgConfig := imageio.DefaultConfig()
	imgConfig.Quality = cfg.Render.Quality
	l := labeler.NewWithConfig(nil, registry, render.Options{FillAlpha: cfg.Render.FillAlpha}, imgConfig)

	proc := imageio.NewProcessorWithConfig(imgConfig)
	img, err := proc.LoadImage(imagePath)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}
	if err := l.Load(filepath.Base(imagePath), img, boxes); err != nil {
		return err
	}
	if err := l.RenderTo(out); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	log.Info("rendered", zap.String("image", imagePath), zap.Int("labels", len(boxes)), zap.String("out", out))
	fmt.Fprintf(cmd.OutOrStdout(), "Rendered %d labels to %s\n", len(boxes), out)

	if !withCrops {
		return nil
	}
	crops, err := l.Crops()
	if err != nil {
		return err
	}
	for i, crop := range crops {
		name := utils.GenerateOutputFilename(imagePath, filepath.Dir(out), "", fmt.Sprintf("_crop%d", i), "jpg")
		if err := proc.SaveImage(crop, name); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d crops\n", len(crops))
	return nil
}

// readLabels parses a YOLO file; a missing file means no labels
func readLabels(path string) ([]types.Box, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	boxes, err := dataset.ParseYOLO(f)
	if err != nil {
		zap.S().Warnw("skipped malformed label lines", "file", path, "error", err)
	}
	return boxes, nil
}
