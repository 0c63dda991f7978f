package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	labeler "github.com/menta2k/bbox-labeler"
	"github.com/menta2k/bbox-labeler/internal/config"
	"github.com/menta2k/bbox-labeler/internal/gallery"
	"github.com/menta2k/bbox-labeler/internal/notify"
	"github.com/menta2k/bbox-labeler/internal/server"
	"github.com/menta2k/bbox-labeler/internal/storage"
	"github.com/menta2k/bbox-labeler/pkg/imageio"
)

// announceWindow suppresses a watcher event for an image the upload
// handler already announced
const announceWindow = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the gallery, the labeler and the label API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().String("uploads", "", "uploads directory (overrides uploads.dir)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if dir, _ := cmd.Flags().GetString("uploads"); dir != "" {
		cfg.Uploads.Dir = dir
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, store, err := openGallery(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	registry, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("failed to load classes: %w", err)
	}

	hub := notify.NewHub(log.Named("ws"))
	notifier := notify.NewNotifier(hub, announceWindow, log.Named("notify"))

	srv, err := server.New(server.Deps{
		Config:   cfg,
		Gallery:  g,
		Registry: registry,
		Hub:      hub,
		Notifier: notifier,
		Logger:   log.Named("http"),
		Version:  labeler.Version,
	})
	if err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return srv.Run(ctx) })
	group.Go(func() error { return hub.Run(ctx) })
	if cfg.Watch.Enabled {
		watcher := notify.NewWatcher(g.Dir(), g.Accepts, func(name string) {
			path, err := g.Path(name)
			if err != nil {
				return
			}
			notifier.NewImage(name, gallery.Metadata(path))
		}, log.Named("watch"))
		group.Go(func() error { return watcher.Run(ctx) })
	}

	log.Info("labeler ready",
		zap.String("addr", cfg.Server.Addr),
		zap.String("uploads", g.Dir()),
		zap.String("storage", cfg.Storage.Type))
	return group.Wait()
}

// openGallery opens the label store and the uploads directory
func openGallery(cfg *config.Config) (*gallery.Gallery, storage.LabelStorage, error) {
	store, err := storage.NewStorage(cfg.Storage, cfg.LabelsDir())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open label storage: %w", err)
	}
	if err := store.Health(context.Background()); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("label storage unavailable: %w", err)
	}

	proc := imageio.NewProcessorWithConfig(imageio.Config{Quality: cfg.Render.Quality, MinImageSize: 1})
	g, err := gallery.New(cfg.Uploads.Dir, store,
		gallery.WithExtensions(cfg.Uploads.AllowedExtensions),
		gallery.WithProcessor(proc))
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return g, store, nil
}
