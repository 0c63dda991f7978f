// Package server exposes the labeler over HTTP: the gallery and labeler
// pages, the label persistence endpoints, dataset downloads and the
// websocket push channel.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/bbox-labeler/internal/config"
	"github.com/menta2k/bbox-labeler/internal/gallery"
	"github.com/menta2k/bbox-labeler/internal/notify"
	"github.com/menta2k/bbox-labeler/internal/storage"
	"github.com/menta2k/bbox-labeler/internal/utils"
	"github.com/menta2k/bbox-labeler/pkg/classes"
	"github.com/menta2k/bbox-labeler/pkg/imageio"
)

//go:generate sh -c "mkdir -p ../../static && cp \"$(go env GOROOT)/lib/wasm/wasm_exec.js\" ../../static/"
//go:generate sh -c "GOOS=js GOARCH=wasm go build -o ../../static/labeler.wasm ../../cmd/labeler-wasm"

//go:embed templates/*
var templates embed.FS

// wasmExec is the Go runtime shim the labeler page loads before the module
const wasmExec = "wasm_exec.js"

// Deps are the collaborators a Server is built from. Hub and Notifier are
// created when nil.
type Deps struct {
	Config   *config.Config
	Gallery  *gallery.Gallery
	Registry *classes.Registry
	Hub      *notify.Hub
	Notifier *notify.Notifier
	Logger   *zap.Logger
	Version  string
}

// Server serves the labeler HTTP API
type Server struct {
	cfg      *config.Config
	gallery  *gallery.Gallery
	store    storage.LabelStorage
	registry *classes.Registry
	proc     *imageio.Processor
	hub      *notify.Hub
	notifier *notify.Notifier
	logger   *zap.Logger
	version  string
	pages    *template.Template
}

// New creates a server
func New(deps Deps) (*Server, error) {
	if deps.Config == nil || deps.Gallery == nil {
		return nil, errors.New("server needs a config and a gallery")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Registry == nil {
		deps.Registry = classes.Default()
	}
	if deps.Hub == nil {
		deps.Hub = notify.NewHub(deps.Logger)
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewNotifier(deps.Hub, time.Minute, deps.Logger)
	}

	pages, err := template.ParseFS(templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &Server{
		cfg:      deps.Config,
		gallery:  deps.Gallery,
		store:    deps.Gallery.Store(),
		registry: deps.Registry,
		proc: imageio.NewProcessorWithConfig(imageio.Config{
			Quality:      deps.Config.Render.Quality,
			MinImageSize: 1,
		}),
		hub:      deps.Hub,
		notifier: deps.Notifier,
		logger:   deps.Logger,
		version:  deps.Version,
		pages:    pages,
	}, nil
}

// Hub returns the websocket hub
func (s *Server) Hub() *notify.Hub { return s.hub }

// Notifier returns the event notifier
func (s *Server) Notifier() *notify.Notifier { return s.notifier }

// Handler returns the routed handler wrapped in request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleGallery)
	mux.HandleFunc("GET /gallery", s.handleGallery)
	mux.HandleFunc("GET /label", s.handleLabel)

	mux.HandleFunc("GET /get_labels", s.handleGetLabels)
	mux.HandleFunc("POST /save_labels", s.handleSaveLabels)

	mux.HandleFunc("GET /get-images", s.handleGetImages)
	mux.HandleFunc("GET /uploaded_images", s.handleUploadedImages)
	mux.HandleFunc("POST /receive", s.handleReceive)
	mux.HandleFunc("POST /delete-image", s.handleDeleteImage)
	mux.HandleFunc("GET /download-dataset", s.handleDownloadDataset)
	mux.HandleFunc("GET /download-dataset-range", s.handleDownloadDatasetRange)

	mux.HandleFunc("GET /render", s.handleRender)
	mux.HandleFunc("GET /thumb", s.handleThumb)
	mux.HandleFunc("GET /classes", s.handleClasses)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /ws", s.hub)

	mux.Handle("GET /static/uploads/", http.StripPrefix("/static/uploads/", http.FileServer(http.Dir(s.gallery.Dir()))))
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.Server.StaticDir))))

	return s.logRequests(mux)
}

// MissingAssets lists the browser files the labeler page needs that are
// not in the static directory
func (s *Server) MissingAssets() []string {
	var missing []string
	for _, name := range []string{wasmExec, path.Base(s.cfg.Server.WasmPath)} {
		p := filepath.Join(s.cfg.Server.StaticDir, name)
		if !utils.FileExists(p) {
			missing = append(missing, p)
		}
	}
	return missing
}

// Run serves on the configured address until ctx is done, then shuts down
// gracefully
func (s *Server) Run(ctx context.Context) error {
	for _, p := range s.MissingAssets() {
		s.logger.Warn("labeler page asset missing, run go generate ./internal/server", zap.String("path", p))
	}

	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("labeler server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down labeler server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errCh
}
