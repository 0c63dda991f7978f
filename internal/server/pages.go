package server

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"net/http"
	"path"
	"strconv"

	"github.com/menta2k/bbox-labeler/internal/logger"
	"github.com/menta2k/bbox-labeler/internal/storage"
	"github.com/menta2k/bbox-labeler/pkg/classes"
	"github.com/menta2k/bbox-labeler/pkg/render"
)

const (
	minThumbSize = 16
	maxThumbSize = 1024
)

type pageData struct {
	Title       string
	Image       string
	DatasetName string
	Classes     []classes.Class
	WasmURL     string
	Version     string
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Message string `json:"message,omitempty"`
}

func (s *Server) page(w http.ResponseWriter, r *http.Request, name string, data pageData) {
	data.Version = s.version
	data.Classes = s.registry.All()
	data.DatasetName = s.cfg.Dataset.Name

	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		logger.Sugar(r.Context()).Errorw("failed to execute template", "template", name, "error", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, "gallery.html", pageData{Title: "Live Image Gallery"})
}

func (s *Server) handleLabel(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, "labeler.html", pageData{
		Title:   "Labeler",
		Image:   r.URL.Query().Get("image"),
		WasmURL: "/static/" + path.Base(s.cfg.Server.WasmPath),
	})
}

// loadImage resolves and decodes an uploaded image, writing the error reply
// when it fails
func (s *Server) loadImage(w http.ResponseWriter, r *http.Request) (string, image.Image, bool) {
	name := r.URL.Query().Get("image")
	if name == "" {
		writeError(w, http.StatusBadRequest, "Missing image parameter")
		return "", nil, false
	}
	p, err := s.gallery.Path(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid image name")
		return "", nil, false
	}
	img, err := s.proc.LoadImage(p)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Cannot load image: %s", name))
		return "", nil, false
	}
	return name, img, true
}

func (s *Server) sendImage(w http.ResponseWriter, r *http.Request, img image.Image, format string) {
	var buf bytes.Buffer
	if err := s.proc.Encode(&buf, img, format); err != nil {
		logger.Sugar(r.Context()).Errorw("failed to encode image", "format", format, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", contentType(format))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

func contentType(format string) string {
	switch format {
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	name, img, ok := s.loadImage(w, r)
	if !ok {
		return
	}

	boxes, err := s.store.Load(r.Context(), name)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		logger.Sugar(r.Context()).Errorw("failed to load labels", "image", name, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := render.Overlay(img, boxes, s.registry, render.Options{FillAlpha: s.cfg.Render.FillAlpha})
	if v := r.URL.Query().Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < minThumbSize {
			writeError(w, http.StatusBadRequest, "Invalid max")
			return
		}
		out = s.proc.FitWithin(out, n)
	}
	s.sendImage(w, r, out, s.cfg.Render.Format)
}

func (s *Server) handleThumb(w http.ResponseWriter, r *http.Request) {
	size := s.cfg.Render.ThumbSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid size")
			return
		}
		size = n
	}
	size = max(minThumbSize, min(size, maxThumbSize))

	_, img, ok := s.loadImage(w, r)
	if !ok {
		return
	}
	s.sendImage(w, r, s.proc.Thumbnail(img, size), "jpg")
}

func (s *Server) handleClasses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.All())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "error", Version: s.version, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: s.version})
}
