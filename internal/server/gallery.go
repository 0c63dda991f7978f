package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/menta2k/bbox-labeler/internal/gallery"
	"github.com/menta2k/bbox-labeler/internal/logger"
	"github.com/menta2k/bbox-labeler/internal/storage"
	"github.com/menta2k/bbox-labeler/pkg/dataset"
	"github.com/menta2k/bbox-labeler/pkg/types"
)

type receiveResponse struct {
	Message  string         `json:"message"`
	Metadata types.Metadata `json:"metadata"`
}

type deleteRequest struct {
	Filename string `json:"filename"`
}

type deleteResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Removed gallery.Removed `json:"removed"`
}

func (s *Server) listImages(w http.ResponseWriter, r *http.Request, q gallery.Query) {
	entries, err := s.gallery.List(r.Context(), q)
	if err != nil {
		logger.Sugar(r.Context()).Errorw("failed to list images", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetImages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	s.listImages(w, r, gallery.Query{
		Filter:        query.Get("filter"),
		OnlyUnlabeled: gallery.IsTruthy(query.Get("only_labeled")),
	})
}

func (s *Server) handleUploadedImages(w http.ResponseWriter, r *http.Request) {
	s.listImages(w, r, gallery.Query{})
}

func (s *Server) handleReceive(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Uploads.MaxUploadBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "File too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No image part"})
		return
	}
	defer file.Close()

	name, md, err := s.gallery.Receive(r.Context(), header.Filename, file)
	switch {
	case errors.Is(err, gallery.ErrNoFile), errors.Is(err, gallery.ErrInvalidType):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	case err != nil:
		logger.Sugar(r.Context()).Errorw("failed to store upload", "filename", header.Filename, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	s.notifier.NewImage(name, md)
	writeJSON(w, http.StatusOK, receiveResponse{Message: "Image received", Metadata: md})
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil || req.Filename == "" {
		writeJSON(w, http.StatusBadRequest, deleteResponse{Status: "error", Message: "filename missing"})
		return
	}

	res, err := s.gallery.Delete(r.Context(), req.Filename)
	switch {
	case errors.Is(err, storage.ErrInvalidName):
		writeJSON(w, http.StatusBadRequest, deleteResponse{Status: "error", Message: "invalid filename"})
		return
	case err != nil:
		logger.Sugar(r.Context()).Errorw("failed to delete image", "filename", req.Filename, "error", err)
		writeJSON(w, http.StatusInternalServerError, deleteResponse{Status: "error", Message: err.Error(), Removed: res.Removed})
		return
	}

	if res.Removed.Image || res.Removed.Labels {
		s.notifier.ImageDeleted(req.Filename)
	}
	writeJSON(w, http.StatusOK, deleteResponse{Status: res.Status, Removed: res.Removed})
}

func (s *Server) handleDownloadDataset(w http.ResponseWriter, r *http.Request) {
	items, err := s.gallery.Items(r.Context(), false)
	if err != nil {
		logger.Sugar(r.Context()).Errorw("failed to collect dataset", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.sendZip(w, r, items)
}

func (s *Server) handleDownloadDatasetRange(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	start, end, err := dataset.ParseDateRange(query.Get("from"), query.Get("to"), s.gallery.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := s.gallery.Items(r.Context(), false)
	if err != nil {
		logger.Sugar(r.Context()).Errorw("failed to collect dataset", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.sendZip(w, r, dataset.FilterRange(items, start, end))
}

// sendZip builds the archive in memory so a failure can still be reported
// as a JSON error
func (s *Server) sendZip(w http.ResponseWriter, r *http.Request, items []dataset.Item) {
	var buf bytes.Buffer
	if err := dataset.WriteZip(&buf, items, s.registry); err != nil {
		logger.Sugar(r.Context()).Errorw("failed to build dataset archive", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dataset.ArchiveName(s.cfg.Dataset.Name)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		logger.Sugar(r.Context()).Warnw("failed to send dataset archive", "error", err)
	}
}
