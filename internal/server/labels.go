package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/menta2k/bbox-labeler/internal/logger"
	"github.com/menta2k/bbox-labeler/internal/storage"
	"github.com/menta2k/bbox-labeler/pkg/geometry"
	"github.com/menta2k/bbox-labeler/pkg/types"
)

const maxLabelsBody = 4 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.StatusResponse{Status: "error", Message: msg})
}

func (s *Server) handleGetLabels(w http.ResponseWriter, r *http.Request) {
	image := r.URL.Query().Get("image")
	if image == "" {
		writeError(w, http.StatusBadRequest, "Missing image parameter")
		return
	}

	boxes, err := s.store.Load(r.Context(), image)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		boxes = nil
	case errors.Is(err, storage.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "Invalid image name")
		return
	case err != nil:
		logger.Sugar(r.Context()).Errorw("failed to load labels", "image", image, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, types.GetLabelsResponse{
		Status: "success",
		Labels: types.LabelsFromBoxes(boxes),
	})
}

// validateLabels checks every label and pulls it inside the unit square
func validateLabels(labels []types.Label) ([]types.Box, error) {
	boxes := types.BoxesFromLabels(labels)
	for i, b := range boxes {
		if !b.Valid() {
			return nil, fmt.Errorf("invalid label at index %d", i)
		}
		boxes[i] = geometry.ClampBox(b)
	}
	return boxes, nil
}

func (s *Server) handleSaveLabels(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLabelsBody)
	var req types.SaveLabelsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := storage.ValidateName(req.Image); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid image name")
		return
	}
	boxes, err := validateLabels(req.Labels)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.Save(r.Context(), req.Image, boxes); err != nil {
		logger.Sugar(r.Context()).Errorw("failed to save labels", "image", req.Image, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.notifier.LabelsSaved(req.Image, len(boxes))
	writeJSON(w, http.StatusOK, types.StatusResponse{
		Status:  "success",
		Message: fmt.Sprintf("Saved %d labels for %s", len(boxes), req.Image),
	})
}
