package editor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/menta2k/bbox-labeler/pkg/types"
)

// ErrNoImage is returned when saving without a loaded image
var ErrNoImage = errors.New("no image loaded")

// LabelClient is the persistence boundary the session talks to
type LabelClient interface {
	GetLabels(ctx context.Context, image string) ([]types.Box, error)
	SaveLabels(ctx context.Context, image string, boxes []types.Box) (string, error)
}

// SaveRequest is a snapshot of the store taken when a save starts
type SaveRequest struct {
	Image string
	Boxes []types.Box
}

// Session binds an Engine to the image being edited. Completions of load and
// save requests carry the image name they were started for and are dropped
// when a different image is active by the time they arrive.
type Session struct {
	engine *Engine
	logger *zap.Logger

	image    string
	imageURL string
	ready    bool
}

// NewSession creates a session around engine
func NewSession(engine *Engine, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{engine: engine, logger: logger}
}

// Engine returns the interaction engine
func (s *Session) Engine() *Engine { return s.engine }

// Image returns the active image name, empty if none
func (s *Session) Image() string { return s.image }

// ImageURL returns the URL the active image is fetched from
func (s *Session) ImageURL() string { return s.imageURL }

// Ready reports whether the active image finished decoding
func (s *Session) Ready() bool { return s.ready }

// Open makes image the active one and clears the store. An empty name leaves
// the session without an image.
func (s *Session) Open(image, imageURL string) Effect {
	s.image = image
	s.imageURL = imageURL
	s.ready = false
	s.engine.Load(nil)
	if image == "" {
		return s.engine.say(Effect{Redraw: true}, StatusNoImageArg)
	}
	return Effect{Redraw: true}
}

// ImageLoaded records the decoded image size as the canvas size
func (s *Session) ImageLoaded(image string, width, height float64) (Effect, bool) {
	if !s.current(image, "image") {
		return Effect{}, false
	}
	s.ready = true
	s.engine.SetCanvasSize(width, height)
	return Effect{Redraw: true}, true
}

// ImageFailed reports an image that could not be fetched or decoded
func (s *Session) ImageFailed(image string) (Effect, bool) {
	if !s.current(image, "image") {
		return Effect{}, false
	}
	s.ready = false
	return s.engine.say(Effect{Redraw: true}, fmt.Sprintf("Cannot load image: %s", s.imageURL)), true
}

// LabelsLoaded installs fetched labels. A fetch error is logged and treated
// as an image without labels.
func (s *Session) LabelsLoaded(image string, boxes []types.Box, err error) (Effect, bool) {
	if !s.current(image, "labels") {
		return Effect{}, false
	}
	if err != nil {
		s.logger.Warn("error while fetching labels", zap.String("image", image), zap.Error(err))
		boxes = nil
	}
	s.engine.Load(boxes)
	status := fmt.Sprintf("Loaded %s (%d labels)", image, len(boxes))
	return s.engine.say(Effect{Redraw: true}, status), true
}

// BeginSave snapshots the store for saving
func (s *Session) BeginSave() (SaveRequest, error) {
	if s.image == "" {
		s.engine.say(Effect{}, StatusNoImageSave)
		return SaveRequest{}, ErrNoImage
	}
	return SaveRequest{Image: s.image, Boxes: s.engine.Store().All()}, nil
}

// SaveDone reports the outcome of a save. The store is never touched so a
// failed save can be retried.
func (s *Session) SaveDone(image, message string, err error) (Effect, bool) {
	if !s.current(image, "save") {
		return Effect{}, false
	}
	if err != nil {
		return s.engine.say(Effect{}, "Save failed: "+err.Error()), true
	}
	if message == "" {
		message = StatusSaved
	}
	return s.engine.say(Effect{}, message), true
}

// Load fetches labels for the active image synchronously
func (s *Session) Load(ctx context.Context, client LabelClient) Effect {
	image := s.image
	boxes, err := client.GetLabels(ctx, image)
	eff, _ := s.LabelsLoaded(image, boxes, err)
	return eff
}

// Save persists the store synchronously
func (s *Session) Save(ctx context.Context, client LabelClient) (Effect, error) {
	req, err := s.BeginSave()
	if err != nil {
		return Effect{Status: s.engine.Status()}, err
	}
	msg, err := client.SaveLabels(ctx, req.Image, req.Boxes)
	eff, _ := s.SaveDone(req.Image, msg, err)
	return eff, err
}

func (s *Session) current(image, what string) bool {
	if image == s.image && image != "" {
		return true
	}
	s.logger.Debug("discarding stale response",
		zap.String("kind", what),
		zap.String("for", image),
		zap.String("active", s.image))
	return false
}
