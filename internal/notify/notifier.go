package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/bbox-labeler/pkg/types"
)

// NewImageEvent is the data of a new_image message
type NewImageEvent struct {
	Filename string         `json:"filename"`
	Metadata types.Metadata `json:"metadata"`
}

// ImageDeletedEvent is the data of an image_deleted message
type ImageDeletedEvent struct {
	Filename string `json:"filename"`
}

// LabelsSavedEvent is the data of a labels_saved message
type LabelsSavedEvent struct {
	Image string `json:"image"`
	Count int    `json:"count"`
}

// Notifier publishes gallery events. An image announced by an upload and
// then seen by the directory watcher is announced once.
type Notifier struct {
	out    Broadcaster
	logger *zap.Logger
	window time.Duration
	now    func() time.Time

	mu     sync.Mutex
	recent map[string]time.Time
}

// NewNotifier creates a notifier that suppresses repeats within window
func NewNotifier(out Broadcaster, window time.Duration, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		out:    out,
		logger: logger,
		window: window,
		now:    time.Now,
		recent: make(map[string]time.Time),
	}
}

// NewImage announces an image unless it was announced within the window
func (n *Notifier) NewImage(filename string, md types.Metadata) {
	n.mu.Lock()
	now := n.now()
	for name, at := range n.recent {
		if now.Sub(at) > n.window {
			delete(n.recent, name)
		}
	}
	if _, seen := n.recent[filename]; seen {
		n.mu.Unlock()
		return
	}
	n.recent[filename] = now
	n.mu.Unlock()

	n.send(TypeNewImage, NewImageEvent{Filename: filename, Metadata: md})
}

// ImageDeleted announces a deletion
func (n *Notifier) ImageDeleted(filename string) {
	n.mu.Lock()
	delete(n.recent, filename)
	n.mu.Unlock()
	n.send(TypeImageDeleted, ImageDeletedEvent{Filename: filename})
}

// LabelsSaved announces a save
func (n *Notifier) LabelsSaved(image string, count int) {
	n.send(TypeLabelsSaved, LabelsSavedEvent{Image: image, Count: count})
}

func (n *Notifier) send(msgType string, data interface{}) {
	if err := n.out.Broadcast(msgType, data); err != nil {
		n.logger.Warn("broadcast failed", zap.String("type", msgType), zap.Error(err))
	}
}
