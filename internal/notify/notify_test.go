package notify

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/bbox-labeler/pkg/types"
)

type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) Broadcast(msgType string, data interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, Message{Type: msgType, Data: data})
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.Type
	}
	return out
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Broadcast(TypeNewImage, NewImageEvent{Filename: "a.jpg"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Type string `json:"type"`
		Data struct {
			Filename string                 `json:"filename"`
			Metadata map[string]interface{} `json:"metadata"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "new_image", got.Type)
	assert.Equal(t, "a.jpg", got.Data.Filename)
	assert.Contains(t, got.Data.Metadata, "temperature")
	assert.Nil(t, got.Data.Metadata["temperature"])
}

func TestHubDropsClosedClients(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubRunClosesOnCancel(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	assert.False(t, hub.register(&client{id: "late", send: make(chan []byte)}))
}

func TestNotifierSuppressesRepeats(t *testing.T) {
	rec := &recorder{}
	n := NewNotifier(rec, time.Minute, nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return now }

	n.NewImage("a.jpg", types.Metadata{})
	n.NewImage("a.jpg", types.Metadata{})
	n.NewImage("b.jpg", types.Metadata{})
	now = now.Add(2 * time.Minute)
	n.NewImage("a.jpg", types.Metadata{})
	n.ImageDeleted("a.jpg")
	n.NewImage("a.jpg", types.Metadata{})
	n.LabelsSaved("b.jpg", 3)

	assert.Equal(t, []string{
		TypeNewImage, TypeNewImage, TypeNewImage, TypeImageDeleted, TypeNewImage, TypeLabelsSaved,
	}, rec.types())
	assert.Equal(t, LabelsSavedEvent{Image: "b.jpg", Count: 3}, rec.msgs[5].Data)
}

func TestWatcherReportsNewImages(t *testing.T) {
	dir := t.TempDir()
	var (
		mu   sync.Mutex
		seen []string
	)
	w := NewWatcher(dir, func(name string) bool { return strings.HasSuffix(name, ".jpg") }, func(name string) {
		mu.Lock()
		seen = append(seen, name)
		mu.Unlock()
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".upload-1"), nil, 0644))
	require.NoError(t, os.Rename(filepath.Join(dir, ".upload-1"), filepath.Join(dir, "cam.jpg")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && seen[0] == "cam.jpg"
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherMissingDir(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "missing"), nil, func(string) {}, nil)
	assert.Error(t, w.Run(context.Background()))
}
