package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/bbox-labeler/internal/config"
	"github.com/menta2k/bbox-labeler/internal/gallery"
	"github.com/menta2k/bbox-labeler/internal/notify"
	"github.com/menta2k/bbox-labeler/internal/storage"
	"github.com/menta2k/bbox-labeler/pkg/types"
)

type recorder struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recorder) Broadcast(msgType string, data interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, notify.Message{Type: msgType, Data: data})
	return nil
}

func (r *recorder) last() notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return notify.Message{}
	}
	return r.msgs[len(r.msgs)-1]
}

type fixture struct {
	srv     *httptest.Server
	gallery *gallery.Gallery
	store   storage.LabelStorage
	events  *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Uploads.Dir = filepath.Join(root, "uploads")
	cfg.Server.StaticDir = filepath.Join(root, "static")
	require.NoError(t, os.MkdirAll(cfg.Server.StaticDir, 0755))

	store := storage.NewMemoryStorage()
	g, err := gallery.New(cfg.Uploads.Dir, store, gallery.WithLocation(time.UTC))
	require.NoError(t, err)

	events := &recorder{}
	s, err := New(Deps{
		Config:   cfg,
		Gallery:  g,
		Notifier: notify.NewNotifier(events, time.Minute, nil),
		Version:  "test",
	})
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, gallery: g, store: store, events: events}
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) postJSON(t *testing.T, path string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(f.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) writeImage(t *testing.T, name string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 40, G: 120, B: 200, A: 255})
		}
	}
	file, err := os.Create(filepath.Join(f.gallery.Dir(), name))
	require.NoError(t, err)
	require.NoError(t, png.Encode(file, img))
	require.NoError(t, file.Close())
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestGetLabels(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/get_labels")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var status types.StatusResponse
	decode(t, resp, &status)
	assert.Equal(t, "error", status.Status)

	resp = f.get(t, "/get_labels?image=unknown.jpg")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","labels":[]}`, string(body))
}

func TestSaveAndLoadLabels(t *testing.T) {
	f := newFixture(t)

	resp := f.postJSON(t, "/save_labels", `{"image":"a.jpg","labels":[
		{"cls":0,"x_center":0.5,"y_center":0.5,"width":0.2,"height":0.2},
		{"cls":0,"x_center":1.0,"y_center":0.5,"width":0.4,"height":0.2,"is_tp":false}
	]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status types.StatusResponse
	decode(t, resp, &status)
	assert.Equal(t, "success", status.Status)
	assert.Equal(t, "Saved 2 labels for a.jpg", status.Message)

	assert.Equal(t, notify.TypeLabelsSaved, f.events.last().Type)
	assert.Equal(t, notify.LabelsSavedEvent{Image: "a.jpg", Count: 2}, f.events.last().Data)

	resp = f.get(t, "/get_labels?image=a.jpg")
	var got types.GetLabelsResponse
	decode(t, resp, &got)
	require.Len(t, got.Labels, 2)
	boxes := types.BoxesFromLabels(got.Labels)
	assert.True(t, boxes[0].IsTruePositive)
	assert.False(t, boxes[1].IsTruePositive)
	assert.InDelta(t, 0.8, boxes[1].CenterX, 1e-9, "clamped inside the image")
}

func TestSaveLabelsRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"image":`},
		{"path in name", `{"image":"../a.jpg","labels":[]}`},
		{"missing name", `{"labels":[]}`},
		{"negative class", `{"image":"a.jpg","labels":[{"cls":-1,"x_center":0.5,"y_center":0.5,"width":0.1,"height":0.1}]}`},
		{"zero width", `{"image":"a.jpg","labels":[{"cls":0,"x_center":0.5,"y_center":0.5,"width":0,"height":0.1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.postJSON(t, "/save_labels", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var status types.StatusResponse
			decode(t, resp, &status)
			assert.Equal(t, "error", status.Status)
			assert.NotEmpty(t, status.Message)
		})
	}

	_, err := f.store.Load(context.Background(), "a.jpg")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetImages(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"2024-01-01T00-00-00+0000_cam.jpg", "2024-01-02T00-00-00+0000_cam.jpg", "other.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(f.gallery.Dir(), name), []byte("x"), 0644))
	}
	require.NoError(t, f.store.Save(context.Background(), "2024-01-02T00-00-00+0000_cam.jpg", nil))

	var entries []types.ImageEntry
	decode(t, f.get(t, "/uploaded_images"), &entries)
	require.Len(t, entries, 2)
	assert.Equal(t, "2024-01-02T00-00-00+0000_cam.jpg", entries[0].Filename)
	assert.True(t, entries[0].IsLabeled)
	assert.Equal(t, "2024-01-01 00:00:00", entries[1].UploadTime)

	entries = nil
	decode(t, f.get(t, "/get-images?only_labeled=yes"), &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "2024-01-01T00-00-00+0000_cam.jpg", entries[0].Filename)

	entries = nil
	decode(t, f.get(t, "/get-images?filter=01-02"), &entries)
	require.Len(t, entries, 1)
}

func upload(t *testing.T, f *fixture, field, filename string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(f.srv.URL+"/receive", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestReceive(t *testing.T) {
	f := newFixture(t)

	resp := upload(t, f, "image", "cam shot.jpg", []byte("jpeg-bytes"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		Message  string                 `json:"message"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	decode(t, resp, &got)
	assert.Equal(t, "Image received", got.Message)
	assert.Nil(t, got.Metadata["temperature"])

	data, err := os.ReadFile(filepath.Join(f.gallery.Dir(), "cam_shot.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
	assert.Equal(t, notify.TypeNewImage, f.events.last().Type)

	resp = upload(t, f, "image", "shot.png", []byte("png"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var failure map[string]string
	decode(t, resp, &failure)
	assert.Equal(t, "Invalid file type", failure["error"])

	resp = upload(t, f, "file", "shot.jpg", []byte("jpeg"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteImage(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.gallery.Dir(), "a.jpg"), []byte("x"), 0644))
	require.NoError(t, f.store.Save(context.Background(), "a.jpg", nil))

	resp := f.postJSON(t, "/delete-image", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.postJSON(t, "/delete-image", `{"filename":"a.jpg"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","removed":{"image":true,"labels":true}}`, string(body))
	assert.Equal(t, notify.TypeImageDeleted, f.events.last().Type)

	resp = f.postJSON(t, "/delete-image", `{"filename":"a.jpg"}`)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"not_found","removed":{"image":false,"labels":false}}`, string(body))
}

func readZip(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	files := map[string]string{}
	for _, zf := range zr.File {
		rc, err := zf.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		files[zf.Name] = string(content)
	}
	return files
}

func TestDownloadDataset(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.gallery.Dir(), "2024-05-01T08-00-00+0000_a.jpg"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(f.gallery.Dir(), "2024-06-01T08-00-00+0000_b.jpg"), []byte("b"), 0644))
	require.NoError(t, f.store.Save(context.Background(), "2024-05-01T08-00-00+0000_a.jpg",
		[]types.Box{types.NewBox(0, 0.5, 0.5, 0.25, 0.25)}))

	resp := f.get(t, "/download-dataset")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "antpi_dataset.zip")

	files := readZip(t, resp)
	assert.Equal(t, "a", files["uploads/2024-05-01T08-00-00+0000_a.jpg"])
	assert.Equal(t, "b", files["uploads/2024-06-01T08-00-00+0000_b.jpg"])
	assert.Equal(t, "0 0.500000 0.500000 0.250000 0.250000\n", files["labels/2024-05-01T08-00-00+0000_a.txt"])
	assert.NotContains(t, files, "labels/2024-06-01T08-00-00+0000_b.txt")

	resp = f.get(t, "/download-dataset-range?from=2024-05-01&to=2024-05-31")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	files = readZip(t, resp)
	assert.Contains(t, files, "uploads/2024-05-01T08-00-00+0000_a.jpg")
	assert.NotContains(t, files, "uploads/2024-06-01T08-00-00+0000_b.jpg")

	for _, q := range []string{"from=2024-05-31&to=2024-05-01", "from=yesterday&to=2024-05-01", ""} {
		resp = f.get(t, "/download-dataset-range?"+q)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestRenderAndThumb(t *testing.T) {
	f := newFixture(t)
	f.writeImage(t, "bee.png", 120, 80)
	require.NoError(t, f.store.Save(context.Background(), "bee.png", []types.Box{types.NewBox(0, 0.5, 0.5, 0.5, 0.5)}))

	resp := f.get(t, "/render?image=bee.png")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	img, _, err := image.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 120, 80), img.Bounds())
	r, g, b, _ := img.At(30, 40).RGBA()
	assert.False(t, r>>8 == 40 && g>>8 == 120 && b>>8 == 200, "box edge is drawn over the image")

	resp = f.get(t, "/render?image=bee.png&max=60")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	small, _, err := image.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 60, 40), small.Bounds())
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/render?image=bee.png&max=abc").StatusCode)

	resp = f.get(t, "/thumb?image=bee.png&size=32")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	thumb, _, err := image.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 32), thumb.Bounds())

	assert.Equal(t, http.StatusNotFound, f.get(t, "/render?image=missing.png").StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/thumb?image=bee.png&size=big").StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/render").StatusCode)
}

func TestStaticUploads(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.gallery.Dir(), "a.jpg"), []byte("bytes"), 0644))

	resp := f.get(t, "/static/uploads/a.jpg")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "bytes", string(data))
}

func TestPagesAndInfo(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Live Image Gallery")

	resp = f.get(t, "/label?image=bee.jpg")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "bee.jpg")
	assert.Contains(t, string(body), "labeler.wasm")
	assert.Contains(t, string(body), "Halyomorpha halys")

	var health map[string]string
	decode(t, f.get(t, "/healthz"), &health)
	assert.Equal(t, map[string]string{"status": "ok", "version": "test"}, health)

	var classList []map[string]interface{}
	decode(t, f.get(t, "/classes"), &classList)
	require.Len(t, classList, 1)
	assert.Equal(t, "Halyomorpha halys", classList[0]["label"])

	assert.Equal(t, http.StatusNotFound, f.get(t, "/nope").StatusCode)
}

func TestMissingAssets(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Server.StaticDir = filepath.Join(root, "static")
	cfg.Server.WasmPath = "build/labeler.wasm"
	require.NoError(t, os.MkdirAll(cfg.Server.StaticDir, 0755))
	g, err := gallery.New(filepath.Join(root, "uploads"), storage.NewMemoryStorage())
	require.NoError(t, err)
	s, err := New(Deps{Config: cfg, Gallery: g})
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(cfg.Server.StaticDir, "wasm_exec.js"),
		filepath.Join(cfg.Server.StaticDir, "labeler.wasm"),
	}, s.MissingAssets())

	require.NoError(t, os.WriteFile(filepath.Join(cfg.Server.StaticDir, "wasm_exec.js"), []byte("//"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Server.StaticDir, "labeler.wasm"), []byte{0}, 0644))
	assert.Empty(t, s.MissingAssets())
}
