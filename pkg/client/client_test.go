package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/bbox-labeler/pkg/types"
)

func TestNewClientRejectsBadScheme(t *testing.T) {
	_, err := NewClient("ftp://example.com")
	assert.ErrorContains(t, err, "unsupported URL scheme")

	c, err := NewClient("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000/static/uploads/a%20b.jpg", c.ImageURL("a b.jpg"))
}

func TestGetLabelsDefaultsTruePositive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get_labels", r.URL.Path)
		assert.Equal(t, "a b.jpg", r.URL.Query().Get("image"))
		w.Write([]byte(`{"status":"success","labels":[
			{"cls":0,"x_center":0.5,"y_center":0.5,"width":0.2,"height":0.2},
			{"cls":1,"x_center":0.1,"y_center":0.1,"width":0.1,"height":0.1,"is_tp":false},
			{"cls":2,"x_center":0.9,"y_center":0.9,"width":0.1,"height":0.1,"is_tp":true}]}`))
	}))
	defer srv.Close()
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	boxes, err := c.GetLabels(context.Background(), "a b.jpg")

	require.NoError(t, err)
	require.Len(t, boxes, 3)
	assert.True(t, boxes[0].IsTruePositive)
	assert.False(t, boxes[1].IsTruePositive)
	assert.True(t, boxes[2].IsTruePositive)
	assert.Equal(t, 1, boxes[1].ClassID)
}

func TestGetLabelsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("image") == "broken.jpg" {
			w.Write([]byte(`not json`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	c, _ := NewClient(srv.URL)

	_, err := c.GetLabels(context.Background(), "x.jpg")
	assert.EqualError(t, err, "HTTP 500")

	_, err = c.GetLabels(context.Background(), "broken.jpg")
	assert.ErrorContains(t, err, "failed to parse response")
}

func TestSaveEmptyLabels(t *testing.T) {
	var got map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/save_labels", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":"success","message":"Saved 0 labels for foo.jpg"}`))
	}))
	defer srv.Close()
	c, _ := NewClient(srv.URL)

	msg, err := c.SaveLabels(context.Background(), "foo.jpg", nil)

	require.NoError(t, err)
	assert.Equal(t, "Saved 0 labels for foo.jpg", msg)
	assert.JSONEq(t, `"foo.jpg"`, string(got["image"]))
	assert.JSONEq(t, `[]`, string(got["labels"]))
}

func TestSaveSendsExplicitFlag(t *testing.T) {
	var req types.SaveLabelsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()
	c, _ := NewClient(srv.URL)

	box := types.NewBox(0, 0.5, 0.5, 0.2, 0.2)
	box.IsTruePositive = false
	_, err := c.SaveLabels(context.Background(), "a.jpg", []types.Box{box})

	require.NoError(t, err)
	require.Len(t, req.Labels, 1)
	require.NotNil(t, req.Labels[0].IsTP)
	assert.False(t, *req.Labels[0].IsTP)
}

func TestSaveReportsServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","message":"disk full"}`))
	}))
	defer srv.Close()
	c, _ := NewClient(srv.URL)

	_, err := c.SaveLabels(context.Background(), "a.jpg", nil)

	assert.EqualError(t, err, "disk full")
}

func TestListImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bee", r.URL.Query().Get("filter"))
		assert.Equal(t, "true", r.URL.Query().Get("only_labeled"))
		w.Write([]byte(`[{"filename":"bee.jpg","upload_ts":1,"upload_time":"x","labels_count":2,"is_labeled":false,"metadata":{"user_comment":""}}]`))
	}))
	defer srv.Close()
	c, _ := NewClient(srv.URL)

	entries, err := c.ListImages(context.Background(), "bee", true)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bee.jpg", entries[0].Filename)
	assert.Equal(t, 2, entries[0].LabelsCount)
}
