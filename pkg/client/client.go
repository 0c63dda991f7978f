package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/menta2k/bbox-labeler/pkg/types"
)

// Client talks to the labeler server's JSON endpoints
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for serverURL, e.g. http://localhost:5000
func NewClient(serverURL string) (*Client, error) {
	if serverURL == "" {
		serverURL = "http://localhost:5000"
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", u.Scheme)
	}
	return &Client{
		baseURL: strings.TrimSuffix(serverURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// GetLabels fetches the labels of image. is_tp defaults to true when absent.
func (c *Client) GetLabels(ctx context.Context, image string) ([]types.Box, error) {
	q := url.Values{"image": {image}}
	body, err := c.do(ctx, http.MethodGet, "/get_labels?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var resp types.GetLabelsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("server error: %s", messageOr(resp.Message, "Unknown error"))
	}
	return types.BoxesFromLabels(resp.Labels), nil
}

// SaveLabels replaces the labels of image and returns the server message
func (c *Client) SaveLabels(ctx context.Context, image string, boxes []types.Box) (string, error) {
	payload := types.SaveLabelsRequest{Image: image, Labels: types.LabelsFromBoxes(boxes)}
	body, err := c.do(ctx, http.MethodPost, "/save_labels", payload)
	if err != nil {
		return "", err
	}
	var resp types.StatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Status != "success" {
		return "", errors.New(messageOr(resp.Message, "Unknown error"))
	}
	return resp.Message, nil
}

// ListImages returns the gallery listing
func (c *Client) ListImages(ctx context.Context, filter string, onlyUnlabeled bool) ([]types.ImageEntry, error) {
	q := url.Values{}
	if filter != "" {
		q.Set("filter", filter)
	}
	if onlyUnlabeled {
		q.Set("only_labeled", "true")
	}
	path := "/get-images"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var entries []types.ImageEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return entries, nil
}

// ImageURL returns the static URL of an uploaded image
func (c *Client) ImageURL(image string) string {
	return c.baseURL + "/static/uploads/" + url.PathEscape(image)
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return body, nil
}

func messageOr(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}
