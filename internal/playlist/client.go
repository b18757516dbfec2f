package playlist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client communicates with the playlist backend.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient creates a client for the backend at baseURL.
// Requests carry no timeout of their own; callers bound them with ctx.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Create asks the backend to import the playlist named by urlOrID.
//
// On a 2xx status the raw JSON body is returned. A non-2xx status, or a 2xx
// JSON object carrying an "error" key, yields a *RejectionError. A body that
// is not JSON yields ErrMalformedResponse whatever the status; any other
// error is a transport failure.
func (c *Client) Create(ctx context.Context, urlOrID string) (json.RawMessage, error) {
	status, body, err := c.send(ctx, http.MethodPost, "/api/playlists", createRequest{URLOrID: urlOrID})
	if err != nil {
		return nil, fmt.Errorf("create playlist: %w", err)
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("create playlist: %w", ErrMalformedResponse)
	}

	msg, hasErr := errorField(body)
	if !success(status) || hasErr {
		return nil, fmt.Errorf("create playlist: %w", &RejectionError{StatusCode: status, Message: msg})
	}

	return json.RawMessage(body), nil
}

// List returns every playlist known to the backend.
func (c *Client) List(ctx context.Context) ([]Playlist, error) {
	var out []Playlist
	if err := c.doJSON(ctx, http.MethodGet, "/api/playlists", nil, &out); err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	return out, nil
}

// Sync queues the given playlists for download. No ids means all playlists.
// Disabled playlists are skipped by the backend.
func (c *Client) Sync(ctx context.Context, ids []int) ([]Playlist, error) {
	var out []Playlist
	if err := c.doJSON(ctx, http.MethodPost, "/api/playlists/sync", idsRequest{IDs: nonNil(ids)}, &out); err != nil {
		return nil, fmt.Errorf("sync playlists: %w", err)
	}
	return out, nil
}

// Delete removes the given playlists and returns the remaining ones.
func (c *Client) Delete(ctx context.Context, ids []int) ([]Playlist, error) {
	var out []Playlist
	if err := c.doJSON(ctx, http.MethodDelete, "/api/playlists", idsRequest{IDs: nonNil(ids)}, &out); err != nil {
		return nil, fmt.Errorf("delete playlists: %w", err)
	}
	return out, nil
}

// Toggle sets the disabled flag of a playlist.
func (c *Client) Toggle(ctx context.Context, id int, disabled bool) (Playlist, error) {
	var out Playlist
	req := toggleRequest{ID: id, Disabled: disabled}
	if err := c.doJSON(ctx, http.MethodPost, "/api/playlists/toggle", req, &out); err != nil {
		return Playlist{}, fmt.Errorf("toggle playlist %d: %w", id, err)
	}
	return out, nil
}

// CancelDownload stops a running download and marks the playlist ready.
func (c *Client) CancelDownload(ctx context.Context, id int) (Playlist, error) {
	var out Playlist
	path := "/api/download/" + strconv.Itoa(id) + "/cancel"
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, &out); err != nil {
		return Playlist{}, fmt.Errorf("cancel download %d: %w", id, err)
	}
	return out, nil
}

// doJSON sends in (if non-nil) and decodes a 2xx body into out.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	status, body, err := c.send(ctx, method, path, in)
	if err != nil {
		return err
	}

	if !success(status) {
		msg, _ := errorField(body)
		return &RejectionError{StatusCode: status, Message: msg}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return nil
}

func (c *Client) send(ctx context.Context, method, path string, in any) (int, []byte, error) {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("backend request failed",
			zap.String("request_id", reqID),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return 0, nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}

	c.log.Debug("backend request",
		zap.String("request_id", reqID),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return resp.StatusCode, body, nil
}

func success(status int) bool {
	return status >= 200 && status < 300
}

// errorField reports whether body is a JSON object with an "error" key and
// returns its text when it is a string.
func errorField(body []byte) (string, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", false
	}

	raw, ok := obj["error"]
	if !ok || string(raw) == "null" {
		return "", false
	}

	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", true
	}
	return msg, true
}

func nonNil(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}

// json wire types

type createRequest struct {
	URLOrID string `json:"url_or_id"`
}

type idsRequest struct {
	IDs []int `json:"playlist_ids"`
}

type toggleRequest struct {
	ID       int  `json:"playlist_id"`
	Disabled bool `json:"disabled"`
}
