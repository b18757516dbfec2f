// Package playlist provides a client for the playlist backend's HTTP API.
package playlist

import (
	"errors"
	"fmt"
	"net/http"
)

// Playlist is a remote playlist tracked by the backend.
type Playlist struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	URL            string `json:"url"`
	Disabled       bool   `json:"disabled"`
	DownloadStatus string `json:"download_status"`
	TrackCount     int    `json:"track_count"`
}

// Download statuses reported by the backend.
const (
	StatusReady       = "ready"
	StatusQueued      = "queued"
	StatusDownloading = "downloading"
)

// ErrMalformedResponse is returned when the backend body is not valid JSON.
var ErrMalformedResponse = errors.New("malformed response")

// RejectionError is an application-level refusal reported by the backend.
// Message is the payload's error text and may be empty.
type RejectionError struct {
	StatusCode int
	Message    string
}

func (e *RejectionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("backend: %s (status %d)", http.StatusText(e.StatusCode), e.StatusCode)
}
