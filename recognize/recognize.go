// Package recognize identifies the music playing in an audio sample by
// submitting it to an external recognition service.
package recognize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoMatch means the service answered but could not identify the sample.
var ErrNoMatch = errors.New("no track recognized")

// Track is an identified piece of music.
type Track struct {
	Title  string
	Artist string
}

// Query renders the track as a search query, "Artist Title".
func (t Track) Query() string {
	return strings.TrimSpace(t.Artist + " " + t.Title)
}

func (t Track) String() string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}

// Recognizer identifies the track in an audio file.
type Recognizer interface {
	Recognize(ctx context.Context, samplePath string) (Track, error)
}

// HTTPRecognizer posts the sample to an audd.io-compatible endpoint.
type HTTPRecognizer struct {
	// URL of the recognition endpoint.
	URL string
	// Token is the API token, sent as the api_token form field.
	Token string
	// Client defaults to a 30s-timeout client.
	Client *http.Client
}

type apiResponse struct {
	Status string `json:"status"`
	Result *struct {
		Title  string `json:"title"`
		Artist string `json:"artist"`
	} `json:"result"`
	Error *struct {
		Message string `json:"error_message"`
	} `json:"error"`
}

func (r *HTTPRecognizer) client() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (r *HTTPRecognizer) Recognize(ctx context.Context, samplePath string) (Track, error) {
	f, err := os.Open(samplePath)
	if err != nil {
		return Track{}, err
	}
	defer f.Close()

	var body strings.Builder
	w := multipart.NewWriter(&body)
	if r.Token != "" {
		if err := w.WriteField("api_token", r.Token); err != nil {
			return Track{}, err
		}
	}
	part, err := w.CreateFormFile("file", filepath.Base(samplePath))
	if err != nil {
		return Track{}, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return Track{}, err
	}
	if err := w.Close(); err != nil {
		return Track{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, strings.NewReader(body.String()))
	if err != nil {
		return Track{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := r.client().Do(req)
	if err != nil {
		return Track{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Track{}, fmt.Errorf("recognition service returned %s", resp.Status)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Track{}, fmt.Errorf("failed to decode recognition response: %w", err)
	}
	if parsed.Error != nil {
		return Track{}, fmt.Errorf("recognition service error: %s", parsed.Error.Message)
	}
	// A null result with status success is the service's "heard it, don't
	// know it" answer.
	if parsed.Result == nil || parsed.Result.Title == "" {
		return Track{}, ErrNoMatch
	}
	return Track{Title: parsed.Result.Title, Artist: parsed.Result.Artist}, nil
}
