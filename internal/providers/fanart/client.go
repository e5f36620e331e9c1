package fanart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned when fanart.tv has no entry for the id.
var ErrNotFound = errors.New("fanart: not found")

// Image is one artwork entry.
type Image struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Lang  string `json:"lang"`
	Likes string `json:"likes"`
}

// LikeCount parses the likes field, which the API returns as a string.
func (i Image) LikeCount() int {
	n, _ := strconv.Atoi(i.Likes)
	return n
}

// Artwork is the subset of a movie or show response the provider uses.
type Artwork struct {
	Name string

	Posters     []Image
	Backgrounds []Image
}

type movieResponse struct {
	Name            string  `json:"name"`
	MoviePoster     []Image `json:"movieposter"`
	MovieBackground []Image `json:"moviebackground"`
}

type showResponse struct {
	Name           string  `json:"name"`
	TVPoster       []Image `json:"tvposter"`
	ShowBackground []Image `json:"showbackground"`
}

// Client talks to the fanart.tv v3 API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient creates a fanart.tv client.
func NewClient(apiKey, baseURL string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("fanart api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("fanart base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Movie fetches artwork for a movie by TMDB id.
func (c *Client) Movie(ctx context.Context, tmdbID string) (*Artwork, error) {
	var payload movieResponse
	if err := c.get(ctx, "/movies/", tmdbID, &payload); err != nil {
		return nil, err
	}
	return &Artwork{Name: payload.Name, Posters: payload.MoviePoster, Backgrounds: payload.MovieBackground}, nil
}

// Show fetches artwork for a series by TVDB id.
func (c *Client) Show(ctx context.Context, tvdbID string) (*Artwork, error) {
	var payload showResponse
	if err := c.get(ctx, "/tv/", tvdbID, &payload); err != nil {
		return nil, err
	}
	return &Artwork{Name: payload.Name, Posters: payload.TVPoster, Backgrounds: payload.ShowBackground}, nil
}

// Download opens an image URL. The caller closes the body.
func (c *Client) Download(ctx context.Context, imageURL string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download %s: %w", imageURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("download %s returned %d", imageURL, resp.StatusCode)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) get(ctx context.Context, prefix, id string, out any) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("id must not be empty")
	}
	endpoint, err := url.Parse(c.baseURL + prefix + url.PathEscape(id))
	if err != nil {
		return fmt.Errorf("parse fanart url: %w", err)
	}
	endpoint.RawQuery = url.Values{"api_key": {c.apiKey}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("fanart %s%s returned %d (latency=%v)", prefix, id, resp.StatusCode, latency)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode fanart response: %w", err)
	}
	return nil
}
