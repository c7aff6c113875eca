// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/musicshare/server/internal/shared"
	"golang.org/x/time/rate"
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyTrack represents a Spotify track. Simplified track objects (album
// track listings) omit Album and Popularity.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int             `json:"duration_ms"`
	Explicit     bool            `json:"explicit"`
	Popularity   int             `json:"popularity,omitempty"`
	ExternalURLs externalURLs    `json:"external_urls"`
	URI          string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Genres       []string       `json:"genres,omitempty"`
	Images       []SpotifyImage `json:"images,omitempty"`
	ExternalURLs externalURLs   `json:"external_urls"`
	URI          string         `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists,omitempty"`
	ReleaseDate  string          `json:"release_date,omitempty"`
	TotalTracks  int             `json:"total_tracks,omitempty"`
	Images       []SpotifyImage  `json:"images,omitempty"`
	ExternalURLs externalURLs    `json:"external_urls"`
	URI          string          `json:"uri"`
}

// SpotifyPaginated represents the paging wrapper Spotify puts around lists.
type SpotifyPaginated[T any] struct {
	Items    []T     `json:"items"`
	Total    int     `json:"total"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// UpstreamError reports a non-2xx Spotify API response on a typed call.
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("spotify API error: status %d", e.StatusCode)
}

func (e *UpstreamError) Unwrap() error {
	return shared.ErrAPIRequest
}

// Client makes authenticated requests to the Spotify Web API. It holds no
// credentials; callers pass the bearer token resolved for each request.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOpts contains configuration options for creating a Client.
type ClientOpts struct {
	BaseURL    string        // defaults to DefaultBaseURL
	HTTPClient *http.Client  // should carry a timeout; defaults to http.DefaultClient
	Limiter    *rate.Limiter // defaults to 10 req/s with a burst of 5
}

// NewClient creates a Spotify API client.
func NewClient(opts ClientOpts) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Limit(10), 5)
	}

	return &Client{
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		limiter:    opts.Limiter,
	}
}

// Get performs a rate-limited, authenticated GET and returns the raw response
// whatever its status code. Transport failures are the only error case.
func (c *Client) Get(ctx context.Context, token, path string) (*APIResponse, error) {
	if token == "" {
		return nil, shared.ErrNotAuthenticated
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// getJSON performs a typed GET, decoding 2xx bodies into result and turning
// non-2xx responses into an [*UpstreamError].
func (c *Client) getJSON(ctx context.Context, token, path string, result any) error {
	resp, err := c.Get(ctx, token, path)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{StatusCode: resp.StatusCode, Body: resp.Body}
	}

	if result != nil {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Raw proxy methods

// Search forwards a catalog search verbatim. kind must already be validated
// by the caller.
func (c *Client) Search(ctx context.Context, token, query, kind, limit string) (*APIResponse, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("type", kind)
	if limit != "" {
		q.Set("limit", limit)
	}
	return c.Get(ctx, token, "/search?"+q.Encode())
}

// Me retrieves the current user's profile as a raw response.
func (c *Client) Me(ctx context.Context, token string) (*APIResponse, error) {
	return c.Get(ctx, token, "/me")
}

// TopItems retrieves the user's top tracks or artists as a raw response,
// passing the paging parameters through untouched.
func (c *Client) TopItems(ctx context.Context, token, kind, timeRange, limit, offset string) (*APIResponse, error) {
	q := url.Values{}
	if timeRange != "" {
		q.Set("time_range", timeRange)
	}
	if limit != "" {
		q.Set("limit", limit)
	}
	if offset != "" {
		q.Set("offset", offset)
	}

	path := "/me/top/" + url.PathEscape(kind)
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}
	return c.Get(ctx, token, path)
}

// Typed catalog methods

// TopArtists implements [Catalog].
func (c *Client) TopArtists(ctx context.Context, token, timeRange string, limit int) ([]SpotifyArtist, error) {
	q := url.Values{}
	q.Set("time_range", timeRange)
	q.Set("limit", strconv.Itoa(limit))

	var page SpotifyPaginated[SpotifyArtist]
	if err := c.getJSON(ctx, token, "/me/top/artists?"+q.Encode(), &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// SearchTracks implements [Catalog].
func (c *Client) SearchTracks(ctx context.Context, token, query string, limit int) ([]SpotifyTrack, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("type", "track")
	q.Set("limit", strconv.Itoa(limit))

	var result struct {
		Tracks SpotifyPaginated[SpotifyTrack] `json:"tracks"`
	}
	if err := c.getJSON(ctx, token, "/search?"+q.Encode(), &result); err != nil {
		return nil, err
	}
	return result.Tracks.Items, nil
}

// ArtistAlbums implements [Catalog].
func (c *Client) ArtistAlbums(ctx context.Context, token, artistID string, limit int) ([]SpotifyAlbum, error) {
	q := url.Values{}
	q.Set("include_groups", "album")
	q.Set("limit", strconv.Itoa(limit))

	path := fmt.Sprintf("/artists/%s/albums?%s", url.PathEscape(artistID), q.Encode())

	var page SpotifyPaginated[SpotifyAlbum]
	if err := c.getJSON(ctx, token, path, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// AlbumTracks implements [Catalog].
func (c *Client) AlbumTracks(ctx context.Context, token, albumID string, limit int) ([]SpotifyTrack, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	path := fmt.Sprintf("/albums/%s/tracks?%s", url.PathEscape(albumID), q.Encode())

	var page SpotifyPaginated[SpotifyTrack]
	if err := c.getJSON(ctx, token, path, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}
