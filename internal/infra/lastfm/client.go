// Package lastfm provides a client for the Last.fm API.
package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Client is a Last.fm API client. Ingestion uses it to look up track
// tags as a genre fallback when Spotify has none for the artist.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// Cache for track tags
	trackTagCache map[string][]Tag
	cacheMu       sync.RWMutex
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey string
}

// Tag represents a Last.fm tag.
type Tag struct {
	Name  string
	Count int // Tag count/frequency
}

// GetTopTagsResponse represents the response from track.getTopTags API.
type GetTopTagsResponse struct {
	TopTags struct {
		Tag []struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"tag"`
	} `json:"toptags"`
}

// LastFMError represents an error response from Last.fm API.
type LastFMError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}

	return &Client{
		apiKey:        cfg.APIKey,
		baseURL:       "https://ws.audioscrobbler.com/2.0/",
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		trackTagCache: make(map[string][]Tag),
	}, nil
}

// GetTopTags retrieves top tags for a track from Last.fm.
// Reference: https://www.last.fm/api/show/track.getTopTags
func (c *Client) GetTopTags(ctx context.Context, trackName, artistName string, limit int) ([]Tag, error) {
	if trackName == "" || artistName == "" {
		return nil, errors.New("track name and artist name are required")
	}

	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	// Check cache first
	cacheKey := fmt.Sprintf("tracktag:%s:%s", artistName, trackName)
	c.cacheMu.RLock()
	if tags, ok := c.trackTagCache[cacheKey]; ok {
		c.cacheMu.RUnlock()
		zlog.Debug().Msgf("using cached tags for track: %s - %s", artistName, trackName)
		return tags, nil
	}
	c.cacheMu.RUnlock()

	params := url.Values{}
	params.Set("method", "track.getTopTags")
	params.Set("api_key", c.apiKey)
	params.Set("artist", artistName)
	params.Set("track", trackName)
	params.Set("format", "json")
	params.Set("autocorrect", "1")

	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	// Check for Last.fm API errors
	var apiError LastFMError
	if err := json.Unmarshal(body, &apiError); err == nil && apiError.Error != 0 {
		return nil, errors.Errorf("last.fm API error %d: %s", apiError.Error, apiError.Message)
	}

	// Parse successful response
	var response GetTopTagsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}

	tags := make([]Tag, 0, len(response.TopTags.Tag))
	for i, t := range response.TopTags.Tag {
		if i >= limit {
			break
		}
		tags = append(tags, Tag{
			Name:  t.Name,
			Count: t.Count,
		})
	}

	// Cache the result
	c.cacheMu.Lock()
	c.trackTagCache[cacheKey] = tags
	c.cacheMu.Unlock()
	zlog.Debug().Msgf("cached tags for track: %s - %s (count: %d)", artistName, trackName, len(tags))

	return tags, nil
}
