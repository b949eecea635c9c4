// Package spotify provides a client for the Spotify API.
package spotify

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// Client is a Spotify API client acting on behalf of one user.
type Client struct {
	client     *spotify.Client
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
// RefreshToken belongs to the user whose history is being read.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Profile is the subset of the Spotify user profile ingestion needs.
type Profile struct {
	ID          string
	DisplayName string
}

// Track carries the track metadata ingestion persists.
type Track struct {
	ID         string
	Title      string
	Artist     string
	ArtistID   string
	Popularity int
}

// Play is one entry of a user's recently-played history.
type Play struct {
	Track    Track
	PlayedAt time.Time
}

// Scopes returns the OAuth scopes the ingestion flow requires.
func Scopes() []string {
	return []string{
		spotifyauth.ScopeUserReadRecentlyPlayed,
		spotifyauth.ScopeUserReadEmail,
	}
}

// New creates a new Spotify client for the user owning the refresh token.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(Scopes()...),
	)

	token := &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	}

	// HTTP client with automatic token refresh
	httpClient := auth.Client(ctx, token)
	client := spotify.New(httpClient)

	return &Client{
		client:     client,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// Profile retrieves the profile of the user the client acts for.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var user *spotify.PrivateUser
	err := c.retry(func() error {
		u, err := c.client.CurrentUser(ctx)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get current user")
	}
	if user.ID == "" {
		return nil, errors.New("spotify profile has no id")
	}

	return &Profile{ID: user.ID, DisplayName: user.DisplayName}, nil
}

// RecentlyPlayed retrieves up to limit entries of the user's
// recently-played history, most recent first.
func (c *Client) RecentlyPlayed(ctx context.Context, limit int) ([]Play, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	var items []spotify.RecentlyPlayedItem
	err := c.retry(func() error {
		r, err := c.client.PlayerRecentlyPlayedOpt(ctx, &spotify.RecentlyPlayedOptions{
			Limit: spotify.Numeric(limit),
		})
		if err != nil {
			return err
		}
		items = r
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get recently played")
	}

	plays := make([]Play, 0, len(items))
	for _, item := range items {
		if item.Track.ID == "" || len(item.Track.Artists) == 0 {
			continue
		}
		plays = append(plays, Play{
			Track: Track{
				ID:       string(item.Track.ID),
				Title:    item.Track.Name,
				Artist:   item.Track.Artists[0].Name,
				ArtistID: string(item.Track.Artists[0].ID),
			},
			PlayedAt: item.PlayedAt,
		})
	}

	return plays, nil
}

// GetTrack retrieves full track information, including popularity,
// which the recently-played listing omits.
func (c *Client) GetTrack(ctx context.Context, trackID string) (*Track, error) {
	var result *spotify.FullTrack
	err := c.retry(func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(trackID))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get track")
	}

	t := &Track{
		ID:         string(result.ID),
		Title:      result.Name,
		Popularity: int(result.Popularity),
	}
	if len(result.Artists) > 0 {
		t.Artist = result.Artists[0].Name
		t.ArtistID = string(result.Artists[0].ID)
	}
	return t, nil
}

// ArtistGenres retrieves the genre labels of an artist. Spotify attaches
// genres to artists, not tracks, so ingestion uses the first one as the
// track genre.
func (c *Client) ArtistGenres(ctx context.Context, artistID string) ([]string, error) {
	var artist *spotify.FullArtist
	err := c.retry(func() error {
		a, err := c.client.GetArtist(ctx, spotify.ID(artistID))
		if err != nil {
			return err
		}
		artist = a
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get artist")
	}
	return artist.Genres, nil
}

// retry retries an operation with linear backoff.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}
