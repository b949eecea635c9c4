// Package ingest pulls listening history from Spotify into the store.
package ingest

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/socialsync/socialsync/internal/infra/lastfm"
	"github.com/socialsync/socialsync/internal/infra/spotify"
)

// Store defines the write operations ingestion needs.
type Store interface {
	UpsertUser(ctx context.Context, spotifyID, name string) (int64, error)
	UpsertSong(ctx context.Context, title, artist string, genre *string, popularity int) (int64, error)
	AppendListeningEvent(ctx context.Context, userID, songID int64, playedAt time.Time) error
}

// MusicClient defines the Spotify operations ingestion needs.
type MusicClient interface {
	Profile(ctx context.Context) (*spotify.Profile, error)
	RecentlyPlayed(ctx context.Context, limit int) ([]spotify.Play, error)
	GetTrack(ctx context.Context, trackID string) (*spotify.Track, error)
	ArtistGenres(ctx context.Context, artistID string) ([]string, error)
}

// GenreTagger defines the Last.fm lookup used as a genre fallback.
type GenreTagger interface {
	GetTopTags(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.Tag, error)
}

// ClientFactory builds a MusicClient acting for the given user tag.
// Each user authorizes separately, so clients cannot be shared.
type ClientFactory func(ctx context.Context, tag string) (MusicClient, error)

// Service ingests a user's recent plays. Each track is written
// independently and idempotently on its natural keys, so a partial
// failure is safe to retry at the granularity of one track.
type Service struct {
	factory     ClientFactory
	store       Store
	tagger      GenreTagger // nil disables the genre fallback
	recentLimit int
}

// New creates an ingestion service.
func New(factory ClientFactory, store Store, tagger GenreTagger, recentLimit int) (*Service, error) {
	if factory == nil {
		return nil, errors.New("client factory is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	if recentLimit <= 0 {
		recentLimit = 50
	}
	return &Service{
		factory:     factory,
		store:       store,
		tagger:      tagger,
		recentLimit: recentLimit,
	}, nil
}

// AddUser registers the user behind tag and ingests their recent plays.
// Returns the internal user id and the number of plays recorded.
// Per-track failures are logged and skipped; they never corrupt rows
// already written.
func (s *Service) AddUser(ctx context.Context, tag string) (int64, int, error) {
	client, err := s.factory(ctx, tag)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "failed to build client for %q", tag)
	}

	profile, err := client.Profile(ctx)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "failed to fetch profile for %q", tag)
	}

	name := profile.DisplayName
	if name == "" {
		name = tag
	}
	userID, err := s.store.UpsertUser(ctx, profile.ID, name)
	if err != nil {
		return 0, 0, err
	}

	plays, err := client.RecentlyPlayed(ctx, s.recentLimit)
	if err != nil {
		return userID, 0, errors.Wrapf(err, "failed to fetch recent plays for %q", tag)
	}

	ingested := 0
	for _, play := range plays {
		if err := s.ingestPlay(ctx, client, userID, play); err != nil {
			zlog.Warn().Err(err).Msgf("skipping track: user=%s title=%s artist=%s",
				tag, play.Track.Title, play.Track.Artist)
			continue
		}
		ingested++
	}

	zlog.Info().Msgf("ingested listening history: user=%s user_id=%d plays=%d of %d",
		tag, userID, ingested, len(plays))
	return userID, ingested, nil
}

// ingestPlay writes one play: song upsert then history append.
func (s *Service) ingestPlay(ctx context.Context, client MusicClient, userID int64, play spotify.Play) error {
	// The recently-played listing omits popularity, so fetch the full track.
	full, err := client.GetTrack(ctx, play.Track.ID)
	if err != nil {
		return errors.Wrap(err, "failed to fetch track")
	}

	genre := s.lookupGenre(ctx, client, full)

	songID, err := s.store.UpsertSong(ctx, full.Title, full.Artist, genre, full.Popularity)
	if err != nil {
		return err
	}
	return s.store.AppendListeningEvent(ctx, userID, songID, play.PlayedAt)
}

// lookupGenre resolves a genre label for the track: first artist genre
// from Spotify, then the top Last.fm tag when configured. Returns nil
// when neither source knows one.
func (s *Service) lookupGenre(ctx context.Context, client MusicClient, t *spotify.Track) *string {
	if t.ArtistID != "" {
		genres, err := client.ArtistGenres(ctx, t.ArtistID)
		if err != nil {
			zlog.Debug().Err(err).Msgf("artist genre lookup failed: artist=%s", t.Artist)
		} else if len(genres) > 0 {
			return &genres[0]
		}
	}

	if s.tagger != nil {
		tags, err := s.tagger.GetTopTags(ctx, t.Title, t.Artist, 1)
		if err != nil {
			zlog.Debug().Err(err).Msgf("tag lookup failed: title=%s artist=%s", t.Title, t.Artist)
		} else if len(tags) > 0 {
			return &tags[0].Name
		}
	}

	return nil
}
