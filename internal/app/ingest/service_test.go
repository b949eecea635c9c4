package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialsync/socialsync/internal/infra/lastfm"
	"github.com/socialsync/socialsync/internal/infra/spotify"
)

type fakeClient struct {
	profile      *spotify.Profile
	profileErr   error
	plays        []spotify.Play
	playsErr     error
	tracks       map[string]*spotify.Track
	trackErrs    map[string]error
	artistGenres map[string][]string

	recentLimit int
}

func (c *fakeClient) Profile(ctx context.Context) (*spotify.Profile, error) {
	return c.profile, c.profileErr
}

func (c *fakeClient) RecentlyPlayed(ctx context.Context, limit int) ([]spotify.Play, error) {
	c.recentLimit = limit
	return c.plays, c.playsErr
}

func (c *fakeClient) GetTrack(ctx context.Context, trackID string) (*spotify.Track, error) {
	if err, ok := c.trackErrs[trackID]; ok {
		return nil, err
	}
	t, ok := c.tracks[trackID]
	if !ok {
		return nil, errors.Newf("unknown track %q", trackID)
	}
	return t, nil
}

func (c *fakeClient) ArtistGenres(ctx context.Context, artistID string) ([]string, error) {
	return c.artistGenres[artistID], nil
}

type songRow struct {
	title      string
	artist     string
	genre      *string
	popularity int
}

type fakeIngestStore struct {
	users  map[string]int64
	songs  []songRow
	events []int64 // song ids appended, in order

	userErr  error
	songErr  error
	eventErr error
}

func newFakeIngestStore() *fakeIngestStore {
	return &fakeIngestStore{users: make(map[string]int64)}
}

func (f *fakeIngestStore) UpsertUser(ctx context.Context, spotifyID, name string) (int64, error) {
	if f.userErr != nil {
		return 0, f.userErr
	}
	if id, ok := f.users[spotifyID]; ok {
		return id, nil
	}
	id := int64(len(f.users) + 1)
	f.users[spotifyID] = id
	return id, nil
}

func (f *fakeIngestStore) UpsertSong(ctx context.Context, title, artist string, genre *string, popularity int) (int64, error) {
	if f.songErr != nil {
		return 0, f.songErr
	}
	for i, s := range f.songs {
		if s.title == title && s.artist == artist {
			return int64(i + 1), nil
		}
	}
	f.songs = append(f.songs, songRow{title: title, artist: artist, genre: genre, popularity: popularity})
	return int64(len(f.songs)), nil
}

func (f *fakeIngestStore) AppendListeningEvent(ctx context.Context, userID, songID int64, playedAt time.Time) error {
	if f.eventErr != nil {
		return f.eventErr
	}
	f.events = append(f.events, songID)
	return nil
}

type fakeTagger struct {
	tags map[string][]lastfm.Tag
}

func (f *fakeTagger) GetTopTags(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.Tag, error) {
	return f.tags[trackName+"/"+artistName], nil
}

func play(trackID, title, artist string) spotify.Play {
	return spotify.Play{
		Track:    spotify.Track{ID: trackID, Title: title, Artist: artist},
		PlayedAt: time.Now(),
	}
}

func factoryFor(client MusicClient) ClientFactory {
	return func(ctx context.Context, tag string) (MusicClient, error) {
		return client, nil
	}
}

func TestAddUser_IngestsRecentPlays(t *testing.T) {
	client := &fakeClient{
		profile: &spotify.Profile{ID: "spotify-ada", DisplayName: "Ada"},
		plays:   []spotify.Play{play("t1", "One", "A"), play("t2", "Two", "B")},
		tracks: map[string]*spotify.Track{
			"t1": {ID: "t1", Title: "One", Artist: "A", ArtistID: "a1", Popularity: 42},
			"t2": {ID: "t2", Title: "Two", Artist: "B", ArtistID: "b1", Popularity: 7},
		},
		artistGenres: map[string][]string{"a1": {"rock", "hard rock"}},
	}
	store := newFakeIngestStore()

	svc, err := New(factoryFor(client), store, nil, 25)
	require.NoError(t, err)

	userID, ingested, err := svc.AddUser(context.Background(), "ada")
	require.NoError(t, err)

	assert.Equal(t, int64(1), userID)
	assert.Equal(t, 2, ingested)
	assert.Equal(t, 25, client.recentLimit)
	require.Len(t, store.songs, 2)

	// First artist genre from Spotify wins.
	require.NotNil(t, store.songs[0].genre)
	assert.Equal(t, "rock", *store.songs[0].genre)
	assert.Equal(t, 42, store.songs[0].popularity)

	// No genre source for the second track.
	assert.Nil(t, store.songs[1].genre)
	assert.Equal(t, []int64{1, 2}, store.events)
}

func TestAddUser_FallsBackToTaggerGenre(t *testing.T) {
	client := &fakeClient{
		profile: &spotify.Profile{ID: "spotify-ada", DisplayName: "Ada"},
		plays:   []spotify.Play{play("t1", "One", "A")},
		tracks: map[string]*spotify.Track{
			"t1": {ID: "t1", Title: "One", Artist: "A", ArtistID: "a1", Popularity: 10},
		},
	}
	store := newFakeIngestStore()
	tagger := &fakeTagger{tags: map[string][]lastfm.Tag{
		"One/A": {{Name: "shoegaze", Count: 100}},
	}}

	svc, err := New(factoryFor(client), store, tagger, 0)
	require.NoError(t, err)

	_, _, err = svc.AddUser(context.Background(), "ada")
	require.NoError(t, err)

	require.Len(t, store.songs, 1)
	require.NotNil(t, store.songs[0].genre)
	assert.Equal(t, "shoegaze", *store.songs[0].genre)
}

func TestAddUser_SkipsFailedTracks(t *testing.T) {
	client := &fakeClient{
		profile: &spotify.Profile{ID: "spotify-ada", DisplayName: "Ada"},
		plays:   []spotify.Play{play("bad", "Bad", "A"), play("good", "Good", "A")},
		tracks: map[string]*spotify.Track{
			"good": {ID: "good", Title: "Good", Artist: "A", Popularity: 3},
		},
		trackErrs: map[string]error{"bad": errors.New("rate limited")},
	}
	store := newFakeIngestStore()

	svc, err := New(factoryFor(client), store, nil, 50)
	require.NoError(t, err)

	_, ingested, err := svc.AddUser(context.Background(), "ada")
	require.NoError(t, err)

	assert.Equal(t, 1, ingested)
	require.Len(t, store.songs, 1)
	assert.Equal(t, "Good", store.songs[0].title)
	assert.Equal(t, []int64{1}, store.events)
}

func TestAddUser_EmptyDisplayNameFallsBackToTag(t *testing.T) {
	client := &fakeClient{
		profile: &spotify.Profile{ID: "spotify-anon", DisplayName: ""},
	}
	store := newFakeIngestStore()

	svc, err := New(factoryFor(client), store, nil, 50)
	require.NoError(t, err)

	userID, ingested, err := svc.AddUser(context.Background(), "anon-tag")
	require.NoError(t, err)
	assert.Equal(t, int64(1), userID)
	assert.Zero(t, ingested)
}

func TestAddUser_Errors(t *testing.T) {
	t.Run("factory failure", func(t *testing.T) {
		boom := errors.New("no token for tag")
		factory := func(ctx context.Context, tag string) (MusicClient, error) {
			return nil, boom
		}
		svc, err := New(factory, newFakeIngestStore(), nil, 50)
		require.NoError(t, err)

		_, _, err = svc.AddUser(context.Background(), "ada")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("profile failure", func(t *testing.T) {
		client := &fakeClient{profileErr: errors.New("unauthorized")}
		svc, err := New(factoryFor(client), newFakeIngestStore(), nil, 50)
		require.NoError(t, err)

		_, _, err = svc.AddUser(context.Background(), "ada")
		assert.Error(t, err)
	})

	t.Run("recent plays failure returns user id", func(t *testing.T) {
		client := &fakeClient{
			profile:  &spotify.Profile{ID: "spotify-ada", DisplayName: "Ada"},
			playsErr: errors.New("timeout"),
		}
		store := newFakeIngestStore()
		svc, err := New(factoryFor(client), store, nil, 50)
		require.NoError(t, err)

		userID, ingested, err := svc.AddUser(context.Background(), "ada")
		assert.Error(t, err)
		assert.Equal(t, int64(1), userID)
		assert.Zero(t, ingested)
	})
}

func TestNew_Validation(t *testing.T) {
	store := newFakeIngestStore()
	factory := factoryFor(&fakeClient{})

	_, err := New(nil, store, nil, 50)
	assert.Error(t, err)

	_, err = New(factory, nil, nil, 50)
	assert.Error(t, err)

	svc, err := New(factory, store, nil, -1)
	require.NoError(t, err)
	assert.Equal(t, 50, svc.recentLimit)
}
