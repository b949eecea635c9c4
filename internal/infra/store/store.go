// Package store provides the GORM-backed catalog and history store.
package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/socialsync/socialsync/internal/domain/catalog"
)

// Store wraps a GORM handle and implements the read queries the
// recommendation engine consumes plus the ingestion write path.
type Store struct {
	db *gorm.DB
}

// Config represents database connection configuration.
type Config struct {
	DSN string
}

// Open connects to PostgreSQL and returns a Store.
func Open(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	return &Store{db: db}, nil
}

// New wraps an existing GORM handle. Used by tests with an in-memory database.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the schema for all catalog entities.
func (s *Store) Migrate() error {
	models := []any{
		&catalog.User{},
		&catalog.Song{},
		&catalog.ListeningEvent{},
		&catalog.Recommendation{},
	}
	for _, m := range models {
		if err := s.db.AutoMigrate(m); err != nil {
			return errors.Wrapf(err, "failed to migrate %T", m)
		}
	}
	return nil
}

// ResolveUser resolves an external identifier to an internal user id.
// Lookup is by Spotify ID first, falling back to display name.
func (s *Store) ResolveUser(ctx context.Context, key string) (int64, error) {
	var u catalog.User
	err := s.db.WithContext(ctx).Where("spotify_id = ?", key).First(&u).Error
	if err == nil {
		return u.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, storeErr(err, "failed to resolve user")
	}

	err = s.db.WithContext(ctx).Where("name = ?", key).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, errors.Wrapf(catalog.ErrUserNotFound, "no user for %q", key)
	}
	if err != nil {
		return 0, storeErr(err, "failed to resolve user")
	}
	return u.ID, nil
}

// GenresHeard returns the distinct non-null genres present in a user's
// listening history.
func (s *Store) GenresHeard(ctx context.Context, userID int64) ([]string, error) {
	var genres []string
	err := s.db.WithContext(ctx).
		Table("songs").
		Distinct("songs.genre").
		Joins("JOIN listening_history lh ON lh.song_id = songs.id").
		Where("lh.user_id = ?", userID).
		Where("songs.genre IS NOT NULL").
		Pluck("songs.genre", &genres).Error
	if err != nil {
		return nil, storeErr(err, "failed to query heard genres")
	}
	return genres, nil
}

// DiscoveryCandidates returns songs heard by at least one other user,
// outside the excluded genres (NULL genre always passes), with
// popularity at or below cutoff, never heard by the given user, and not
// in the exclude set. Ordered ascending by (popularity, song id).
func (s *Store) DiscoveryCandidates(ctx context.Context, userID int64, excludeGenres []string, cutoff, limit int, exclude []int64) ([]catalog.Candidate, error) {
	q := s.db.WithContext(ctx).
		Table("songs AS s").
		Distinct("s.id AS song_id, s.title, s.artist, s.genre, s.popularity, s.popularity AS score").
		Joins("JOIN listening_history lh ON lh.song_id = s.id AND lh.user_id <> ?", userID).
		Where("s.popularity <= ?", cutoff).
		Where("s.id NOT IN (?)", s.heardSongs(userID))
	if len(excludeGenres) > 0 {
		q = q.Where("(s.genre IS NULL OR s.genre NOT IN ?)", excludeGenres)
	}
	return s.scanCandidates(q, limit, exclude)
}

// ObscureCandidates returns songs with popularity at or below cutoff
// that the given user has never heard, regardless of genre or whether
// anyone else heard them.
func (s *Store) ObscureCandidates(ctx context.Context, userID int64, cutoff, limit int, exclude []int64) ([]catalog.Candidate, error) {
	q := s.db.WithContext(ctx).
		Table("songs AS s").
		Select("s.id AS song_id, s.title, s.artist, s.genre, s.popularity, s.popularity AS score").
		Where("s.popularity <= ?", cutoff).
		Where("s.id NOT IN (?)", s.heardSongs(userID))
	return s.scanCandidates(q, limit, exclude)
}

// UnheardCandidates returns any songs the given user has never heard,
// regardless of popularity or genre.
func (s *Store) UnheardCandidates(ctx context.Context, userID int64, limit int, exclude []int64) ([]catalog.Candidate, error) {
	q := s.db.WithContext(ctx).
		Table("songs AS s").
		Select("s.id AS song_id, s.title, s.artist, s.genre, s.popularity, s.popularity AS score").
		Where("s.id NOT IN (?)", s.heardSongs(userID))
	return s.scanCandidates(q, limit, exclude)
}

// ReplaceRecommendations atomically replaces the stored recommendation
// set for a user. Delete and insert run in one transaction so a failed
// insert rolls the delete back rather than leaving a mixed set.
func (s *Store) ReplaceRecommendations(ctx context.Context, userID int64, recs []catalog.Recommendation) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&catalog.Recommendation{}).Error; err != nil {
			return err
		}
		if len(recs) == 0 {
			return nil
		}
		return tx.Create(&recs).Error
	})
	if err != nil {
		return storeErr(err, "failed to replace recommendations")
	}
	return nil
}

// Recommendations reads the stored recommendation set for a user,
// ascending by score with song id as the tie-breaker.
func (s *Store) Recommendations(ctx context.Context, userID int64, limit int) ([]catalog.Recommendation, error) {
	var recs []catalog.Recommendation
	q := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("score ASC").Order("song_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, storeErr(err, "failed to read recommendations")
	}
	return recs, nil
}

// UpsertUser inserts a user keyed by Spotify ID, returning the internal
// id. An existing user is left untouched.
func (s *Store) UpsertUser(ctx context.Context, spotifyID, name string) (int64, error) {
	u := catalog.User{SpotifyID: spotifyID}
	err := s.db.WithContext(ctx).
		Where(catalog.User{SpotifyID: spotifyID}).
		Attrs(catalog.User{Name: name, CreatedAt: time.Now()}).
		FirstOrCreate(&u).Error
	if err != nil {
		return 0, storeErr(err, "failed to upsert user")
	}
	return u.ID, nil
}

// UpsertSong inserts a song keyed by (title, artist), returning the
// internal id. Re-encountering the natural key is a no-op: genre and
// popularity are not refreshed.
func (s *Store) UpsertSong(ctx context.Context, title, artist string, genre *string, popularity int) (int64, error) {
	song := catalog.Song{}
	err := s.db.WithContext(ctx).
		Where(catalog.Song{Title: title, Artist: artist}).
		Attrs(catalog.Song{Genre: genre, Popularity: popularity, CreatedAt: time.Now()}).
		FirstOrCreate(&song).Error
	if err != nil {
		return 0, storeErr(err, "failed to upsert song")
	}
	return song.ID, nil
}

// AppendListeningEvent records a play. Multiple events per (user, song)
// are allowed; events are never deleted.
func (s *Store) AppendListeningEvent(ctx context.Context, userID, songID int64, playedAt time.Time) error {
	ev := catalog.ListeningEvent{UserID: userID, SongID: songID, PlayedAt: playedAt}
	if err := s.db.WithContext(ctx).Create(&ev).Error; err != nil {
		return storeErr(err, "failed to append listening event")
	}
	return nil
}

// heardSongs builds the subquery of song ids present in the user's history.
func (s *Store) heardSongs(userID int64) *gorm.DB {
	return s.db.Table("listening_history").Select("song_id").Where("user_id = ?", userID)
}

// scanCandidates applies the shared exclusion, ordering and limit, then
// scans rows into candidates. Ties in popularity order deterministically
// by song id.
func (s *Store) scanCandidates(q *gorm.DB, limit int, exclude []int64) ([]catalog.Candidate, error) {
	if len(exclude) > 0 {
		q = q.Where("s.id NOT IN ?", exclude)
	}
	var out []catalog.Candidate
	err := q.Order("s.popularity ASC").Order("s.id ASC").Limit(limit).Scan(&out).Error
	if err != nil {
		return nil, storeErr(err, "failed to query candidates")
	}
	return out, nil
}

// storeErr marks a query failure as ErrStoreUnavailable while keeping
// the cause for logging.
func storeErr(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), catalog.ErrStoreUnavailable)
}
