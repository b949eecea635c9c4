// Package catalog provides the persisted entities of the listening catalog.
package catalog

import "time"

// User represents a known listener.
// Created on first ingestion or explicit registration, never deleted.
type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	SpotifyID string    `gorm:"size:64;uniqueIndex;not null"`
	Name      string    `gorm:"size:255"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the users table name.
func (User) TableName() string { return "users" }

// Song represents a catalog entry, unique on (title, artist).
// Genre is nil when the source service reported none.
// Popularity is the externally defined 0-100 score, lower = more obscure.
type Song struct {
	ID         int64   `gorm:"primaryKey;autoIncrement"`
	Title      string  `gorm:"size:255;not null;uniqueIndex:idx_songs_title_artist,priority:1"`
	Artist     string  `gorm:"size:255;not null;uniqueIndex:idx_songs_title_artist,priority:2"`
	Genre      *string `gorm:"size:100"`
	Popularity int     `gorm:"not null;default:0"`
	CreatedAt  time.Time
}

// TableName returns the songs table name.
func (Song) TableName() string { return "songs" }

// ListeningEvent records that a user played a song at a point in time.
// Append-only; replays produce additional rows.
type ListeningEvent struct {
	ID       int64     `gorm:"primaryKey;autoIncrement"`
	UserID   int64     `gorm:"not null;index"`
	SongID   int64     `gorm:"not null;index"`
	PlayedAt time.Time `gorm:"not null"`
}

// TableName returns the listening history table name.
func (ListeningEvent) TableName() string { return "listening_history" }

// Recommendation is a currently valid suggestion for a user.
// The composite primary key enforces at most one row per (user, song);
// the whole per-user set is replaced as a unit.
type Recommendation struct {
	UserID int64   `gorm:"primaryKey;autoIncrement:false"`
	SongID int64   `gorm:"primaryKey;autoIncrement:false"`
	Score  float64 `gorm:"not null"`
}

// TableName returns the recommendations table name.
func (Recommendation) TableName() string { return "recommendations" }

// Candidate is a song as ranked by the recommendation engine.
// Score is lower-is-better and currently mirrors popularity.
type Candidate struct {
	SongID     int64
	Title      string
	Artist     string
	Genre      *string
	Popularity int
	Score      float64
}
