// Package recommend provides the recommendation engine: a fallback
// cascade of candidate sources over the catalog store.
package recommend

import (
	"context"

	"github.com/socialsync/socialsync/internal/domain/catalog"
)

// Query carries the per-request parameters shared by all sources.
type Query struct {
	UserID      int64
	Cutoff      int
	HeardGenres []string
}

// Source is the interface for one tier of the fallback cascade.
// Each implementation has a distinct eligibility predicate; all of them
// must return only songs the user has never heard, ranked ascending by
// (popularity, song id).
type Source interface {
	// Candidates retrieves up to shortfall candidates for the query,
	// skipping song ids already selected by earlier tiers.
	Candidates(ctx context.Context, q Query, shortfall int, exclude []int64) ([]catalog.Candidate, error)

	// Name returns the source name (used in logs).
	Name() string
}

// Store defines the catalog store operations the engine consumes.
type Store interface {
	ResolveUser(ctx context.Context, key string) (int64, error)
	GenresHeard(ctx context.Context, userID int64) ([]string, error)
	DiscoveryCandidates(ctx context.Context, userID int64, excludeGenres []string, cutoff, limit int, exclude []int64) ([]catalog.Candidate, error)
	ObscureCandidates(ctx context.Context, userID int64, cutoff, limit int, exclude []int64) ([]catalog.Candidate, error)
	UnheardCandidates(ctx context.Context, userID int64, limit int, exclude []int64) ([]catalog.Candidate, error)
	ReplaceRecommendations(ctx context.Context, userID int64, recs []catalog.Recommendation) error
	Recommendations(ctx context.Context, userID int64, limit int) ([]catalog.Recommendation, error)
}
