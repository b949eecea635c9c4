package recommend

import (
	"context"

	"github.com/socialsync/socialsync/internal/domain/catalog"
)

// discoverySource is the primary tier: songs heard by some other user,
// outside the genres of the requesting user's own history (songs with
// no genre pass), with popularity at or below the cutoff.
// When the user has no heard genres the genre exclusion is disabled
// entirely.
type discoverySource struct {
	store Store
}

func (s *discoverySource) Name() string { return "out_of_genre_discovery" }

func (s *discoverySource) Candidates(ctx context.Context, q Query, shortfall int, exclude []int64) ([]catalog.Candidate, error) {
	return s.store.DiscoveryCandidates(ctx, q.UserID, q.HeardGenres, q.Cutoff, shortfall, exclude)
}

// obscuritySource is the secondary tier: any unheard song with
// popularity at or below the cutoff, regardless of genre or whether
// another user has heard it.
type obscuritySource struct {
	store Store
}

func (s *obscuritySource) Name() string { return "low_popularity" }

func (s *obscuritySource) Candidates(ctx context.Context, q Query, shortfall int, exclude []int64) ([]catalog.Candidate, error) {
	return s.store.ObscureCandidates(ctx, q.UserID, q.Cutoff, shortfall, exclude)
}

// anyUnheardSource is the tertiary tier: any song the user has never
// heard, least popular first. With a nonempty catalog of unheard songs
// this tier always produces candidates.
type anyUnheardSource struct {
	store Store
}

func (s *anyUnheardSource) Name() string { return "least_popular" }

func (s *anyUnheardSource) Candidates(ctx context.Context, q Query, shortfall int, exclude []int64) ([]catalog.Candidate, error) {
	return s.store.UnheardCandidates(ctx, q.UserID, shortfall, exclude)
}
