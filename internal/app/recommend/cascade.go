package recommend

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/socialsync/socialsync/internal/domain/catalog"
)

// Cascade runs sources in order, each filling only the shortfall left
// by the previous ones. Selected song ids are excluded from later
// sources so a song can never appear twice even when it would qualify
// for more than one tier.
type Cascade struct {
	sources []Source
}

// NewCascade creates a cascade over the given sources.
func NewCascade(sources ...Source) *Cascade {
	return &Cascade{sources: sources}
}

// Fill collects up to topN candidates. Unlike best-effort provider
// chains, a source failure aborts the run: a partial list produced by a
// failing store would violate the tier ordering guarantee.
func (c *Cascade) Fill(ctx context.Context, q Query, topN int) ([]catalog.Candidate, error) {
	selected := make([]catalog.Candidate, 0, topN)
	exclude := make([]int64, 0, topN)

	for i, src := range c.sources {
		shortfall := topN - len(selected)
		if shortfall == 0 {
			break
		}

		zlog.Debug().Msgf("trying source: index=%d total=%d name=%s shortfall=%d",
			i+1, len(c.sources), src.Name(), shortfall)

		candidates, err := src.Candidates(ctx, q, shortfall, exclude)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			zlog.Debug().Msgf("source returned no candidates: source=%s", src.Name())
			continue
		}

		for _, cand := range candidates {
			selected = append(selected, cand)
			exclude = append(exclude, cand.SongID)
		}

		zlog.Debug().Msgf("source returned candidates: source=%s count=%d total_so_far=%d",
			src.Name(), len(candidates), len(selected))
	}

	if len(selected) > topN {
		selected = selected[:topN]
	}
	return selected, nil
}
