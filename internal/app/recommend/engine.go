package recommend

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/socialsync/socialsync/internal/domain/catalog"
)

// EngineConfig holds the engine tunables, decoded from the recommend
// settings map in the application config.
type EngineConfig struct {
	PopularityCutoff int `yaml:"popularity_cutoff" mapstructure:"popularity_cutoff" default:"30" validate:"gte=0,lte=100"`
	TopN             int `yaml:"top_n" mapstructure:"top_n" default:"20" validate:"gte=1"`
	TimeoutMs        int `yaml:"timeout_ms" mapstructure:"timeout_ms" default:"10000" validate:"gte=0"`
}

// Engine generates and reads ranked recommendation lists.
// Generation for the same user is serialized so two refreshes cannot
// interleave the delete and insert of the stored set; different users
// proceed independently.
type Engine struct {
	store   Store
	cascade *Cascade
	config  *EngineConfig

	mu        sync.Mutex
	userLocks map[int64]*sync.Mutex
}

// New creates an Engine over the given store.
// Settings may be nil, in which case all tunables take their defaults.
func New(store Store, settings map[string]any) (*Engine, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}

	var cfg EngineConfig
	if err := mapstructure.Decode(settings, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	return &Engine{
		store: store,
		cascade: NewCascade(
			&discoverySource{store: store},
			&obscuritySource{store: store},
			&anyUnheardSource{store: store},
		),
		config:    &cfg,
		userLocks: make(map[int64]*sync.Mutex),
	}, nil
}

// Defaults returns the configured cutoff and topN, applied when a
// caller passes non-positive values.
func (e *Engine) Defaults() (cutoff, topN int) {
	return e.config.PopularityCutoff, e.config.TopN
}

// Generate computes a fresh ranked list for the user identified by key
// and atomically replaces the stored set with it. The result is
// deterministic for a fixed store snapshot: every tier orders ascending
// by (popularity, song id). An empty result is valid and clears the
// stored set.
func (e *Engine) Generate(ctx context.Context, key string, cutoff, topN int) ([]catalog.Candidate, error) {
	if cutoff <= 0 {
		cutoff = e.config.PopularityCutoff
	}
	if topN <= 0 {
		topN = e.config.TopN
	}
	if e.config.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.config.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	userID, err := e.store.ResolveUser(ctx, key)
	if err != nil {
		return nil, err
	}

	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	genres, err := e.store.GenresHeard(ctx, userID)
	if err != nil {
		return nil, err
	}

	q := Query{UserID: userID, Cutoff: cutoff, HeardGenres: genres}
	candidates, err := e.cascade.Fill(ctx, q, topN)
	if err != nil {
		return nil, err
	}

	recs := make([]catalog.Recommendation, 0, len(candidates))
	for _, c := range candidates {
		recs = append(recs, catalog.Recommendation{
			UserID: userID,
			SongID: c.SongID,
			Score:  c.Score,
		})
	}
	if err := e.store.ReplaceRecommendations(ctx, userID, recs); err != nil {
		return nil, err
	}

	zlog.Info().Msgf("generated recommendations: user_id=%d cutoff=%d top_n=%d count=%d",
		userID, cutoff, topN, len(candidates))
	return candidates, nil
}

// Stored reads the currently stored set for the user, ascending by
// score, truncated to limit. It never triggers generation: refreshing
// an empty set is a composition rule for the request layer.
func (e *Engine) Stored(ctx context.Context, key string, limit int) ([]catalog.Recommendation, error) {
	userID, err := e.store.ResolveUser(ctx, key)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = e.config.TopN
	}
	return e.store.Recommendations(ctx, userID, limit)
}

// userLock returns the mutex serializing regeneration for one user.
func (e *Engine) userLock(userID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		e.userLocks[userID] = lock
	}
	return lock
}
