package rest

import (
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	zlog "github.com/rs/zerolog/log"

	"github.com/socialsync/socialsync/internal/domain/catalog"
)

// recommendationJSON is the full candidate row shape.
type recommendationJSON struct {
	SongID     int64   `json:"song_id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Genre      *string `json:"genre"`
	Popularity int     `json:"popularity"`
	Score      float64 `json:"score"`
}

// storedJSON is the stored recommendation row shape.
type storedJSON struct {
	SongID int64   `json:"song_id"`
	Score  float64 `json:"score"`
}

type errorJSON struct {
	Error string `json:"error"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// createUser registers a user by tag and ingests their recent plays.
func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tag string `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Tag == "" {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "tag is required"})
		return
	}

	_, ingested, err := s.ingestor.AddUser(r.Context(), req.Tag)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status":   "ok",
		"tag":      req.Tag,
		"ingested": ingested,
	})
}

// recommend generates, stores and returns a fresh list with defaults.
func (s *Server) recommend(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")

	recs, err := s.recommender.Generate(r.Context(), tag, 0, 0)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"recommendations": toRecommendationJSON(recs),
	})
}

// refreshRecommendations force-regenerates the stored set.
func (s *Server) refreshRecommendations(w http.ResponseWriter, r *http.Request) {
	spotifyID := chi.URLParam(r, "spotifyID")
	topN := queryInt(r, "top_n", 0)
	cutoff := queryInt(r, "pop_cutoff", 0)

	recs, err := s.recommender.Generate(r.Context(), spotifyID, cutoff, topN)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"count":  len(recs),
		"recs":   toRecommendationJSON(recs),
	})
}

// storedRecommendations reads the stored set. When it is empty the
// handler regenerates and answers with the fresh set; the engine itself
// never does this.
func (s *Server) storedRecommendations(w http.ResponseWriter, r *http.Request) {
	spotifyID := chi.URLParam(r, "spotifyID")
	limit := queryInt(r, "limit", 0)

	stored, err := s.recommender.Stored(r.Context(), spotifyID, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	if len(stored) > 0 {
		rows := make([]storedJSON, 0, len(stored))
		for _, rec := range stored {
			rows = append(rows, storedJSON{SongID: rec.SongID, Score: rec.Score})
		}
		writeJSON(w, http.StatusOK, rows)
		return
	}

	fresh, err := s.recommender.Generate(r.Context(), spotifyID, 0, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	rows := make([]storedJSON, 0, len(fresh))
	for _, c := range fresh {
		rows = append(rows, storedJSON{SongID: c.SongID, Score: c.Score})
	}
	writeJSON(w, http.StatusOK, rows)
}

func toRecommendationJSON(recs []catalog.Candidate) []recommendationJSON {
	rows := make([]recommendationJSON, 0, len(recs))
	for _, c := range recs {
		rows = append(rows, recommendationJSON{
			SongID:     c.SongID,
			Title:      c.Title,
			Artist:     c.Artist,
			Genre:      c.Genre,
			Popularity: c.Popularity,
			Score:      c.Score,
		})
	}
	return rows
}

// queryInt parses an integer query parameter, returning def when absent
// or malformed.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, errorJSON{Error: "user not found"})
	case errors.Is(err, catalog.ErrStoreUnavailable):
		zlog.Error().Err(err).Msg("store unavailable")
		writeJSON(w, http.StatusServiceUnavailable, errorJSON{Error: "store unavailable"})
	default:
		zlog.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Error().Err(err).Msg("failed to encode response")
	}
}
