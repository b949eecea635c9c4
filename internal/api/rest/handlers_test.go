package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialsync/socialsync/internal/domain/catalog"
)

type stubRecommender struct {
	generated []catalog.Candidate
	stored    []catalog.Recommendation
	err       error

	generateCalls int
	lastKey       string
	lastCutoff    int
	lastTopN      int
	lastLimit     int
}

func (s *stubRecommender) Generate(ctx context.Context, key string, cutoff, topN int) ([]catalog.Candidate, error) {
	s.generateCalls++
	s.lastKey = key
	s.lastCutoff = cutoff
	s.lastTopN = topN
	return s.generated, s.err
}

func (s *stubRecommender) Stored(ctx context.Context, key string, limit int) ([]catalog.Recommendation, error) {
	s.lastKey = key
	s.lastLimit = limit
	return s.stored, s.err
}

func (s *stubRecommender) Defaults() (int, int) { return 30, 20 }

type stubIngestor struct {
	userID   int64
	ingested int
	err      error
	lastTag  string
}

func (s *stubIngestor) AddUser(ctx context.Context, tag string) (int64, int, error) {
	s.lastTag = tag
	return s.userID, s.ingested, s.err
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	h := NewServer(&stubRecommender{}, &stubIngestor{}).Handler()
	rec := doRequest(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateUser(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ing := &stubIngestor{userID: 7, ingested: 12}
		h := NewServer(&stubRecommender{}, ing).Handler()

		rec := doRequest(t, h, http.MethodPost, "/users", `{"tag":"ada"}`)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "ada", ing.lastTag)

		var body map[string]any
		decodeBody(t, rec, &body)
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, float64(12), body["ingested"])
	})

	t.Run("missing tag", func(t *testing.T) {
		h := NewServer(&stubRecommender{}, &stubIngestor{}).Handler()
		rec := doRequest(t, h, http.MethodPost, "/users", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		h := NewServer(&stubRecommender{}, &stubIngestor{}).Handler()
		rec := doRequest(t, h, http.MethodPost, "/users", `{`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRecommend(t *testing.T) {
	genre := "jazz"
	eng := &stubRecommender{generated: []catalog.Candidate{
		{SongID: 3, Title: "Blue", Artist: "Miles", Genre: &genre, Popularity: 5, Score: 5},
	}}
	h := NewServer(eng, &stubIngestor{}).Handler()

	rec := doRequest(t, h, http.MethodGet, "/recommend/ada", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Defaults are the engine's concern: the handler passes zero values.
	assert.Equal(t, "ada", eng.lastKey)
	assert.Zero(t, eng.lastCutoff)
	assert.Zero(t, eng.lastTopN)

	var body struct {
		Recommendations []recommendationJSON `json:"recommendations"`
	}
	decodeBody(t, rec, &body)
	require.Len(t, body.Recommendations, 1)
	assert.Equal(t, int64(3), body.Recommendations[0].SongID)
	assert.Equal(t, "Blue", body.Recommendations[0].Title)
}

func TestRefreshRecommendations(t *testing.T) {
	eng := &stubRecommender{generated: []catalog.Candidate{{SongID: 1}, {SongID: 2}}}
	h := NewServer(eng, &stubIngestor{}).Handler()

	rec := doRequest(t, h, http.MethodGet, "/users/spotify-ada/recommendations/refresh?top_n=5&pop_cutoff=40", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "spotify-ada", eng.lastKey)
	assert.Equal(t, 40, eng.lastCutoff)
	assert.Equal(t, 5, eng.lastTopN)

	var body map[string]any
	decodeBody(t, rec, &body)
	assert.Equal(t, float64(2), body["count"])
}

func TestStoredRecommendations(t *testing.T) {
	t.Run("returns stored set without generating", func(t *testing.T) {
		eng := &stubRecommender{stored: []catalog.Recommendation{
			{UserID: 1, SongID: 4, Score: 10},
			{UserID: 1, SongID: 9, Score: 25},
		}}
		h := NewServer(eng, &stubIngestor{}).Handler()

		rec := doRequest(t, h, http.MethodGet, "/users/spotify-ada/recommendations?limit=5", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 5, eng.lastLimit)
		assert.Zero(t, eng.generateCalls)

		var rows []storedJSON
		decodeBody(t, rec, &rows)
		require.Len(t, rows, 2)
		assert.Equal(t, int64(4), rows[0].SongID)
	})

	t.Run("empty stored set triggers regeneration", func(t *testing.T) {
		eng := &stubRecommender{generated: []catalog.Candidate{{SongID: 7, Score: 3}}}
		h := NewServer(eng, &stubIngestor{}).Handler()

		rec := doRequest(t, h, http.MethodGet, "/users/spotify-ada/recommendations", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, eng.generateCalls)

		var rows []storedJSON
		decodeBody(t, rec, &rows)
		require.Len(t, rows, 1)
		assert.Equal(t, int64(7), rows[0].SongID)
	})
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "unknown user",
			err:  errors.Wrap(catalog.ErrUserNotFound, "no user"),
			want: http.StatusNotFound,
		},
		{
			name: "store down",
			err:  errors.Mark(errors.New("connection refused"), catalog.ErrStoreUnavailable),
			want: http.StatusServiceUnavailable,
		},
		{
			name: "anything else",
			err:  errors.New("boom"),
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &stubRecommender{err: tt.err}
			h := NewServer(eng, &stubIngestor{}).Handler()

			rec := doRequest(t, h, http.MethodGet, "/recommend/ada", "")
			assert.Equal(t, tt.want, rec.Code)

			var body errorJSON
			decodeBody(t, rec, &body)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestRequestIDHeader(t *testing.T) {
	h := NewServer(&stubRecommender{}, &stubIngestor{}).Handler()
	rec := doRequest(t, h, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
