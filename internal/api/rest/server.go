// Package rest exposes the ingestion and recommendation operations
// over HTTP.
package rest

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/socialsync/socialsync/internal/domain/catalog"
)

// Recommender defines the engine operations the API exposes.
type Recommender interface {
	Generate(ctx context.Context, key string, cutoff, topN int) ([]catalog.Candidate, error)
	Stored(ctx context.Context, key string, limit int) ([]catalog.Recommendation, error)
	Defaults() (cutoff, topN int)
}

// Ingestor defines the ingestion operation the API exposes.
type Ingestor interface {
	AddUser(ctx context.Context, tag string) (int64, int, error)
}

// Server holds the API dependencies.
type Server struct {
	recommender Recommender
	ingestor    Ingestor
}

// NewServer creates the API server.
func NewServer(recommender Recommender, ingestor Ingestor) *Server {
	return &Server{
		recommender: recommender,
		ingestor:    ingestor,
	}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	// The original frontend is served from an arbitrary origin.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))

	r.Get("/healthz", s.health)
	r.Post("/users", s.createUser)
	r.Get("/recommend/{tag}", s.recommend)
	r.Route("/users/{spotifyID}/recommendations", func(r chi.Router) {
		r.Get("/", s.storedRecommendations)
		r.Get("/refresh", s.refreshRecommendations)
	})

	return r
}
