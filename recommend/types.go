// Package recommend ranks candidate books for a user. Scoring uses cosine
// similarity against the user's mean embedding when one exists and falls
// back to author and category overlap otherwise.
package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/hubenschmidt/go-shelf/core"
)

// Method names how a candidate was scored.
type Method string

const (
	MethodCosine    Method = "cosine"
	MethodHeuristic Method = "heuristic"
	MethodRandom    Method = "random"
)

// Heuristic weights and the rating bonus cap.
const (
	AuthorMatchWeight   = 1.0
	CategoryMatchWeight = 0.5
	MaxRatingBonus      = 0.2
)

// ScoredItem is one ranked candidate.
type ScoredItem struct {
	BookID string  `json:"book_id"`
	Score  float64 `json:"score"`
	Method Method  `json:"method"`
}

// EmbeddingSource resolves embeddings. Lookup may call a remote provider;
// Known only consults the cache and the persisted record.
// *embedding.Provider implements it.
type EmbeddingSource interface {
	Lookup(ctx context.Context, book core.Book) (core.Embedding, bool)
	Known(ctx context.Context, book core.Book) (core.Embedding, bool)
}

type Config struct {
	TopN           int   `koanf:"top_n"`
	CandidateLimit int   `koanf:"candidate_limit"`
	Seed           int64 `koanf:"seed"`

	// GenerateCandidateEmbeddings lets scoring call providers for
	// candidates lacking an embedding once a user vector exists.
	GenerateCandidateEmbeddings bool `koanf:"generate_candidate_embeddings"`

	// IndexRefresh is how often the worker rebuilds the similarity index
	// from the catalog. Zero disables the periodic rebuild.
	IndexRefresh time.Duration `koanf:"index_refresh"`
}

func DefaultConfig() Config {
	return Config{
		TopN:                        10,
		CandidateLimit:              1000,
		GenerateCandidateEmbeddings: true,
		IndexRefresh:                time.Hour,
	}
}

func (c Config) Validate() error {
	if c.TopN <= 0 {
		return fmt.Errorf("%w: recommend.top_n must be positive", core.ErrInvalidConfig)
	}
	if c.CandidateLimit <= 0 {
		return fmt.Errorf("%w: recommend.candidate_limit must be positive", core.ErrInvalidConfig)
	}
	if c.IndexRefresh < 0 {
		return fmt.Errorf("%w: recommend.index_refresh must not be negative", core.ErrInvalidConfig)
	}
	return nil
}
