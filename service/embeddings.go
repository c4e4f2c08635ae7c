package service

import (
	"context"
	"fmt"

	"github.com/hubenschmidt/go-shelf/coordinator"
	"github.com/hubenschmidt/go-shelf/core"
	"github.com/hubenschmidt/go-shelf/store"
)

type EmbeddingStatus struct {
	Status    coordinator.Status `json:"status"`
	Started   bool               `json:"started,omitempty"`
	Embedding *core.Embedding    `json:"embedding,omitempty"`
}

// GenerateEmbedding returns the book's embedding when it is persisted or
// cached, and otherwise starts generating it.
func (s *Service) GenerateEmbedding(ctx context.Context, bookID string) (EmbeddingStatus, error) {
	book, err := s.store.Get(ctx, bookID)
	if err != nil {
		return EmbeddingStatus{}, err
	}
	if book.HasEmbedding() {
		return EmbeddingStatus{Status: coordinator.StatusReady, Embedding: book.Embedding}, nil
	}

	res, err := s.coord.Request(ctx, coordinator.KindEmbedding, bookID, nil)
	if err != nil {
		return EmbeddingStatus{}, err
	}
	out := EmbeddingStatus{Status: res.Status, Started: res.Started}
	if res.Ready() {
		var emb core.Embedding
		if err := res.Decode(&emb); err != nil {
			return EmbeddingStatus{}, fmt.Errorf("decode embedding: %w", err)
		}
		out.Embedding = &emb
	}
	return out, nil
}

// RebuildIndex reloads the similarity index from the catalog. Call it after
// books are imported or removed.
func (s *Service) RebuildIndex(ctx context.Context) (int, error) {
	books, err := s.store.Query(ctx, store.Filter{})
	if err != nil {
		return 0, fmt.Errorf("load catalog: %w", err)
	}
	s.index.Rebuild(books)
	s.log.Info().Int("books", len(books)).Int("indexed", s.index.Len()).Msg("similarity index rebuilt")
	return s.index.Len(), nil
}

// SimilarBooks ranks indexed books by similarity to bookID, excluding the
// book itself. A book without an indexed embedding has no neighbours. k must
// be positive.
func (s *Service) SimilarBooks(ctx context.Context, bookID string, k int) ([]string, error) {
	if k <= 0 {
		return nil, core.NewOpError("similar books", bookID, fmt.Errorf("%w: k must be positive, got %d", core.ErrInvalidInput, k))
	}
	if _, err := s.store.Get(ctx, bookID); err != nil {
		return nil, err
	}
	emb, ok := s.index.Get(bookID)
	if !ok {
		return []string{}, nil
	}
	ids := make([]string, 0, k)
	for _, r := range s.index.Search(emb, k+1) {
		if r.ID == bookID {
			continue
		}
		if len(ids) == k {
			break
		}
		ids = append(ids, r.ID)
	}
	return ids, nil
}
