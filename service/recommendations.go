package service

import (
	"context"
	"fmt"

	"github.com/hubenschmidt/go-shelf/coordinator"
	"github.com/hubenschmidt/go-shelf/core"
	"github.com/hubenschmidt/go-shelf/store"
)

type Recommendations struct {
	Status  coordinator.Status `json:"status"`
	Started bool               `json:"started,omitempty"`
	BookIDs []string           `json:"book_ids,omitempty"`
	Books   []core.Book        `json:"books,omitempty"`
}

// Recommendations returns the user's cached list or starts computing it.
// Books are in ranking order; ids whose book has since disappeared are
// skipped.
func (s *Service) Recommendations(ctx context.Context, userID string) (Recommendations, error) {
	if _, err := s.store.User(ctx, userID); err != nil {
		return Recommendations{}, err
	}

	res, err := s.coord.Request(ctx, coordinator.KindRecommendations, userID, nil)
	if err != nil {
		return Recommendations{}, err
	}
	out := Recommendations{Status: res.Status, Started: res.Started}
	if !res.Ready() {
		return out, nil
	}

	if err := res.Decode(&out.BookIDs); err != nil {
		return Recommendations{}, fmt.Errorf("decode recommendations: %w", err)
	}
	if len(out.BookIDs) == 0 {
		return out, nil
	}
	books, err := s.store.Query(ctx, store.Filter{IDs: out.BookIDs})
	if err != nil {
		return Recommendations{}, fmt.Errorf("load recommended books: %w", err)
	}
	byID := make(map[string]core.Book, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}
	for _, id := range out.BookIDs {
		if b, ok := byID[id]; ok {
			out.Books = append(out.Books, b)
		}
	}
	return out, nil
}

// InvalidateRecommendations drops the user's cached list so the next
// request recomputes it.
func (s *Service) InvalidateRecommendations(ctx context.Context, userID string) error {
	return s.coord.Invalidate(ctx, coordinator.KindRecommendations, userID)
}
