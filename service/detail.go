package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hubenschmidt/go-shelf/cache"
	"github.com/hubenschmidt/go-shelf/core"
)

const BookDetailTTL = 30 * time.Minute

// BookDetail is a book with its reviews and, for a known user, the user's
// interaction.
type BookDetail struct {
	Book            core.Book         `json:"book"`
	Reviews         []core.Review     `json:"reviews"`
	AverageRating   float64           `json:"average_rating"`
	UserInteraction *core.Interaction `json:"user_interaction,omitempty"`
}

// BookDetail assembles the detail view cache-first. An empty userID is the
// anonymous view. The average is over reviews, falling back to the book's
// own rating when there are none.
func (s *Service) BookDetail(ctx context.Context, bookID, userID string) (BookDetail, error) {
	key := cache.BookDetailKey(bookID, userID)

	var detail BookDetail
	if ok, err := cache.GetJSON(ctx, s.cache, key, &detail); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("detail cache read failed")
	} else if ok {
		return detail, nil
	}

	book, err := s.store.Get(ctx, bookID)
	if err != nil {
		return BookDetail{}, err
	}
	reviews, err := s.store.Reviews(ctx, bookID)
	if err != nil {
		return BookDetail{}, fmt.Errorf("load reviews: %w", err)
	}
	if reviews == nil {
		reviews = []core.Review{}
	}

	detail = BookDetail{Book: book, Reviews: reviews}
	if len(reviews) > 0 {
		sum := 0
		for _, r := range reviews {
			sum += r.Rating
		}
		detail.AverageRating = float64(sum) / float64(len(reviews))
		avg := detail.AverageRating
		detail.Book.Rating = &avg
	} else if book.Rating != nil {
		detail.AverageRating = *book.Rating
	}

	if userID != "" {
		in, ok, err := s.store.Interaction(ctx, userID, bookID)
		if err != nil {
			return BookDetail{}, fmt.Errorf("load interaction: %w", err)
		}
		if ok {
			detail.UserInteraction = &in
		}
	}

	if err := cache.SetJSON(ctx, s.cache, key, detail, BookDetailTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("detail cache write failed")
	}
	return detail, nil
}

// InvalidateBookDetail drops the anonymous view and, when userID is set,
// that user's view.
func (s *Service) InvalidateBookDetail(ctx context.Context, bookID, userID string) error {
	errs := []error{s.cache.Delete(ctx, cache.BookDetailKey(bookID, ""))}
	if userID != "" {
		errs = append(errs, s.cache.Delete(ctx, cache.BookDetailKey(bookID, userID)))
	}
	return errors.Join(errs...)
}

// RecordInteraction stores the interaction and drops the caches it makes
// stale: both detail views and the user's recommendations.
func (s *Service) RecordInteraction(ctx context.Context, in core.Interaction) error {
	if _, err := s.store.User(ctx, in.UserID); err != nil {
		return err
	}
	if err := s.store.RecordInteraction(ctx, in); err != nil {
		return err
	}
	return errors.Join(
		s.InvalidateBookDetail(ctx, in.BookID, in.UserID),
		s.InvalidateRecommendations(ctx, in.UserID),
	)
}

// AddReview stores a review unless the user already reviewed the book, in
// which case the existing review comes back with created false. Only the
// anonymous detail view is invalidated.
func (s *Service) AddReview(ctx context.Context, r core.Review) (core.Review, bool, error) {
	if r.Rating < 1 || r.Rating > 5 {
		return core.Review{}, false, fmt.Errorf("%w: rating %d outside 1-5", core.ErrInvalidInput, r.Rating)
	}
	existing, err := s.store.Reviews(ctx, r.BookID)
	if err != nil {
		return core.Review{}, false, err
	}
	for _, e := range existing {
		if e.UserID == r.UserID {
			return e, false, nil
		}
	}

	saved, err := s.store.AddReview(ctx, r)
	if err != nil {
		return core.Review{}, false, err
	}
	if err := s.InvalidateBookDetail(ctx, r.BookID, ""); err != nil {
		s.log.Warn().Err(err).Str("book_id", r.BookID).Msg("invalidate detail failed")
	}
	return saved, true, nil
}
