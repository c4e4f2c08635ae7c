// Package store persists books, users, shelf interactions and reviews.
// Recommendation and summarization only read through it, except for the
// single-field write-backs named by core.BookField.
package store

import (
	"context"
	"fmt"

	"github.com/hubenschmidt/go-shelf/core"
)

// Filter narrows Query. Results are ordered by title, then id.
type Filter struct {
	IDs        []string
	ExcludeIDs []string
	Limit      int
}

type Store interface {
	// Get returns core.ErrEntityNotFound for an unknown id.
	Get(ctx context.Context, id string) (core.Book, error)
	Query(ctx context.Context, f Filter) ([]core.Book, error)
	Put(ctx context.Context, b core.Book) error

	// UpdateField writes one field of a book. FieldEmbedding takes a
	// core.Embedding, FieldAISummary a string.
	UpdateField(ctx context.Context, id string, field core.BookField, value any) error

	// User returns core.ErrUserNotFound for an unknown id.
	User(ctx context.Context, id string) (core.User, error)
	PutUser(ctx context.Context, u core.User) error

	// Interactions returns the user's shelf entries with Book populated,
	// ordered by book title.
	Interactions(ctx context.Context, userID string) ([]core.Interaction, error)
	Interaction(ctx context.Context, userID, bookID string) (core.Interaction, bool, error)
	RecordInteraction(ctx context.Context, in core.Interaction) error

	// Reviews returns a book's reviews, newest first.
	Reviews(ctx context.Context, bookID string) ([]core.Review, error)
	AddReview(ctx context.Context, r core.Review) (core.Review, error)

	Close() error
}

func fieldValue(field core.BookField, value any) (any, error) {
	switch field {
	case core.FieldEmbedding:
		switch v := value.(type) {
		case core.Embedding:
			return v, nil
		case *core.Embedding:
			if v == nil {
				return nil, fmt.Errorf("%s: nil embedding", field)
			}
			return *v, nil
		}
	case core.FieldAISummary:
		if s, ok := value.(string); ok {
			return s, nil
		}
	default:
		return nil, fmt.Errorf("unsupported field %q", field)
	}
	return nil, fmt.Errorf("%s: unexpected value type %T", field, value)
}

func normalizeRating(b *core.Book) {
	if b.Rating != nil {
		r := core.NormalizeRating(*b.Rating)
		b.Rating = &r
	}
}
