package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/go-shelf/core"
)

func ptr(f float64) *float64 { return &f }

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func seed(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	books := []core.Book{
		{ID: "b1", Title: "Dune", Authors: []string{"Frank Herbert"}, Categories: []string{"sci-fi"}, Rating: ptr(4.5)},
		{ID: "b2", Title: "Anathem", Authors: []string{"Neal Stephenson"}, Categories: []string{"sci-fi"}},
		{ID: "b3", Title: "Circe", Authors: []string{"Madeline Miller"}, Rating: ptr(8)},
	}
	for _, b := range books {
		require.NoError(t, s.Put(ctx, b))
	}
	require.NoError(t, s.PutUser(ctx, core.User{ID: "u1", Email: "u1@example.com"}))
}

func TestStore_GetAndQuery(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)

			b, err := s.Get(ctx, "b1")
			require.NoError(t, err)
			assert.Equal(t, "Dune", b.Title)
			assert.Equal(t, []string{"Frank Herbert"}, b.Authors)
			require.NotNil(t, b.Rating)
			assert.InDelta(t, 4.5, *b.Rating, 1e-9)
			assert.False(t, b.HasEmbedding())

			_, err = s.Get(ctx, "missing")
			assert.ErrorIs(t, err, core.ErrEntityNotFound)

			books, err := s.Query(ctx, Filter{})
			require.NoError(t, err)
			require.Len(t, books, 3)
			assert.Equal(t, []string{"b2", "b3", "b1"}, ids(books), "ordered by title")
			require.NotNil(t, books[1].Rating)
			assert.InDelta(t, 4.0, *books[1].Rating, 1e-9, "0-10 rating normalized")

			books, err = s.Query(ctx, Filter{ExcludeIDs: []string{"b2"}, Limit: 1})
			require.NoError(t, err)
			assert.Equal(t, []string{"b3"}, ids(books))

			books, err = s.Query(ctx, Filter{IDs: []string{"b1", "b2"}})
			require.NoError(t, err)
			assert.Equal(t, []string{"b2", "b1"}, ids(books))
		})
	}
}

func ids(books []core.Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.ID
	}
	return out
}

func TestStore_UpdateField(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)

			emb := core.Embedding{Source: "gemini", Values: []float64{0.1, 0.2, 0.3}}
			require.NoError(t, s.UpdateField(ctx, "b1", core.FieldEmbedding, emb))
			require.NoError(t, s.UpdateField(ctx, "b1", core.FieldAISummary, "A desert planet."))

			b, err := s.Get(ctx, "b1")
			require.NoError(t, err)
			require.True(t, b.HasEmbedding())
			assert.Equal(t, emb, *b.Embedding)
			assert.Equal(t, "A desert planet.", b.AISummary)

			err = s.UpdateField(ctx, "missing", core.FieldAISummary, "x")
			assert.ErrorIs(t, err, core.ErrEntityNotFound)

			assert.Error(t, s.UpdateField(ctx, "b1", core.FieldEmbedding, "not a vector"))
			assert.Error(t, s.UpdateField(ctx, "b1", core.BookField("title"), "x"))
		})
	}
}

func TestStore_UsersAndInteractions(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)

			u, err := s.User(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, "u1@example.com", u.Email)

			_, err = s.User(ctx, "nobody")
			assert.ErrorIs(t, err, core.ErrUserNotFound)

			require.NoError(t, s.RecordInteraction(ctx, core.Interaction{UserID: "u1", BookID: "b1", Status: core.StatusRead}))
			require.NoError(t, s.RecordInteraction(ctx, core.Interaction{UserID: "u1", BookID: "b2", IsFavorite: true}))
			require.NoError(t, s.RecordInteraction(ctx, core.Interaction{UserID: "u1", BookID: "b1", Status: core.StatusReading, IsFavorite: true}))

			list, err := s.Interactions(ctx, "u1")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "b2", list[0].BookID)
			assert.Equal(t, core.StatusNone, list[0].Status)
			assert.Equal(t, "b1", list[1].BookID)
			assert.Equal(t, core.StatusReading, list[1].Status)
			assert.True(t, list[1].IsFavorite)
			require.NotNil(t, list[1].Book)
			assert.Equal(t, "Dune", list[1].Book.Title)

			in, ok, err := s.Interaction(ctx, "u1", "b1")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, core.StatusReading, in.Status)

			_, ok, err = s.Interaction(ctx, "u1", "b3")
			require.NoError(t, err)
			assert.False(t, ok)

			err = s.RecordInteraction(ctx, core.Interaction{UserID: "u1", BookID: "missing"})
			assert.ErrorIs(t, err, core.ErrEntityNotFound)
		})
	}
}

func TestStore_Reviews(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)

			first, err := s.AddReview(ctx, core.Review{UserID: "u1", BookID: "b1", Rating: 4, Comment: "good", CreatedAt: base})
			require.NoError(t, err)
			assert.NotZero(t, first.ID)

			_, err = s.AddReview(ctx, core.Review{UserID: "u2", BookID: "b1", Rating: 2, CreatedAt: base.Add(time.Hour)})
			require.NoError(t, err)

			reviews, err := s.Reviews(ctx, "b1")
			require.NoError(t, err)
			require.Len(t, reviews, 2)
			assert.Equal(t, "u2", reviews[0].UserID, "newest first")
			assert.Equal(t, "good", reviews[1].Comment)
			assert.True(t, reviews[1].CreatedAt.Equal(base))

			_, err = s.AddReview(ctx, core.Review{BookID: "missing"})
			assert.ErrorIs(t, err, core.ErrEntityNotFound)
		})
	}
}

func TestSQLStore_Rebind(t *testing.T) {
	s := &SQLStore{dialect: dialectPostgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)", s.rebind("SELECT * FROM t WHERE a = ? AND b IN (?, ?)"))

	s.dialect = dialectSQLite
	assert.Equal(t, "a = ?", s.rebind("a = ?"))
}

func TestOpen(t *testing.T) {
	s, err := Open("memory")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(":memory:")
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, s)
	require.NoError(t, s.Close())
}
