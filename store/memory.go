package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/hubenschmidt/go-shelf/core"
)

type interactionKey struct {
	userID string
	bookID string
}

// MemoryStore is a Store kept in maps, used by tests and single-process runs.
type MemoryStore struct {
	mu           sync.RWMutex
	books        map[string]core.Book
	users        map[string]core.User
	interactions map[interactionKey]core.Interaction
	reviews      map[string][]core.Review
	nextReviewID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		books:        make(map[string]core.Book),
		users:        make(map[string]core.User),
		interactions: make(map[interactionKey]core.Interaction),
		reviews:      make(map[string][]core.Review),
	}
}

func cloneBook(b core.Book) core.Book {
	b.Authors = slices.Clone(b.Authors)
	b.Categories = slices.Clone(b.Categories)
	if b.Rating != nil {
		r := *b.Rating
		b.Rating = &r
	}
	if b.Embedding != nil {
		e := core.Embedding{Source: b.Embedding.Source, Values: slices.Clone(b.Embedding.Values)}
		b.Embedding = &e
	}
	return b
}

func (m *MemoryStore) Get(_ context.Context, id string) (core.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	if !ok {
		return core.Book{}, core.NewOpError("get book", id, core.ErrEntityNotFound)
	}
	return cloneBook(b), nil
}

func (m *MemoryStore) Query(_ context.Context, f Filter) ([]core.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var only map[string]bool
	if len(f.IDs) > 0 {
		only = make(map[string]bool, len(f.IDs))
		for _, id := range f.IDs {
			only[id] = true
		}
	}
	exclude := make(map[string]bool, len(f.ExcludeIDs))
	for _, id := range f.ExcludeIDs {
		exclude[id] = true
	}

	out := make([]core.Book, 0, len(m.books))
	for id, b := range m.books {
		if exclude[id] || (only != nil && !only[id]) {
			continue
		}
		out = append(out, cloneBook(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) Put(_ context.Context, b core.Book) error {
	b = cloneBook(b)
	normalizeRating(&b)
	m.mu.Lock()
	m.books[b.ID] = b
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) UpdateField(_ context.Context, id string, field core.BookField, value any) error {
	v, err := fieldValue(field, value)
	if err != nil {
		return core.NewOpError("update book", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return core.NewOpError("update book", id, core.ErrEntityNotFound)
	}
	switch field {
	case core.FieldEmbedding:
		e := v.(core.Embedding)
		e.Values = slices.Clone(e.Values)
		b.Embedding = &e
	case core.FieldAISummary:
		b.AISummary = v.(string)
	}
	m.books[id] = b
	return nil
}

func (m *MemoryStore) User(_ context.Context, id string) (core.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return core.User{}, core.NewOpError("get user", id, core.ErrUserNotFound)
	}
	return u, nil
}

func (m *MemoryStore) PutUser(_ context.Context, u core.User) error {
	m.mu.Lock()
	m.users[u.ID] = u
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Interactions(_ context.Context, userID string) ([]core.Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.Interaction
	for key, in := range m.interactions {
		if key.userID != userID {
			continue
		}
		if b, ok := m.books[key.bookID]; ok {
			bc := cloneBook(b)
			in.Book = &bc
		}
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := bookTitle(out[i]), bookTitle(out[j])
		if ti != tj {
			return ti < tj
		}
		return out[i].BookID < out[j].BookID
	})
	return out, nil
}

func bookTitle(in core.Interaction) string {
	if in.Book == nil {
		return ""
	}
	return in.Book.Title
}

func (m *MemoryStore) Interaction(_ context.Context, userID, bookID string) (core.Interaction, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	in, ok := m.interactions[interactionKey{userID, bookID}]
	return in, ok, nil
}

func (m *MemoryStore) RecordInteraction(_ context.Context, in core.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[in.BookID]; !ok {
		return core.NewOpError("record interaction", in.BookID, core.ErrEntityNotFound)
	}
	in.Book = nil
	m.interactions[interactionKey{in.UserID, in.BookID}] = in
	return nil
}

func (m *MemoryStore) Reviews(_ context.Context, bookID string) ([]core.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.reviews[bookID])
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) AddReview(_ context.Context, r core.Review) (core.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[r.BookID]; !ok {
		return core.Review{}, core.NewOpError("add review", r.BookID, core.ErrEntityNotFound)
	}
	m.nextReviewID++
	r.ID = m.nextReviewID
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	m.reviews[r.BookID] = append(m.reviews[r.BookID], r)
	return r, nil
}

func (m *MemoryStore) Close() error { return nil }
