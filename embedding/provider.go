// Package embedding produces book embeddings through an ordered provider
// chain and writes them through to the book record, the cache and the
// similarity index.
package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/hubenschmidt/go-shelf/cache"
	"github.com/hubenschmidt/go-shelf/core"
	"github.com/hubenschmidt/go-shelf/vector"
)

// DefaultTTL is how long a generated embedding stays cached.
const DefaultTTL = 7 * 24 * time.Hour

// Embedder is satisfied by *llm.EmbedChain.
type Embedder interface {
	Embed(ctx context.Context, text string) (core.Embedding, error)
}

// Writer persists a single book field.
type Writer interface {
	UpdateField(ctx context.Context, id string, field core.BookField, value any) error
}

type Provider struct {
	embedder Embedder
	writer   Writer
	cache    cache.Cache
	index    *vector.Index
	ttl      time.Duration
	group    singleflight.Group
	log      zerolog.Logger
}

type Option func(*Provider)

// WithIndex upserts every generated embedding into idx.
func WithIndex(idx *vector.Index) Option {
	return func(p *Provider) { p.index = idx }
}

func WithTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

//nolint:gocritic // zerolog.Logger passed by value
func WithLogger(log zerolog.Logger) Option {
	return func(p *Provider) { p.log = log }
}

func New(embedder Embedder, writer Writer, c cache.Cache, opts ...Option) *Provider {
	p := &Provider{
		embedder: embedder,
		writer:   writer,
		cache:    c,
		ttl:      DefaultTTL,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetOrCreate returns the book's embedding, generating and persisting it on
// first need. A book that already carries an embedding is returned as is,
// and a cached embedding short-circuits the provider chain.
// Provider failures are logged; the false result means no embedding is
// available and callers fall back to heuristics.
func (p *Provider) GetOrCreate(ctx context.Context, book core.Book) (core.Embedding, bool) {
	if book.HasEmbedding() {
		return *book.Embedding, true
	}
	if emb, ok := p.Cached(ctx, book.ID); ok {
		return emb, true
	}

	text := book.EmbeddingText()
	if text == "" {
		p.log.Debug().Str("book_id", book.ID).Msg("no text to embed")
		return core.Embedding{}, false
	}

	v, err, shared := p.group.Do(book.ID, func() (any, error) {
		return p.generate(ctx, book.ID, text)
	})
	if err != nil {
		p.log.Warn().Err(err).Str("book_id", book.ID).Msg("embedding unavailable")
		return core.Embedding{}, false
	}
	if shared {
		p.log.Debug().Str("book_id", book.ID).Msg("joined in-flight embedding generation")
	}
	return v.(core.Embedding), true
}

func (p *Provider) generate(ctx context.Context, bookID, text string) (core.Embedding, error) {
	emb, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return core.Embedding{}, err
	}
	if !vector.Valid(emb.Values) {
		return core.Embedding{}, errors.New("provider returned an invalid vector")
	}

	if err := p.writer.UpdateField(ctx, bookID, core.FieldEmbedding, emb); err != nil {
		p.log.Warn().Err(err).Str("book_id", bookID).Msg("failed to persist embedding")
	}
	if err := cache.SetJSON(ctx, p.cache, cache.BookEmbeddingKey(bookID), emb, p.ttl); err != nil {
		p.log.Warn().Err(err).Str("book_id", bookID).Msg("failed to cache embedding")
	}
	if p.index != nil {
		p.index.Upsert(bookID, emb)
	}

	p.log.Info().Str("book_id", bookID).Str("source", emb.Source).Int("dim", emb.Dim()).Msg("embedding generated")
	return emb, nil
}

// Cached returns the embedding stored under the book's cache key, if any.
func (p *Provider) Cached(ctx context.Context, bookID string) (core.Embedding, bool) {
	var emb core.Embedding
	ok, err := cache.GetJSON(ctx, p.cache, cache.BookEmbeddingKey(bookID), &emb)
	if err != nil {
		p.log.Warn().Err(err).Str("book_id", bookID).Msg("embedding cache read failed")
		return core.Embedding{}, false
	}
	if !ok || emb.IsEmpty() {
		return core.Embedding{}, false
	}
	return emb, true
}

// Lookup resolves an embedding from the cache, then the persisted record,
// then the provider chain.
func (p *Provider) Lookup(ctx context.Context, book core.Book) (core.Embedding, bool) {
	if emb, ok := p.Cached(ctx, book.ID); ok {
		return emb, true
	}
	return p.GetOrCreate(ctx, book)
}

// Known resolves an embedding from the cache or the persisted record only.
// It never calls a provider.
func (p *Provider) Known(ctx context.Context, book core.Book) (core.Embedding, bool) {
	if emb, ok := p.Cached(ctx, book.ID); ok {
		return emb, true
	}
	if book.HasEmbedding() {
		return *book.Embedding, true
	}
	return core.Embedding{}, false
}
