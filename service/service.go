// Package service is the request-path facade. Everything that needs a
// remote call goes through the coordinator and answers ready or in
// progress; nothing here waits on a provider.
package service

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/hubenschmidt/go-shelf/cache"
	"github.com/hubenschmidt/go-shelf/coordinator"
	"github.com/hubenschmidt/go-shelf/core"
	"github.com/hubenschmidt/go-shelf/embedding"
	"github.com/hubenschmidt/go-shelf/recommend"
	"github.com/hubenschmidt/go-shelf/store"
	"github.com/hubenschmidt/go-shelf/summarize"
	"github.com/hubenschmidt/go-shelf/vector"
)

type Deps struct {
	Store       store.Store
	Cache       cache.Cache
	Coordinator *coordinator.Coordinator
	Engine      *recommend.Engine
	Embeddings  *embedding.Provider
	Summarizer  *summarize.Summarizer
	Index       *vector.Index
	Recommend   recommend.Config
	Log         zerolog.Logger
}

type Service struct {
	store      store.Store
	cache      cache.Cache
	coord      *coordinator.Coordinator
	engine     *recommend.Engine
	embeddings *embedding.Provider
	summarizer *summarize.Summarizer
	index      *vector.Index
	cfg        recommend.Config
	log        zerolog.Logger
}

// New builds the service and registers its computations with the
// coordinator.
//
//nolint:gocritic // Deps passed by value
func New(d Deps) (*Service, error) {
	s := &Service{
		store:      d.Store,
		cache:      d.Cache,
		coord:      d.Coordinator,
		engine:     d.Engine,
		embeddings: d.Embeddings,
		summarizer: d.Summarizer,
		index:      d.Index,
		cfg:        d.Recommend,
		log:        d.Log,
	}
	if s.index == nil {
		s.index = vector.NewIndex()
	}

	computations := map[coordinator.Kind]coordinator.Computation{
		coordinator.KindRecommendations: s.computeRecommendations,
		coordinator.KindEmbedding:       s.computeEmbedding,
		coordinator.KindBookSummary:     s.computeBookSummary,
		coordinator.KindTextSummary:     s.computeTextSummary,
		coordinator.KindAuthorDetail:    s.computeAuthorDetail,
	}
	for kind, fn := range computations {
		if err := s.coord.Register(kind, fn); err != nil {
			return nil, fmt.Errorf("register %s: %w", kind, err)
		}
	}
	return s, nil
}

func (s *Service) computeRecommendations(ctx context.Context, userID string, _ json.RawMessage) (any, error) {
	all, err := s.store.Interactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load interactions: %w", err)
	}
	interactions := make([]core.Interaction, 0, len(all))
	exclude := make([]string, 0, len(all))
	for _, in := range all {
		if in.Counts() {
			interactions = append(interactions, in)
			exclude = append(exclude, in.BookID)
		}
	}

	// Cold start samples the whole catalog; candidate_limit bounds scoring only.
	filter := store.Filter{ExcludeIDs: exclude, Limit: s.cfg.CandidateLimit}
	if len(interactions) == 0 {
		filter = store.Filter{}
	}
	pool, err := s.store.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	ids, err := s.engine.ComputeRecommendations(ctx, userID, interactions, pool, s.cfg.TopN)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *Service) computeEmbedding(ctx context.Context, bookID string, _ json.RawMessage) (any, error) {
	book, err := s.store.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}
	emb, ok := s.embeddings.GetOrCreate(ctx, book)
	if !ok {
		return nil, core.NewOpError("embed book", bookID, core.ErrEmbeddingUnavailable)
	}
	return emb, nil
}

func (s *Service) computeBookSummary(ctx context.Context, bookID string, _ json.RawMessage) (any, error) {
	return s.summarizer.BookSummary(ctx, bookID)
}

func (s *Service) computeAuthorDetail(ctx context.Context, name string, _ json.RawMessage) (any, error) {
	return s.summarizer.AuthorDetail(ctx, name)
}

type textArgs struct {
	Text     string `json:"text"`
	MaxWords int    `json:"max_words"`
}

func (s *Service) computeTextSummary(ctx context.Context, _ string, raw json.RawMessage) (any, error) {
	var args textArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("decode text args: %w", err)
	}
	return s.summarizer.Text(ctx, args.Text, args.MaxWords)
}
