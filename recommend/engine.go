package recommend

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hubenschmidt/go-shelf/core"
	"github.com/hubenschmidt/go-shelf/vector"
)

type Engine struct {
	cfg        Config
	embeddings EmbeddingSource
	index      *vector.Index
	log        zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewEngine builds an engine. index may be nil; when set it is consulted
// for candidate embeddings before the cache.
//
//nolint:gocritic // zerolog.Logger passed by value
func NewEngine(cfg Config, embeddings EmbeddingSource, index *vector.Index, log zerolog.Logger) *Engine {
	seed := uint64(cfg.Seed)
	if cfg.Seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Engine{
		cfg:        cfg,
		embeddings: embeddings,
		index:      index,
		log:        log,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// ComputeRecommendations returns at most topN book ids for the user. An
// empty interaction history yields a uniform random pick from pool.
// Embedding failures only degrade individual candidates to heuristic
// scoring; the only error returned is ctx's.
func (e *Engine) ComputeRecommendations(ctx context.Context, userID string, interactions []core.Interaction, pool []core.Book, topN int) ([]string, error) {
	if topN <= 0 {
		topN = e.cfg.TopN
	}
	log := e.log.With().Str("user_id", userID).Logger()

	if len(interactions) == 0 {
		ids := e.coldStart(pool, topN)
		log.Debug().Int("count", len(ids)).Msg("cold start recommendations")
		return ids, nil
	}

	ranked, err := e.Rank(ctx, interactions, pool)
	if err != nil {
		return nil, err
	}
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	ids := make([]string, len(ranked))
	for i, item := range ranked {
		ids[i] = item.BookID
	}
	log.Debug().Int("count", len(ids)).Msg("recommendations computed")
	return ids, nil
}

// Rank scores every candidate in pool that the user has not interacted
// with. Equal scores keep pool order.
func (e *Engine) Rank(ctx context.Context, interactions []core.Interaction, pool []core.Book) ([]ScoredItem, error) {
	exclude := buildExclusionSet(interactions)
	profile := e.buildProfile(ctx, interactions)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := filterCandidates(pool, exclude)
	items := make([]ScoredItem, 0, len(candidates))
	var cosine int
	for _, book := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := e.score(ctx, profile, book)
		if item.Method == MethodCosine {
			cosine++
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})

	e.log.Debug().
		Int("candidates", len(items)).
		Int("cosine_scored", cosine).
		Bool("user_vector", profile.hasVector()).
		Msg("candidates ranked")
	return items, nil
}

func buildExclusionSet(interactions []core.Interaction) map[string]struct{} {
	exclude := make(map[string]struct{}, len(interactions))
	for _, in := range interactions {
		exclude[in.BookID] = struct{}{}
	}
	return exclude
}

// filterCandidates drops excluded and duplicate ids, keeping pool order.
func filterCandidates(pool []core.Book, exclude map[string]struct{}) []core.Book {
	seen := make(map[string]struct{}, len(pool))
	out := make([]core.Book, 0, len(pool))
	for _, b := range pool {
		if _, skip := exclude[b.ID]; skip {
			continue
		}
		if _, dup := seen[b.ID]; dup {
			continue
		}
		seen[b.ID] = struct{}{}
		out = append(out, b)
	}
	return out
}

func (e *Engine) coldStart(pool []core.Book, topN int) []string {
	unique := filterCandidates(pool, nil)

	e.rngMu.Lock()
	perm := e.rng.Perm(len(unique))
	e.rngMu.Unlock()

	n := min(topN, len(unique))
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = unique[perm[i]].ID
	}
	return ids
}
