package recommend

import (
	"context"
	"errors"
	"math"

	"github.com/hubenschmidt/go-shelf/core"
	"github.com/hubenschmidt/go-shelf/vector"
)

// profile is what the engine knows about the user's taste.
type profile struct {
	group      vector.Group
	userVector []float64
	authors    map[string]struct{}
	categories map[string]struct{}
}

func (p *profile) hasVector() bool {
	return len(p.userVector) > 0
}

func (e *Engine) buildProfile(ctx context.Context, interactions []core.Interaction) *profile {
	p := &profile{
		authors:    make(map[string]struct{}),
		categories: make(map[string]struct{}),
	}

	embs := make([]core.Embedding, 0, len(interactions))
	for _, in := range interactions {
		if in.Book == nil {
			continue
		}
		for _, a := range in.Book.Authors {
			p.authors[a] = struct{}{}
		}
		for _, c := range in.Book.Categories {
			p.categories[c] = struct{}{}
		}
		if ctx.Err() != nil {
			continue
		}
		if emb, ok := e.embeddings.Lookup(ctx, *in.Book); ok {
			embs = append(embs, emb)
		}
	}

	group, members := vector.Dominant(embs)
	if len(members) == 0 {
		return p
	}
	mean, err := vector.Mean(members)
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to build user vector")
		return p
	}
	if skipped := len(embs) - len(members); skipped > 0 {
		e.log.Debug().Int("skipped", skipped).Str("source", group.Source).Int("dim", group.Dim).
			Msg("ignored embeddings outside the dominant group")
	}
	p.group = group
	p.userVector = mean
	return p
}

func (e *Engine) candidateEmbedding(ctx context.Context, book core.Book) (core.Embedding, bool) {
	if e.index != nil {
		if emb, ok := e.index.Get(book.ID); ok {
			return emb, true
		}
	}
	if e.cfg.GenerateCandidateEmbeddings {
		return e.embeddings.Lookup(ctx, book)
	}
	return e.embeddings.Known(ctx, book)
}

func (e *Engine) score(ctx context.Context, p *profile, book core.Book) ScoredItem {
	item := ScoredItem{BookID: book.ID, Method: MethodHeuristic}

	scored := false
	if p.hasVector() {
		if emb, ok := e.candidateEmbedding(ctx, book); ok && vector.GroupOf(emb) == p.group {
			sim, err := vector.CosineSimilarity(p.userVector, emb.Values)
			switch {
			case err == nil:
				item.Score, item.Method, scored = sim, MethodCosine, true
			case errors.Is(err, core.ErrArityMismatch):
				e.log.Debug().Err(err).Str("book_id", book.ID).Msg("falling back to heuristic")
			}
		}
	}
	if !scored {
		item.Score = HeuristicScore(p.authors, p.categories, book)
	}

	item.Score += RatingBonus(book.Rating)
	return item
}

// HeuristicScore adds AuthorMatchWeight when any author is shared and
// CategoryMatchWeight when any category is shared.
func HeuristicScore(authors, categories map[string]struct{}, book core.Book) float64 {
	var score float64
	for _, a := range book.Authors {
		if _, ok := authors[a]; ok {
			score += AuthorMatchWeight
			break
		}
	}
	for _, c := range book.Categories {
		if _, ok := categories[c]; ok {
			score += CategoryMatchWeight
			break
		}
	}
	return score
}

// RatingBonus is min(rating/10, MaxRatingBonus) on the canonical 0-5 scale.
func RatingBonus(rating *float64) float64 {
	if rating == nil {
		return 0
	}
	return math.Min(core.NormalizeRating(*rating)/10.0, MaxRatingBonus)
}
