package vector

import (
	"sort"
	"sync"

	"github.com/hubenschmidt/go-shelf/core"
)

// Index holds candidate embeddings keyed by book id. It is built explicitly
// and handed to the recommender; call Rebuild when the catalog changes and
// Upsert whenever a new embedding is persisted.
type Index struct {
	mu      sync.RWMutex
	entries map[string]core.Embedding
	version uint64
}

// SearchResult is a book id with its similarity to the query.
type SearchResult struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

func NewIndex() *Index {
	return &Index{entries: make(map[string]core.Embedding)}
}

// Rebuild replaces the index content with the embeddings carried by books.
func (x *Index) Rebuild(books []core.Book) {
	entries := make(map[string]core.Embedding, len(books))
	for _, b := range books {
		if b.HasEmbedding() {
			entries[b.ID] = *b.Embedding
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = entries
	x.version++
}

func (x *Index) Upsert(id string, emb core.Embedding) {
	if emb.IsEmpty() {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries[id] = emb
}

func (x *Index) Get(id string) (core.Embedding, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	e, ok := x.entries[id]
	return e, ok
}

func (x *Index) Delete(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.entries, id)
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Version increments on every Rebuild.
func (x *Index) Version() uint64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.version
}

// Search ranks indexed embeddings from the query's group by cosine similarity.
// Entries from other providers or dimensions are skipped.
func (x *Index) Search(query core.Embedding, topK int) []SearchResult {
	x.mu.RLock()
	g := GroupOf(query)
	results := make([]SearchResult, 0, len(x.entries))
	for id, e := range x.entries {
		if GroupOf(e) != g {
			continue
		}
		score, err := CosineSimilarity(query.Values, e.Values)
		if err != nil {
			continue
		}
		results = append(results, SearchResult{ID: id, Score: score})
	}
	x.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].ID < results[j].ID
		}
		return results[i].Score > results[j].Score
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}
