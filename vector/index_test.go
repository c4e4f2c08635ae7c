package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hubenschmidt/go-shelf/core"
)

func TestIndex_RebuildAndSearch(t *testing.T) {
	idx := NewIndex()
	idx.Rebuild([]core.Book{
		{ID: "a", Embedding: &core.Embedding{Source: "openai", Values: []float64{1, 0}}},
		{ID: "b", Embedding: &core.Embedding{Source: "openai", Values: []float64{0, 1}}},
		{ID: "c", Embedding: &core.Embedding{Source: "gemini", Values: []float64{1, 0}}},
		{ID: "d"},
	})

	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, uint64(1), idx.Version())

	results := idx.Search(core.Embedding{Source: "openai", Values: []float64{1, 0.1}}, 0)
	if assert.Len(t, results, 2) {
		assert.Equal(t, "a", results[0].ID)
		assert.Equal(t, "b", results[1].ID)
	}

	idx.Rebuild(nil)
	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, uint64(2), idx.Version())
}

func TestIndex_UpsertDelete(t *testing.T) {
	idx := NewIndex()
	idx.Upsert("x", core.Embedding{})
	assert.Equal(t, 0, idx.Len())

	idx.Upsert("x", core.Embedding{Source: "openai", Values: []float64{1}})
	e, ok := idx.Get("x")
	assert.True(t, ok)
	assert.Equal(t, "openai", e.Source)

	idx.Delete("x")
	_, ok = idx.Get("x")
	assert.False(t, ok)
}
