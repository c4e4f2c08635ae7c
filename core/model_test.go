package core

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingText(t *testing.T) {
	tests := []struct {
		name string
		book Book
		want string
	}{
		{
			name: "all fields",
			book: Book{Title: "Dune", Authors: []string{"Frank Herbert", "X"}, ShortDescription: "short", FullDescription: "long"},
			want: "Dune Frank Herbert, X short",
		},
		{
			name: "falls back to full description",
			book: Book{Title: "Dune", FullDescription: "long"},
			want: "Dune long",
		},
		{
			name: "empty",
			book: Book{},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.book.EmbeddingText())
		})
	}
}

func TestEmbeddingUnmarshal(t *testing.T) {
	var tagged Embedding
	require.NoError(t, json.Unmarshal([]byte(`{"source":"openai","values":[0.1,0.2]}`), &tagged))
	assert.Equal(t, "openai", tagged.Source)
	assert.Equal(t, []float64{0.1, 0.2}, tagged.Values)

	var legacy Embedding
	require.NoError(t, json.Unmarshal([]byte(` [1, 2, 3]`), &legacy))
	assert.Empty(t, legacy.Source)
	assert.Equal(t, []float64{1, 2, 3}, legacy.Values)
	assert.Equal(t, 3, legacy.Dim())
}

func TestNormalizeRating(t *testing.T) {
	assert.InDelta(t, 0.0, NormalizeRating(-1), 1e-9)
	assert.InDelta(t, 4.5, NormalizeRating(4.5), 1e-9)
	assert.InDelta(t, 4.0, NormalizeRating(8), 1e-9)
	assert.InDelta(t, 5.0, NormalizeRating(12), 1e-9)
}

func TestAuthorLine(t *testing.T) {
	assert.Equal(t, "Unknown Author", Book{}.AuthorLine())
	assert.Equal(t, "A, B", Book{Authors: []string{"A", "B"}}.AuthorLine())
}

func TestStatus(t *testing.T) {
	s, ok := ParseStatus("RDG")
	assert.True(t, ok)
	assert.Equal(t, StatusReading, s)

	_, ok = ParseStatus("nope")
	assert.False(t, ok)

	assert.False(t, Interaction{IsFavorite: true}.Counts())
	assert.True(t, Interaction{Status: StatusRead}.Counts())
}

func TestOpError(t *testing.T) {
	err := NewOpError("get book", "b1", ErrEntityNotFound)
	assert.ErrorIs(t, err, ErrEntityNotFound)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "get book [subject=b1]: entity not found", err.Error())
}
