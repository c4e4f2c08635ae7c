package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/go-shelf/core"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"identical", []float64{1, 1}, []float64{1, 1}, 1},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"empty left", []float64{}, []float64{1}, 0},
		{"nil right", []float64{1, 2}, nil, 0},
		{"zero norm", []float64{0, 0}, []float64{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCosineSimilarity_ArityMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float64{1, 2, 3}, []float64{1, 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrArityMismatch)

	var arity *ArityError
	require.ErrorAs(t, err, &arity)
	assert.Equal(t, 3, arity.Left)
	assert.Equal(t, 2, arity.Right)
}

func TestDotAndNorm(t *testing.T) {
	dot, err := Dot([]float64{1, 2, 3}, []float64{4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, 32.0, dot)
	assert.InDelta(t, 5.0, Norm([]float64{3, 4}), 1e-12)
}

func TestMean(t *testing.T) {
	mean, err := Mean([][]float64{{1, 0}, {0, 1}, {2, 2}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1}, mean, 1e-12)

	_, err = Mean([][]float64{{1, 0}, {1}})
	assert.ErrorIs(t, err, core.ErrArityMismatch)
}

func TestNormalize(t *testing.T) {
	assert.InDeltaSlice(t, []float64{0.6, 0.8}, Normalize([]float64{3, 4}), 1e-12)
	assert.Equal(t, []float64{0, 0}, Normalize([]float64{0, 0}))
}

func TestDominant(t *testing.T) {
	embs := []core.Embedding{
		{Source: "gemini", Values: []float64{1, 2, 3}},
		{Source: "openai", Values: []float64{1, 0}},
		{Source: "openai", Values: []float64{0, 1}},
		{},
	}

	g, members := Dominant(embs)
	assert.Equal(t, Group{Source: "openai", Dim: 2}, g)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, members)

	t.Run("tie goes to earliest group", func(t *testing.T) {
		g, members := Dominant(embs[:2])
		assert.Equal(t, Group{Source: "gemini", Dim: 3}, g)
		assert.Len(t, members, 1)
	})

	t.Run("nothing usable", func(t *testing.T) {
		_, members := Dominant([]core.Embedding{{}})
		assert.Nil(t, members)
	})
}

func TestValid(t *testing.T) {
	assert.True(t, Valid([]float64{0, 1}))
	assert.False(t, Valid(nil))
	assert.False(t, Valid([]float64{1, math.NaN()}))
	assert.False(t, Valid([]float64{math.Inf(1)}))
}
