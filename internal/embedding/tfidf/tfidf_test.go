package tfidf

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestEmbed_RequiresPrepare(t *testing.T) {
	_, err := NewEmbedder().Embed(context.Background(), "hello")
	assert.Error(t, err)
}

func TestPrepare_EmptyCorpus(t *testing.T) {
	assert.Error(t, NewEmbedder().Prepare(context.Background(), nil))
}

func TestPrepare_OnlyStopwords(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder()
	require.NoError(t, e.Prepare(ctx, []string{"the and of", ""}))
	assert.Zero(t, e.Dimension())

	v, err := e.Embed(ctx, "tomatoes in the garden")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestEmbed_NormalisedAndDimensioned(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder()
	require.NoError(t, e.Prepare(ctx, []string{"tomatoes grow in the garden", "bread needs flour"}))
	assert.Equal(t, "tfidf", e.Name())
	assert.Equal(t, 6, e.Dimension())

	v, err := e.Embed(ctx, "tomatoes garden")
	require.NoError(t, err)
	require.Len(t, v, e.Dimension())
	assert.InDelta(t, 1.0, math.Sqrt(dot(v, v)), 1e-9)
}

func TestEmbed_OutOfVocabularyIsZero(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder()
	require.NoError(t, e.Prepare(ctx, []string{"tomatoes grow in the garden"}))

	v, err := e.Embed(ctx, "quantum chromodynamics")
	require.NoError(t, err)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestEmbed_SimilarTextScoresHigher(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder()
	corpus := []string{
		"Grow tomatoes in a sunny garden bed and water the tomatoes daily.",
		"Bake bread with flour, yeast and salt in a hot oven.",
	}
	require.NoError(t, e.Prepare(ctx, corpus))

	q, err := e.Embed(ctx, "how do I grow tomatoes")
	require.NoError(t, err)
	garden, err := e.Embed(ctx, corpus[0])
	require.NoError(t, err)
	bread, err := e.Embed(ctx, corpus[1])
	require.NoError(t, err)

	assert.Greater(t, dot(q, garden), dot(q, bread))
}
