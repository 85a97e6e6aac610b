package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestHash_Deterministic(t *testing.T) {
	h := NewHash(0)
	assert.Equal(t, DefaultDimensions, h.Dimensions())

	a, err := h.Embed(context.Background(), "Blueberry muffin with nuts")
	require.NoError(t, err)
	b, err := h.Embed(context.Background(), "Blueberry muffin with nuts")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, cosine(a, a), 1e-6)
}

func TestHash_SharedWordsAreCloser(t *testing.T) {
	h := NewHash(512)
	ctx := context.Background()

	q, _ := h.Embed(ctx, "do the muffins contain nuts?")
	muffin, _ := h.Embed(ctx, "Blueberry Muffin. Muffin with wild blueberries. Contains nuts.")
	latte, _ := h.Embed(ctx, "Latte. Espresso with steamed milk.")

	assert.Greater(t, cosine(q, muffin), cosine(q, latte))
}

func TestHash_EmptyText(t *testing.T) {
	v, err := NewHash(8).Embed(context.Background(), "a b")
	require.NoError(t, err)
	for _, x := range v {
		assert.False(t, math.IsNaN(float64(x)))
		assert.Zero(t, x)
	}
}
