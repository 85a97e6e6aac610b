package openai

import (
	"context"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest(t *testing.T) {
	e := New(func(o *Options) {
		o.APIKey = "sk-test"
		o.Dimensions = 256
	})

	req := e.request([]string{"latte"})
	assert.Equal(t, goopenai.EmbeddingModel(DefaultModel), req.Model)
	assert.Equal(t, 256, req.Dimensions)
	assert.Equal(t, []string{"latte"}, req.Input)
}

func TestVectors_ReordersByIndex(t *testing.T) {
	resp := goopenai.EmbeddingResponse{Data: []goopenai.Embedding{
		{Index: 1, Embedding: []float32{0, 1}},
		{Index: 0, Embedding: []float32{1, 0}},
	}}

	out, err := vectors(resp, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, out)

	_, err = vectors(resp, 3)
	assert.Error(t, err)
}

func TestEmbedBatch_RejectsEmptyInput(t *testing.T) {
	_, err := New().EmbedBatch(context.Background(), nil)
	assert.Error(t, err)
}
