// Package openai implements core.Embedder on the OpenAI embeddings API (or
// any compatible endpoint such as SiliconFlow or a local gateway).
package openai

import (
	"context"
	"errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = string(goopenai.SmallEmbedding3)

// Options configure an Embedder.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

// Embedder calls the embeddings endpoint.
type Embedder struct {
	client *goopenai.Client
	opts   Options
}

// New creates an Embedder.
func New(optFns ...func(o *Options)) *Embedder {
	opts := Options{Model: DefaultModel}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := goopenai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	return &Embedder{client: goopenai.NewClientWithConfig(cfg), opts: opts}
}

// Embed implements core.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds several texts with one request, preserving order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided for embedding")
	}

	resp, err := e.client.CreateEmbeddings(ctx, e.request(texts))
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	return vectors(resp, len(texts))
}

func (e *Embedder) request(texts []string) goopenai.EmbeddingRequest {
	return goopenai.EmbeddingRequest{
		Input:      texts,
		Model:      goopenai.EmbeddingModel(e.opts.Model),
		Dimensions: e.opts.Dimensions,
	}
}

func vectors(resp goopenai.EmbeddingResponse, n int) ([][]float32, error) {
	if len(resp.Data) != n {
		return nil, fmt.Errorf("embedding response has %d vectors, want %d", len(resp.Data), n)
	}
	out := make([][]float32, n)
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= n {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
