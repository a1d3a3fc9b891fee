// Package embedding computes and maintains product description vectors used
// for semantic matching.
package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder turns text into a fixed-length vector. Implementations must be
// deterministic for the same model and input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelID() string
	Dimensions() int
}

// OpenAIEmbedder calls the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder creates an embedder for the given model.
func NewOpenAIEmbedder(client *openai.Client, model string, dimensions int) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client:     client,
		model:      model,
		dimensions: dimensions,
	}
}

// Embed returns the embedding vector for one text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return make([]float32, e.dimensions), nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(e.model),
		Input:      []string{text},
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return resp.Data[0].Embedding, nil
}

// ModelID identifies the producing model; stored alongside every vector.
func (e *OpenAIEmbedder) ModelID() string {
	return e.model
}

// Dimensions is the configured output vector length.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}
