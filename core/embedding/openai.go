package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/siherrmann/halluguard/helper"
)

// OpenAIGenerator generates embeddings with an OpenAI compatible API such as LM Studio
type OpenAIGenerator struct {
	model   string
	batcher batcher

	EmbeddingClient *openai.Client
}

// NewOpenAIGenerator creates a generator for the API at params.BaseURL.
// LM Studio accepts any API key, so an empty key is replaced by a placeholder.
func NewOpenAIGenerator(params GeneratorParams, logger *slog.Logger) (*OpenAIGenerator, error) {
	if params.BaseURL == "" || params.Model == "" {
		return nil, helper.NewError("create openai generator", fmt.Errorf("base url and model must be set"))
	}
	params = params.withDefaults()

	apiKey := params.APIKey
	if apiKey == "" {
		apiKey = "lm-studio"
	}
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(params.BaseURL),
		option.WithMaxRetries(0),
	)

	return &OpenAIGenerator{
		model:           params.Model,
		batcher:         newBatcher("openai", params, isFatalOpenAIError, logger),
		EmbeddingClient: &client,
	}, nil
}

// Generate implements pipeline.EmbeddingGenerator
func (g *OpenAIGenerator) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	return g.batcher.generate(ctx, texts, g.embedBatch)
}

func (g *OpenAIGenerator) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: g.model,
	}

	response, err := g.EmbeddingClient.Embeddings.New(ctx, body)
	if err != nil {
		return nil, err
	}
	if len(response.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response size mismatch: got %d want %d", len(response.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, embedding := range response.Data {
		dataIdx := int(embedding.Index)
		if dataIdx < 0 || dataIdx >= len(texts) {
			return nil, fmt.Errorf("embedding index out of range: %d", embedding.Index)
		}
		vec := make([]float32, 0, len(embedding.Embedding))
		for _, v := range embedding.Embedding {
			vec = append(vec, float32(v))
		}
		out[dataIdx] = vec
	}
	return out, nil
}

func isFatalOpenAIError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode < http.StatusInternalServerError
	}
	return false
}
