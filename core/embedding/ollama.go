package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"github.com/siherrmann/halluguard/helper"
)

// OllamaGenerator generates embeddings with the Ollama embed API
type OllamaGenerator struct {
	model   string
	batcher batcher

	Client *api.Client
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewOllamaGenerator creates a generator for the Ollama server at params.BaseURL
func NewOllamaGenerator(params GeneratorParams, logger *slog.Logger) (*OllamaGenerator, error) {
	if params.BaseURL == "" || params.Model == "" {
		return nil, helper.NewError("create ollama generator", fmt.Errorf("base url and model must be set"))
	}
	u, err := url.Parse(params.BaseURL)
	if err != nil {
		return nil, helper.NewError("create ollama generator", err)
	}
	params = params.withDefaults()

	httpClient := &http.Client{}
	if params.APIKey != "" {
		httpClient.Transport = &headerTransport{
			headers: map[string]string{
				"Authorization": "Bearer " + params.APIKey,
			},
			rt: http.DefaultTransport,
		}
	}

	return &OllamaGenerator{
		model:   params.Model,
		batcher: newBatcher("ollama", params, isFatalOllamaError, logger),
		Client:  api.NewClient(u, httpClient),
	}, nil
}

// Generate implements pipeline.EmbeddingGenerator
func (g *OllamaGenerator) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	return g.batcher.generate(ctx, texts, g.embedBatch)
}

func (g *OllamaGenerator) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	res, err := g.Client.Embed(ctx, &api.EmbedRequest{
		Model: g.model,
		Input: texts,
	})
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(res.Embeddings))
	for i, v := range res.Embeddings {
		if len(v) == 0 {
			continue
		}
		vec := make([]float32, 0, len(v))
		for _, val := range v {
			vec = append(vec, float32(val))
		}
		out[i] = vec
	}
	return out, nil
}

func isFatalOllamaError(err error) bool {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode < http.StatusInternalServerError
	}
	return false
}
