package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode"

	"github.com/siherrmann/halluguard/helper"
	"github.com/siherrmann/halluguard/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capitalizedWords is a fake extractor returning every capitalized word
func capitalizedWords(ctx context.Context, text string, entityTypes []string) ([]string, error) {
	mentions := []string{}
	for _, field := range strings.Fields(text) {
		word := strings.TrimFunc(field, unicode.IsPunct)
		if word != "" && unicode.IsUpper([]rune(word)[0]) {
			mentions = append(mentions, word)
		}
	}
	return mentions, nil
}

// fixedEmbedder returns the rune count of every text as a one-dimensional embedding
func fixedEmbedder(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = []float32{float32(len([]rune(text)))}
	}
	return embeddings, nil
}

func failingExtractor(ctx context.Context, text string, entityTypes []string) ([]string, error) {
	return nil, errors.New("backend down")
}

func TestNewPipeline(t *testing.T) {
	t.Run("Create new pipeline", func(t *testing.T) {
		pipeline := NewPipeline(ExtractorFunc(capitalizedWords), nil, nil)

		assert.NotNil(t, pipeline)
		assert.NotNil(t, pipeline.Chunker)
		assert.NotNil(t, pipeline.Extractor)
		assert.Nil(t, pipeline.Embedder)
		assert.NotNil(t, pipeline.Matcher)
		assert.Equal(t, model.DefaultMaxSegmentChars, pipeline.MaxSegmentChars)
		assert.Equal(t, model.DefaultMinSegmentChars, pipeline.MinSegmentChars)
	})

	t.Run("Set chunker and segment bounds", func(t *testing.T) {
		pipeline := NewPipeline(ExtractorFunc(capitalizedWords), nil, nil)
		called := false
		pipeline.SetChunker(func(text string, chunkSize int, chunkOverlap int, startID int) ([]model.Chunk, error) {
			called = true
			return []model.Chunk{model.NewChunk(startID, text)}, nil
		})
		pipeline.SetSegmentBounds(50, 10)

		chunks, err := pipeline.Process(context.Background(), "Alice", 10, 0, []string{"Person"})

		require.NoError(t, err)
		assert.True(t, called, "Expected the custom chunker to be used")
		assert.Len(t, chunks, 1)
		assert.Equal(t, 50, pipeline.MaxSegmentChars)
		assert.Equal(t, 10, pipeline.MinSegmentChars)
	})
}

func TestPipelineExtractChunk(t *testing.T) {
	ctx := context.Background()
	types := []string{"Person"}

	t.Run("Valid call ExtractChunk without segmentation", func(t *testing.T) {
		var seen []string
		pipeline := NewPipeline(ExtractorFunc(func(ctx context.Context, text string, entityTypes []string) ([]string, error) {
			seen = append(seen, text)
			return capitalizedWords(ctx, text, entityTypes)
		}), nil, nil)

		entities, err := pipeline.ExtractChunk(ctx, "Alice met Bob.", types)

		require.NoError(t, err)
		assert.Equal(t, []string{"Alice", "Bob"}, entities)
		assert.Equal(t, []string{"Alice met Bob."}, seen, "Expected a single extractor call")
	})

	t.Run("Over-long chunk is segmented and merged", func(t *testing.T) {
		var seen []string
		pipeline := NewPipeline(ExtractorFunc(func(ctx context.Context, text string, entityTypes []string) ([]string, error) {
			seen = append(seen, text)
			return capitalizedWords(ctx, text, entityTypes)
		}), nil, nil)
		pipeline.SetSegmentBounds(20, 5)

		entities, err := pipeline.ExtractChunk(ctx, "Alice met Bob. Bob met Carol. Carol met Alice.", types)

		require.NoError(t, err)
		assert.Equal(t, []string{"Alice", "Bob", "Carol"}, entities, "Expected entities merged across segments")
		assert.Greater(t, len(seen), 1, "Expected several segments")
		for _, segment := range seen {
			assert.LessOrEqual(t, len([]rune(segment)), 20)
		}
	})

	t.Run("All extractors failing yields no entities", func(t *testing.T) {
		composite, err := NewCompositeExtractor(nil, ExtractorFunc(failingExtractor))
		require.NoError(t, err)
		pipeline := NewPipeline(composite, nil, nil)

		entities, err := pipeline.ExtractChunk(ctx, "Alice met Bob.", types)

		require.NoError(t, err)
		assert.Empty(t, entities)
	})

	t.Run("All extractors failing in strict mode", func(t *testing.T) {
		composite, err := NewCompositeExtractor(nil, ExtractorFunc(failingExtractor))
		require.NoError(t, err)
		pipeline := NewPipeline(composite, nil, nil)
		pipeline.StrictExtraction = true

		entities, err := pipeline.ExtractChunk(ctx, "Alice met Bob.", types)

		assert.ErrorIs(t, err, ErrAllExtractorsFailed)
		assert.Nil(t, entities)
	})
}

func TestPipelineEmbed(t *testing.T) {
	ctx := context.Background()
	chunks := []model.Chunk{model.NewChunk(0, "abc"), model.NewChunk(1, "de")}

	t.Run("Valid call Embed", func(t *testing.T) {
		pipeline := NewPipeline(ExtractorFunc(capitalizedWords), EmbeddingGeneratorFunc(fixedEmbedder), nil)

		embedded, err := pipeline.Embed(ctx, chunks)

		require.NoError(t, err)
		require.Len(t, embedded, 2)
		assert.Equal(t, []float32{3}, embedded[0].Embedding)
		assert.Equal(t, []float32{2}, embedded[1].Embedding)
		assert.Nil(t, chunks[0].Embedding, "Expected the input chunks to stay unchanged")
	})

	t.Run("Missing embeddings are kept as nil", func(t *testing.T) {
		pipeline := NewPipeline(ExtractorFunc(capitalizedWords), EmbeddingGeneratorFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{nil, {1}}, nil
		}), nil)

		embedded, err := pipeline.Embed(ctx, chunks)

		require.NoError(t, err)
		assert.Nil(t, embedded[0].Embedding)
		assert.Equal(t, []float32{1}, embedded[1].Embedding)
	})

	t.Run("Embedding count mismatch", func(t *testing.T) {
		pipeline := NewPipeline(ExtractorFunc(capitalizedWords), EmbeddingGeneratorFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1}}, nil
		}), nil)

		embedded, err := pipeline.Embed(ctx, chunks)

		assert.Error(t, err)
		assert.Nil(t, embedded)
	})

	t.Run("Generator failure", func(t *testing.T) {
		errDown := errors.New("generator down")
		pipeline := NewPipeline(ExtractorFunc(capitalizedWords), EmbeddingGeneratorFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, errDown
		}), nil)

		embedded, err := pipeline.Embed(ctx, chunks)

		assert.ErrorIs(t, err, errDown)
		assert.Nil(t, embedded)
	})

	t.Run("No embedder leaves chunks unchanged", func(t *testing.T) {
		pipeline := NewPipeline(ExtractorFunc(capitalizedWords), nil, nil)

		embedded, err := pipeline.Embed(ctx, chunks)

		require.NoError(t, err)
		assert.Equal(t, chunks, embedded)
	})
}

func TestPipelineProcess(t *testing.T) {
	ctx := context.Background()
	types := []string{"Person"}

	t.Run("Valid call Process", func(t *testing.T) {
		pipeline := NewPipeline(ExtractorFunc(capitalizedWords), EmbeddingGeneratorFunc(fixedEmbedder), nil)

		chunks, err := pipeline.Process(ctx, "Alice met Bob. Carol met Dave.", 15, 0, types)

		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "Alice met Bob. ", chunks[0].Text)
		assert.Equal(t, []string{"Alice", "Bob"}, chunks[0].Entities)
		assert.Equal(t, []string{"Carol", "Dave"}, chunks[1].Entities)
		assert.Equal(t, []float32{15}, chunks[0].Embedding)
		assert.Equal(t, 1, chunks[1].ID)
	})

	t.Run("Invalid chunk parameters", func(t *testing.T) {
		pipeline := NewPipeline(ExtractorFunc(capitalizedWords), nil, nil)

		chunks, err := pipeline.Process(ctx, "Alice", 10, 10, types)

		assert.True(t, helper.IsValidationError(err), "Expected a validation error")
		assert.Nil(t, chunks)
	})

	t.Run("Pipeline without extractor", func(t *testing.T) {
		pipeline := NewPipeline(nil, nil, nil)

		chunks, err := pipeline.Process(ctx, "Alice", 10, 0, types)

		assert.Error(t, err)
		assert.Nil(t, chunks)
	})

	t.Run("Extractor failure aborts processing", func(t *testing.T) {
		pipeline := NewPipeline(ExtractorFunc(failingExtractor), nil, nil)

		chunks, err := pipeline.Process(ctx, "Alice", 10, 0, types)

		assert.Error(t, err, "Expected a plain extractor error to be returned")
		assert.Nil(t, chunks)
	})
}
