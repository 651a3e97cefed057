package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/siherrmann/halluguard/core/similarity"
	"github.com/siherrmann/halluguard/helper"
	"github.com/siherrmann/halluguard/model"
)

// Extractor finds entity mentions of the requested types in text.
// Empty text must not produce an error.
type Extractor interface {
	Extract(ctx context.Context, text string, entityTypes []string) ([]string, error)
}

// NamedExtractor is an extractor reporting a name for logs and metrics
type NamedExtractor interface {
	Extractor
	Name() string
}

// ExtractorFunc adapts a function to the Extractor interface
type ExtractorFunc func(ctx context.Context, text string, entityTypes []string) ([]string, error)

// Extract calls f
func (f ExtractorFunc) Extract(ctx context.Context, text string, entityTypes []string) ([]string, error) {
	return f(ctx, text, entityTypes)
}

// EmbeddingGenerator creates one embedding per text.
// A nil embedding marks a recoverable failure for that text, an error a failure of the generator.
type EmbeddingGenerator interface {
	Generate(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingGeneratorFunc adapts a function to the EmbeddingGenerator interface
type EmbeddingGeneratorFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Generate calls f
func (f EmbeddingGeneratorFunc) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

// Pipeline combines chunking, extraction and embedding of long documents
type Pipeline struct {
	Chunker   ChunkFunc
	Extractor Extractor
	Embedder  EmbeddingGenerator // Optional
	Matcher   *similarity.Matcher
	// Chunks longer than MaxSegmentChars are segmented before extraction
	MaxSegmentChars int
	MinSegmentChars int
	// Return total extraction failures instead of treating them as zero entities
	StrictExtraction bool
	// Logging
	log *slog.Logger
}

// NewPipeline creates a new processing pipeline with the default chunker and segment bounds
func NewPipeline(extractor Extractor, embedder EmbeddingGenerator, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		Chunker:         Split,
		Extractor:       extractor,
		Embedder:        embedder,
		Matcher:         similarity.Default(),
		MaxSegmentChars: model.DefaultMaxSegmentChars,
		MinSegmentChars: model.DefaultMinSegmentChars,
		log:             logger,
	}
}

// SetChunker sets the chunking function
func (p *Pipeline) SetChunker(chunker ChunkFunc) {
	p.Chunker = chunker
}

// SetSegmentBounds sets the segment bounds used for over-long chunks
func (p *Pipeline) SetSegmentBounds(maxSegmentChars int, minSegmentChars int) {
	p.MaxSegmentChars = maxSegmentChars
	p.MinSegmentChars = minSegmentChars
}

// ExtractChunk extracts the entities of one chunk.
// Over-long chunks are segmented and the per segment results merged.
func (p *Pipeline) ExtractChunk(ctx context.Context, text string, entityTypes []string) ([]string, error) {
	segments := []string{text}
	if p.MaxSegmentChars > 0 && utf8.RuneCountInString(text) > p.MaxSegmentChars {
		segments = Segment(text, p.MaxSegmentChars, p.MinSegmentChars)
		p.log.Debug("Segmented chunk for extraction", slog.Int("num_segments", len(segments)))
	}

	var mentions []string
	for _, segment := range segments {
		entities, err := p.Extractor.Extract(ctx, segment, entityTypes)
		if err != nil {
			if errors.Is(err, ErrAllExtractorsFailed) && !p.StrictExtraction {
				p.log.Warn("No extractor succeeded, continuing without entities", slog.String("error", err.Error()))
				continue
			}
			return nil, err
		}
		mentions = append(mentions, entities...)
	}

	return p.Matcher.Dedupe(mentions), nil
}

// Embed generates embeddings for all chunks in one generator call.
// Chunks keep a nil embedding when the generator could not embed their text.
func (p *Pipeline) Embed(ctx context.Context, chunks []model.Chunk) ([]model.Chunk, error) {
	if p.Embedder == nil || len(chunks) == 0 {
		return chunks, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	embeddings, err := p.Embedder.Generate(ctx, texts)
	if err != nil {
		return nil, helper.NewError("generate embeddings", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, helper.NewError("generate embeddings", fmt.Errorf("embedding count mismatch: got %d embeddings for %d chunks", len(embeddings), len(chunks)))
	}

	embedded := make([]model.Chunk, len(chunks))
	missing := 0
	for i, chunk := range chunks {
		if embeddings[i] == nil {
			missing++
		}
		embedded[i] = chunk.WithEmbedding(embeddings[i])
	}
	if missing > 0 {
		p.log.Warn("Some chunks have no embedding", slog.Int("missing", missing), slog.Int("num_chunks", len(chunks)))
	}

	return embedded, nil
}

// Process chunks text, extracts the entities of every chunk and embeds the chunks
func (p *Pipeline) Process(ctx context.Context, text string, chunkSize int, chunkOverlap int, entityTypes []string) ([]model.Chunk, error) {
	if p.Extractor == nil {
		return nil, helper.NewError("process", fmt.Errorf("pipeline has no extractor"))
	}

	chunks, err := p.Chunker(text, chunkSize, chunkOverlap, 0)
	if err != nil {
		return nil, err
	}

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entities, err := p.ExtractChunk(ctx, chunk.Text, entityTypes)
		if err != nil {
			return nil, helper.NewError(fmt.Sprintf("extract chunk %d", chunk.ID), err)
		}
		chunks[i] = chunk.WithEntities(entities)
	}

	p.log.Debug("Extracted entities from chunks", slog.Int("num_chunks", len(chunks)))

	return p.Embed(ctx, chunks)
}
