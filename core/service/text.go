package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/siherrmann/halluguard/core/pipeline"
	"github.com/siherrmann/halluguard/helper"
	"github.com/siherrmann/halluguard/model"
)

// TextProcessingService extracts the entities of a single text and embeds it
type TextProcessingService struct {
	extractor pipeline.Extractor
	embedder  pipeline.EmbeddingGenerator // Optional
	config    model.ProcessingConfig
	log       *slog.Logger
}

// NewTextProcessingService creates a text processing service.
// Without embedder results carry no embedding.
func NewTextProcessingService(extractor pipeline.Extractor, embedder pipeline.EmbeddingGenerator, config model.ProcessingConfig, logger *slog.Logger) (*TextProcessingService, error) {
	if extractor == nil {
		return nil, helper.NewError("create text processing service", fmt.Errorf("extractor must be provided"))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TextProcessingService{
		extractor: extractor,
		embedder:  embedder,
		config:    config,
		log:       logger,
	}, nil
}

// Process trims text, extracts its entities and generates one embedding for it.
// nil entityTypes select the configured defaults.
func (s *TextProcessingService) Process(ctx context.Context, text string, entityTypes []string) (*model.TextProcessingResult, error) {
	normalized := strings.TrimSpace(text)
	if normalized == "" {
		return nil, helper.NewValidationError("text", "text cannot be empty or only whitespace")
	}
	if entityTypes != nil && len(entityTypes) == 0 {
		return nil, helper.NewValidationError("entity_types", "entity_types cannot be an empty list")
	}
	entityTypes = s.config.ResolveEntityTypes(entityTypes)

	entities, err := extractEntities(ctx, s.extractor, normalized, entityTypes, s.config.StrictExtraction, s.log)
	if err != nil {
		return nil, helper.NewError("extract entities", err)
	}

	result := &model.TextProcessingResult{
		Text:     normalized,
		Entities: entities,
	}
	if s.embedder == nil {
		return result, nil
	}

	embeddings, err := s.embedder.Generate(ctx, []string{normalized})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(embeddings) == 0 || embeddings[0] == nil {
		return nil, ErrEmbeddingFailed
	}
	result.Embedding = embeddings[0]

	s.log.Debug("Processed text", slog.Int("num_entities", len(entities)), slog.Int("embedding_dim", len(result.Embedding)))

	return result, nil
}
