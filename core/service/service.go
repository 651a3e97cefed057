// Package service sequences chunking, extraction, embedding and diffing into
// the text processing, file processing and hallucination detection operations.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/siherrmann/halluguard/core/pipeline"
	"github.com/siherrmann/halluguard/model"
)

// ErrEmbeddingFailed is returned when no embedding could be generated for a text
var ErrEmbeddingFailed = errors.New("failed to generate embedding for text")

// Store persists file processing results
type Store interface {
	StoreResult(ctx context.Context, result *model.FileProcessingResult, fileName string, filePath string) (*model.ProcessedFile, error)
}

// extractEntities runs the extractor once. Without strict extraction a
// failure of every extractor counts as zero entities.
func extractEntities(ctx context.Context, extractor pipeline.Extractor, text string, entityTypes []string, strict bool, logger *slog.Logger) ([]string, error) {
	entities, err := extractor.Extract(ctx, text, entityTypes)
	if err != nil {
		if errors.Is(err, pipeline.ErrAllExtractorsFailed) && !strict {
			logger.Warn("No extractor succeeded, continuing without entities", slog.String("error", err.Error()))
			return []string{}, nil
		}
		return nil, err
	}
	if entities == nil {
		entities = []string{}
	}
	return entities, nil
}
