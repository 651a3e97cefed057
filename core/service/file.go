package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/siherrmann/halluguard/core/pipeline"
	"github.com/siherrmann/halluguard/helper"
	"github.com/siherrmann/halluguard/model"
)

// FileProcessingService decodes a base64 file, chunks it and extracts and embeds every chunk
type FileProcessingService struct {
	Pipeline *pipeline.Pipeline
	store    Store // Optional
	config   model.ProcessingConfig
	log      *slog.Logger
}

// NewFileProcessingService creates a file processing service
func NewFileProcessingService(extractor pipeline.Extractor, embedder pipeline.EmbeddingGenerator, config model.ProcessingConfig, logger *slog.Logger) (*FileProcessingService, error) {
	if extractor == nil {
		return nil, helper.NewError("create file processing service", fmt.Errorf("extractor must be provided"))
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = model.DefaultChunkSize
		config.ChunkOverlap = model.DefaultChunkOverlap
	}
	if config.MaxSegmentChars == 0 {
		config.MaxSegmentChars = model.DefaultMaxSegmentChars
		config.MinSegmentChars = model.DefaultMinSegmentChars
	}

	p := pipeline.NewPipeline(extractor, embedder, logger)
	p.SetSegmentBounds(config.MaxSegmentChars, config.MinSegmentChars)
	p.StrictExtraction = config.StrictExtraction

	return &FileProcessingService{
		Pipeline: p,
		config:   config,
		log:      logger,
	}, nil
}

// SetStore enables persisting of processing results
func (s *FileProcessingService) SetStore(store Store) {
	s.store = store
}

// Process decodes req.File and returns the entities of the whole document
// together with the processed chunks. Zero chunk parameters select the
// configured defaults and empty entity types the default catalog.
func (s *FileProcessingService) Process(ctx context.Context, req model.FileProcessingRequest) (*model.FileProcessingResult, error) {
	text, err := decodeFile(req.File)
	if err != nil {
		return nil, err
	}

	chunkSize := req.ChunkSize
	if chunkSize == 0 {
		chunkSize = s.config.ChunkSize
	}
	chunkOverlap := req.ChunkOverlap
	if chunkOverlap == 0 && req.ChunkSize == 0 {
		chunkOverlap = s.config.ChunkOverlap
	}
	entityTypes := req.EntityTypes
	if len(entityTypes) == 0 {
		entityTypes = nil
	}
	entityTypes = s.config.ResolveEntityTypes(entityTypes)

	chunks, err := s.Pipeline.Process(ctx, text, chunkSize, chunkOverlap, entityTypes)
	if err != nil {
		return nil, err
	}

	var allEntities []string
	for _, chunk := range chunks {
		allEntities = append(allEntities, chunk.Entities...)
	}

	result := &model.FileProcessingResult{
		FileID:   req.FileID,
		Entities: s.Pipeline.Matcher.Dedupe(allEntities),
		Chunks:   chunks,
	}

	s.log.Info("Processed file",
		slog.String("file_id", req.FileID),
		slog.Int("num_chunks", len(chunks)),
		slog.Int("num_entities", len(result.Entities)),
	)

	if s.store != nil {
		file, err := s.store.StoreResult(ctx, result, req.FileName, req.FilePath)
		if err != nil {
			return nil, helper.NewError("store result", err)
		}
		s.log.Debug("Stored processed file", slog.String("file_id", req.FileID), slog.String("rid", file.RID.String()))
	}

	return result, nil
}

// decodeFile decodes strict base64 into trimmed UTF-8 text
func decodeFile(encoded string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", helper.NewValidationError("file", "Failed to decode base64 content: %v", err)
	}
	if !utf8.Valid(decoded) {
		return "", helper.NewValidationError("file", "Failed to decode base64 content: content is not valid UTF-8")
	}
	return strings.TrimSpace(string(decoded)), nil
}
