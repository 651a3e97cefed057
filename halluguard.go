// Package halluguard detects hallucinated entities in LLM responses.
//
// A Guard extracts named entities from the prompt and from the response and
// diffs both sets: entities only found in the response are potential
// hallucinations, entities only found in the prompt are missing entities.
// It also turns texts and whole files into entities plus embeddings and can
// persist processed files to PostgreSQL with pgvector.
package halluguard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/siherrmann/halluguard/core/detection"
	"github.com/siherrmann/halluguard/core/embedding"
	"github.com/siherrmann/halluguard/core/pipeline"
	"github.com/siherrmann/halluguard/core/service"
	"github.com/siherrmann/halluguard/core/similarity"
	"github.com/siherrmann/halluguard/database"
	"github.com/siherrmann/halluguard/helper"
	"github.com/siherrmann/halluguard/model"
	"github.com/siherrmann/halluguard/server"
	loadSql "github.com/siherrmann/halluguard/sql"
)

// Config configures a Guard
type Config struct {
	Processing model.ProcessingConfig
	Extraction *helper.ExtractionConfiguration
	Embedding  *helper.EmbeddingConfiguration // Optional, nil disables embeddings
	Database   *helper.DatabaseConfiguration  // Optional, nil disables persistence
	// Additional extractors run next to the configured backends
	Extractors []pipeline.Extractor
	Logger     *slog.Logger
}

// NewConfigFromEnv reads the configuration from the environment.
// Persistence is enabled when DB_HOST is set.
func NewConfigFromEnv() (*Config, error) {
	extraction, err := helper.NewExtractionConfiguration()
	if err != nil {
		return nil, err
	}
	embeddingConfig, err := helper.NewEmbeddingConfiguration()
	if err != nil {
		return nil, err
	}

	config := &Config{
		Processing: model.DefaultProcessingConfig(),
		Extraction: extraction,
		Embedding:  embeddingConfig,
	}
	config.Processing.StrictExtraction = extraction.StrictExtraction
	if extraction.EntityTypes != nil {
		config.Processing.EntityTypes = extraction.EntityTypes
	}

	if helper.DatabaseEnabled() {
		config.Database, err = helper.NewDatabaseConfiguration()
		if err != nil {
			return nil, err
		}
	}

	return config, nil
}

// Guard bundles extraction, embedding, the orchestration services and the optional store
type Guard struct {
	Extractor     *pipeline.CompositeExtractor
	Embedder      pipeline.EmbeddingGenerator // Optional
	Matcher       *similarity.Matcher
	Text          *service.TextProcessingService
	File          *service.FileProcessingService
	Hallucination *service.HallucinationDetectionService
	DB            *helper.Database         // Optional
	Files         *database.FilesDBHandler // Optional
	closers       []io.Closer
	// Logging
	log *slog.Logger
}

// NewGuard creates a Guard from config
func NewGuard(config Config) (*Guard, error) {
	logger := config.Logger
	if logger == nil {
		logger = helper.NewLogger(os.Stdout, slog.LevelInfo)
	}
	if config.Extraction == nil {
		return nil, helper.NewError("guard configuration validation", fmt.Errorf("extraction configuration is nil"))
	}

	g := &Guard{log: logger}

	g.Matcher = newMatcher(config.Extraction)

	extractors, err := g.buildExtractors(config.Extraction)
	if err != nil {
		g.Close()
		return nil, err
	}
	extractors = append(extractors, config.Extractors...)

	composite, err := pipeline.NewCompositeExtractor(logger, extractors...)
	if err != nil {
		g.Close()
		return nil, helper.NewError("create extractor", err)
	}
	g.Extractor = composite.WithMatcher(g.Matcher)

	if config.Embedding != nil {
		g.Embedder, err = embedding.NewGenerator(config.Embedding, logger)
		if err != nil {
			g.Close()
			return nil, helper.NewError("create embedding generator", err)
		}
		if closer, ok := g.Embedder.(io.Closer); ok {
			g.closers = append(g.closers, closer)
		}
	}

	processing := config.Processing
	if processing.EntityTypes == nil {
		processing.EntityTypes = model.DefaultEntityTypes()
	}

	g.Text, err = service.NewTextProcessingService(g.Extractor, g.Embedder, processing, logger)
	if err != nil {
		g.Close()
		return nil, helper.NewError("create text processing service", err)
	}

	g.File, err = service.NewFileProcessingService(g.Extractor, g.Embedder, processing, logger)
	if err != nil {
		g.Close()
		return nil, helper.NewError("create file processing service", err)
	}
	g.File.Pipeline.Matcher = g.Matcher

	calculator := detection.NewEntityDiffCalculator(detection.WithMatcher(g.Matcher))
	g.Hallucination, err = service.NewHallucinationDetectionService(g.Extractor, calculator, processing, logger)
	if err != nil {
		g.Close()
		return nil, helper.NewError("create hallucination detection service", err)
	}

	if config.Database != nil {
		err = g.openStore(config.Database)
		if err != nil {
			g.Close()
			return nil, err
		}
		g.File.SetStore(g.Files)
	}

	logger.Info("Initialized guard",
		slog.String("extractor", g.Extractor.Name()),
		slog.Bool("embeddings", g.Embedder != nil),
		slog.Bool("persistence", g.Files != nil),
	)

	return g, nil
}

func newMatcher(config *helper.ExtractionConfiguration) *similarity.Matcher {
	if config.SimilarityPolicy == helper.SimilarityPolicyAbsolute {
		return similarity.NewMatcher(similarity.Absolute(config.SimilarityMaxDistance))
	}
	return similarity.Default()
}

// buildExtractors creates the NER, dictionary and API endpoint backends
func (g *Guard) buildExtractors(config *helper.ExtractionConfiguration) ([]pipeline.Extractor, error) {
	extractors := []pipeline.Extractor{}

	if config.NEREnabled {
		ner := pipeline.NewNERExtractor(config.NERModel, g.log)
		g.closers = append(g.closers, ner)
		extractors = append(extractors, ner)
	}

	if config.GazetteerPath != "" {
		gazetteer, err := pipeline.LoadGazetteer(config.GazetteerPath)
		if err != nil {
			return nil, helper.NewError("load gazetteer", err)
		}
		dictionary, err := pipeline.NewDictionaryExtractor(gazetteer)
		if err != nil {
			return nil, helper.NewError("create dictionary extractor", err)
		}
		extractors = append(extractors, dictionary)
	}

	extractors = append(extractors, pipeline.NewAPIEndpointExtractor())

	return extractors, nil
}

func (g *Guard) openStore(config *helper.DatabaseConfiguration) error {
	db, err := helper.NewDatabase("halluguard", config, g.log)
	if err != nil {
		return helper.NewError("connect database", err)
	}
	g.DB = db

	err = loadSql.Init(db.Instance)
	if err != nil {
		return helper.NewError("initialize database extensions", err)
	}

	// force=false to not reload if functions already exist
	g.Files, err = database.NewFilesDBHandler(db, config.EmbeddingDim, false)
	if err != nil {
		return helper.NewError("create files handler", err)
	}
	return nil
}

// Close releases the models and the database connection
func (g *Guard) Close() error {
	var firstErr error
	for _, closer := range g.closers {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	g.closers = nil
	if g.DB != nil {
		if err := g.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CheckHallucinations diffs the entities of requestText and responseText
func (g *Guard) CheckHallucinations(ctx context.Context, requestText string, responseText string, entityTypes []string) (*model.DiffResult, error) {
	return g.Hallucination.Detect(ctx, requestText, responseText, entityTypes)
}

// ProcessText extracts the entities of text and embeds it
func (g *Guard) ProcessText(ctx context.Context, text string, entityTypes []string) (*model.TextProcessingResult, error) {
	return g.Text.Process(ctx, text, entityTypes)
}

// ProcessFile chunks a base64 encoded file and extracts and embeds every chunk.
// The result is persisted when a database is configured.
func (g *Guard) ProcessFile(ctx context.Context, req model.FileProcessingRequest) (*model.FileProcessingResult, error) {
	return g.File.Process(ctx, req)
}

// SearchChunks returns the persisted chunks closest to query
func (g *Guard) SearchChunks(ctx context.Context, query string, limit int) ([]*model.Chunk, error) {
	if g.Files == nil {
		return nil, helper.NewError("search chunks", fmt.Errorf("database not configured"))
	}
	if g.Embedder == nil {
		return nil, helper.NewError("search chunks", fmt.Errorf("embedding generator not configured"))
	}

	embeddings, err := g.Embedder.Generate(ctx, []string{query})
	if err != nil {
		return nil, helper.NewError("generate embedding", err)
	}
	if len(embeddings) == 0 || embeddings[0] == nil {
		return nil, helper.NewError("generate embedding", service.ErrEmbeddingFailed)
	}

	return g.Files.SelectFileChunksBySimilarity(embeddings[0], limit)
}

// ChangeIndexType switches the chunk embedding index, see database.FilesDBHandler.ChangeIndexType
func (g *Guard) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	if g.Files == nil {
		return helper.NewError("change index type", fmt.Errorf("database not configured"))
	}
	return g.Files.ChangeIndexType(ctx, indexType, params)
}

// Services returns the backends of the HTTP server
func (g *Guard) Services() server.Services {
	services := server.Services{
		Text:          g.Text,
		File:          g.File,
		Hallucination: g.Hallucination,
	}
	if g.Files != nil {
		services.Files = g.Files
	}
	return services
}
