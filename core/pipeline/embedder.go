package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/siherrmann/halluguard/helper"
)

// DefaultEmbeddingModel produces 384-dimensional embeddings
const DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"

// HugotEmbedder generates embeddings locally with a sentence transformer model.
// The model is loaded once on first use or by EnsureLoaded.
type HugotEmbedder struct {
	modelName string
	batchSize int
	log       *slog.Logger

	once             sync.Once
	loadErr          error
	session          *hugot.Session
	sentencePipeline *pipelines.FeatureExtractionPipeline
}

// NewHugotEmbedder creates an embedder for the given model without loading it
func NewHugotEmbedder(modelName string, batchSize int, logger *slog.Logger) *HugotEmbedder {
	if modelName == "" {
		modelName = DefaultEmbeddingModel
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HugotEmbedder{
		modelName: modelName,
		batchSize: batchSize,
		log:       logger,
	}
}

// EnsureLoaded downloads and loads the model exactly once
func (e *HugotEmbedder) EnsureLoaded() error {
	e.once.Do(func() {
		e.loadErr = e.load()
	})
	return e.loadErr
}

func (e *HugotEmbedder) load() error {
	// Prepare model (download if needed)
	modelPath, err := helper.PrepareModel(e.modelName, "onnx/model.onnx")
	if err != nil {
		return err
	}

	// Initialize hugot session with Go backend
	session, err := hugot.NewGoSession()
	if err != nil {
		return fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	e.session = session
	e.sentencePipeline = sentencePipeline
	e.log.Info("Loaded embedding model", slog.String("model", e.modelName))

	return nil
}

// Generate implements EmbeddingGenerator.
// A batch the model cannot embed leaves nil embeddings for its texts.
func (e *HugotEmbedder) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	if len(texts) == 0 {
		return embeddings, nil
	}

	if err := e.EnsureLoaded(); err != nil {
		return nil, err
	}

	for start := 0; start < len(texts); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+e.batchSize, len(texts))
		result, err := e.sentencePipeline.RunPipeline(texts[start:end])
		if err != nil {
			e.log.Warn("Failed to generate embeddings for batch", slog.Int("batch_start", start), slog.String("error", err.Error()))
			continue
		}
		if len(result.Embeddings) != end-start {
			e.log.Warn("Embedding count mismatch", slog.Int("expected", end-start), slog.Int("got", len(result.Embeddings)))
			continue
		}
		copy(embeddings[start:end], result.Embeddings)
	}

	return embeddings, nil
}

// Close releases the hugot session
func (e *HugotEmbedder) Close() error {
	if e.session == nil {
		return nil
	}
	return e.session.Destroy()
}
