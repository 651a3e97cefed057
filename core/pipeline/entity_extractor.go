package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/siherrmann/halluguard/helper"
)

// DefaultNERModel is a distilbert model fine-tuned on CoNLL-2003
const DefaultNERModel = "KnightsAnalytics/distilbert-NER"

// nerLabels maps normalized entity type names to the CoNLL labels of the model
var nerLabels = map[string]string{
	"person":        "PER",
	"per":           "PER",
	"persona":       "PER",
	"organization":  "ORG",
	"organisation":  "ORG",
	"org":           "ORG",
	"company":       "ORG",
	"location":      "LOC",
	"loc":           "LOC",
	"gpe":           "LOC",
	"city":          "LOC",
	"country":       "LOC",
	"misc":          "MISC",
	"miscellaneous": "MISC",
	"event":         "MISC",
	"product":       "MISC",
	"norp":          "MISC",
	"language":      "MISC",
}

// NERExtractor extracts person, organization, location and misc entities
// with a token classification model run through hugot.
// The model is loaded once on first use or by EnsureLoaded.
type NERExtractor struct {
	modelName string
	onnxFile  string
	log       *slog.Logger

	once        sync.Once
	loadErr     error
	session     *hugot.Session
	nerPipeline *pipelines.TokenClassificationPipeline
}

// NewNERExtractor creates a NER extractor for the given model without loading it
func NewNERExtractor(modelName string, logger *slog.Logger) *NERExtractor {
	if modelName == "" {
		modelName = DefaultNERModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NERExtractor{
		modelName: modelName,
		onnxFile:  "model.onnx",
		log:       logger,
	}
}

// Name implements NamedExtractor
func (e *NERExtractor) Name() string {
	return "ner"
}

// EnsureLoaded downloads and loads the model exactly once.
// Later calls return the result of the first load.
func (e *NERExtractor) EnsureLoaded() error {
	e.once.Do(func() {
		e.loadErr = e.load()
	})
	return e.loadErr
}

func (e *NERExtractor) load() error {
	// Prepare model (download if needed)
	modelPath, err := helper.PrepareModel(e.modelName, e.onnxFile)
	if err != nil {
		return err
	}

	// Initialize hugot session with Go backend
	session, err := hugot.NewGoSession()
	if err != nil {
		return fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      "ner-pipeline",
		Options: []hugot.TokenClassificationOption{
			pipelines.WithSimpleAggregation(),
			pipelines.WithIgnoreLabels([]string{"O"}),
		},
	}
	nerPipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return fmt.Errorf("failed to create NER pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return fmt.Errorf("failed to create NER pipeline: %w", err)
	}

	e.session = session
	e.nerPipeline = nerPipeline
	e.log.Info("Loaded NER model", slog.String("model", e.modelName))

	return nil
}

// Extract implements Extractor
func (e *NERExtractor) Extract(ctx context.Context, text string, entityTypes []string) ([]string, error) {
	labels := resolveNERLabels(entityTypes)
	if strings.TrimSpace(text) == "" || len(labels) == 0 {
		return []string{}, nil
	}

	if err := e.EnsureLoaded(); err != nil {
		return nil, err
	}

	result, err := e.nerPipeline.RunPipeline([]string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to run NER: %w", err)
	}

	mentions := []string{}
	if len(result.Entities) == 0 {
		return mentions, nil
	}
	for _, entity := range result.Entities[0] {
		if !labels[normalizeEntityType(entity.Entity)] {
			continue
		}
		word := strings.TrimSpace(entity.Word)
		if word != "" {
			mentions = append(mentions, word)
		}
	}

	return mentions, nil
}

// Close releases the hugot session
func (e *NERExtractor) Close() error {
	if e.session == nil {
		return nil
	}
	return e.session.Destroy()
}

// resolveNERLabels returns the model labels covering the requested types
func resolveNERLabels(entityTypes []string) map[string]bool {
	labels := map[string]bool{}
	for _, entityType := range entityTypes {
		if label, ok := nerLabels[normalizeTypeKey(entityType)]; ok {
			labels[label] = true
		}
	}
	return labels
}

// normalizeEntityType removes B- and I- prefixes from NER labels
func normalizeEntityType(label string) string {
	if strings.HasPrefix(label, "B-") || strings.HasPrefix(label, "I-") {
		return label[2:]
	}
	return label
}

// normalizeTypeKey makes entity type names comparable, "API Endpoint" equals "api_endpoint"
func normalizeTypeKey(entityType string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '\t':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(entityType)))
}
