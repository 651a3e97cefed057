package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/siherrmann/halluguard/core/detection"
	"github.com/siherrmann/halluguard/core/pipeline"
	"github.com/siherrmann/halluguard/helper"
	"github.com/siherrmann/halluguard/model"
)

// HallucinationDetectionService compares the entities of a request and its response
type HallucinationDetectionService struct {
	extractor  pipeline.Extractor
	calculator *detection.EntityDiffCalculator
	strict     bool
	log        *slog.Logger
}

// NewHallucinationDetectionService creates a detection service.
// A nil calculator uses the default similarity policy.
func NewHallucinationDetectionService(extractor pipeline.Extractor, calculator *detection.EntityDiffCalculator, config model.ProcessingConfig, logger *slog.Logger) (*HallucinationDetectionService, error) {
	if extractor == nil {
		return nil, helper.NewError("create hallucination detection service", fmt.Errorf("extractor must be provided"))
	}
	if calculator == nil {
		calculator = detection.NewEntityDiffCalculator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HallucinationDetectionService{
		extractor:  extractor,
		calculator: calculator,
		strict:     config.StrictExtraction,
		log:        logger,
	}, nil
}

// Detect extracts the entities of both texts independently and diffs them
func (s *HallucinationDetectionService) Detect(ctx context.Context, requestText string, responseText string, entityTypes []string) (*model.DiffResult, error) {
	if len(entityTypes) == 0 {
		return nil, helper.NewValidationError("entity_types", "entity_types must be provided.")
	}

	requestEntities, err := extractEntities(ctx, s.extractor, requestText, entityTypes, s.strict, s.log)
	if err != nil {
		return nil, helper.NewError("extract request entities", err)
	}
	responseEntities, err := extractEntities(ctx, s.extractor, responseText, entityTypes, s.strict, s.log)
	if err != nil {
		return nil, helper.NewError("extract response entities", err)
	}

	result := s.calculator.Calculate(requestEntities, responseEntities)

	s.log.Debug("Compared entities",
		slog.Int("request_entities", len(requestEntities)),
		slog.Int("response_entities", len(responseEntities)),
		slog.Int("potential_hallucinations", len(result.PotentialHallucinations)),
		slog.Int("missing_entities", len(result.MissingEntities)),
	)

	return &result, nil
}
