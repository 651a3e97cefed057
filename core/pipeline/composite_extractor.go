package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/siherrmann/halluguard/core/similarity"
	"github.com/siherrmann/halluguard/helper"
)

// ErrAllExtractorsFailed is returned when no extractor of a composite succeeded
var ErrAllExtractorsFailed = errors.New("all extractors failed")

// CompositeExtractor runs several extractors in registration order and merges
// their mentions. A failing extractor is logged and skipped.
type CompositeExtractor struct {
	extractors []Extractor
	matcher    *similarity.Matcher
	log        *slog.Logger
}

// NewCompositeExtractor creates a composite over at least one extractor
func NewCompositeExtractor(logger *slog.Logger, extractors ...Extractor) (*CompositeExtractor, error) {
	if len(extractors) == 0 {
		return nil, helper.NewError("create composite extractor", fmt.Errorf("at least one extractor must be provided"))
	}
	for i, extractor := range extractors {
		if extractor == nil {
			return nil, helper.NewError("create composite extractor", fmt.Errorf("extractor %d is nil", i))
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CompositeExtractor{
		extractors: extractors,
		matcher:    similarity.Default(),
		log:        logger,
	}, nil
}

// WithMatcher sets the matcher used to merge mentions
func (c *CompositeExtractor) WithMatcher(matcher *similarity.Matcher) *CompositeExtractor {
	if matcher != nil {
		c.matcher = matcher
	}
	return c
}

// Name implements NamedExtractor
func (c *CompositeExtractor) Name() string {
	names := make([]string, len(c.extractors))
	for i, extractor := range c.extractors {
		names[i] = extractorName(extractor, i)
	}
	return "composite(" + strings.Join(names, ",") + ")"
}

// Extract implements Extractor
func (c *CompositeExtractor) Extract(ctx context.Context, text string, entityTypes []string) ([]string, error) {
	if strings.TrimSpace(text) == "" || len(entityTypes) == 0 {
		return []string{}, nil
	}

	var mentions []string
	var errs []error
	for i, extractor := range c.extractors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := extractorName(extractor, i)
		start := time.Now()
		result, err := extractor.Extract(ctx, text, entityTypes)
		extractorDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err != nil {
			extractorFailures.WithLabelValues(name).Inc()
			c.log.Warn("Entity extractor failed", slog.String("extractor", name), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}

		mentions = append(mentions, result...)
	}

	if len(errs) == len(c.extractors) {
		return nil, errors.Join(append([]error{ErrAllExtractorsFailed}, errs...)...)
	}

	return c.matcher.Dedupe(mentions), nil
}

func extractorName(extractor Extractor, index int) string {
	if named, ok := extractor.(NamedExtractor); ok {
		return named.Name()
	}
	return fmt.Sprintf("extractor_%d", index)
}
