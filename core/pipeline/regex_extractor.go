package pipeline

import (
	"context"
	"regexp"
	"strings"

	"github.com/siherrmann/halluguard/helper"
)

// APIEndpointPattern matches an HTTP method followed by a path
const APIEndpointPattern = `(?i)\b(?:POST|GET|PUT|DELETE|PATCH|HEAD|OPTIONS)\s+[a-zA-Z0-9/_-]+`

// RegexExtractor returns every match of a pattern as a mention.
// With an entity type set it only runs when that type is requested.
type RegexExtractor struct {
	entityType string
	pattern    *regexp.Regexp
}

// NewRegexExtractor compiles pattern into an extractor for entityType
func NewRegexExtractor(entityType string, pattern string) (*RegexExtractor, error) {
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return nil, helper.NewError("compile pattern", err)
	}
	return &RegexExtractor{
		entityType: entityType,
		pattern:    compiled,
	}, nil
}

// NewAPIEndpointExtractor creates the extractor for "API Endpoint" mentions
func NewAPIEndpointExtractor() *RegexExtractor {
	return &RegexExtractor{
		entityType: "API Endpoint",
		pattern:    regexp.MustCompile(APIEndpointPattern),
	}
}

// Name implements NamedExtractor
func (e *RegexExtractor) Name() string {
	if e.entityType == "" {
		return "regex"
	}
	return "regex:" + normalizeTypeKey(e.entityType)
}

// Extract implements Extractor
func (e *RegexExtractor) Extract(ctx context.Context, text string, entityTypes []string) ([]string, error) {
	mentions := []string{}
	if text == "" || !e.requested(entityTypes) {
		return mentions, nil
	}

	for _, match := range e.pattern.FindAllString(text, -1) {
		normalized := strings.Join(strings.Fields(match), " ")
		if normalized != "" {
			mentions = append(mentions, normalized)
		}
	}

	return mentions, nil
}

func (e *RegexExtractor) requested(entityTypes []string) bool {
	if e.entityType == "" {
		return true
	}
	key := normalizeTypeKey(e.entityType)
	for _, entityType := range entityTypes {
		if normalizeTypeKey(entityType) == key {
			return true
		}
	}
	return false
}
