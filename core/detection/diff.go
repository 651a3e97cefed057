// Package detection compares the entities of a request with the entities of
// the response generated for it.
package detection

import (
	"github.com/siherrmann/halluguard/core/similarity"
	"github.com/siherrmann/halluguard/model"
)

// EntityDiffCalculator computes hallucinated and missing entities
type EntityDiffCalculator struct {
	matcher *similarity.Matcher
}

// Option configures an EntityDiffCalculator
type Option func(*EntityDiffCalculator)

// WithMatcher sets the matcher deciding when two mentions are the same entity
func WithMatcher(matcher *similarity.Matcher) Option {
	return func(c *EntityDiffCalculator) {
		if matcher != nil {
			c.matcher = matcher
		}
	}
}

// NewEntityDiffCalculator creates a calculator using the normalized similarity policy by default
func NewEntityDiffCalculator(opts ...Option) *EntityDiffCalculator {
	c := &EntityDiffCalculator{
		matcher: similarity.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calculate deduplicates both mention lists and returns the response entities
// without a similar request entity as potential hallucinations and the request
// entities without a similar response entity as missing entities.
// Both lists keep the order of first occurrence and are never nil.
func (c *EntityDiffCalculator) Calculate(requestMentions []string, responseMentions []string) model.DiffResult {
	request := c.matcher.Dedupe(requestMentions)
	response := c.matcher.Dedupe(responseMentions)

	return model.DiffResult{
		PotentialHallucinations: c.difference(response, request),
		MissingEntities:         c.difference(request, response),
	}
}

// difference returns the elements of a with no similar element in b
func (c *EntityDiffCalculator) difference(a []string, b []string) []string {
	result := []string{}
	for _, mention := range a {
		if !c.matcher.Contains(b, mention) {
			result = append(result, mention)
		}
	}
	return result
}
