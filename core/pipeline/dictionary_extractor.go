package pipeline

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/siherrmann/halluguard/helper"
	"gopkg.in/yaml.v3"
)

// Gazetteer maps an entity type to the terms known for it
type Gazetteer map[string][]string

// LoadGazetteer reads a gazetteer from a YAML file of the form
//
//	Person:
//	  - Ada Lovelace
//	Organization:
//	  - Acme Corp
func LoadGazetteer(path string) (Gazetteer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, helper.NewError("read gazetteer", err)
	}

	gazetteer := Gazetteer{}
	if err := yaml.Unmarshal(data, &gazetteer); err != nil {
		return nil, helper.NewError("parse gazetteer", err)
	}

	return gazetteer, nil
}

// DictionaryExtractor finds known terms of the requested types in text.
// Terms match case-insensitively on word boundaries. Overlapping matches
// resolve to the longest term at the earliest position.
type DictionaryExtractor struct {
	patterns map[string][]*regexp.Regexp
}

// NewDictionaryExtractor compiles the terms of every entity type of the gazetteer
func NewDictionaryExtractor(gazetteer Gazetteer) (*DictionaryExtractor, error) {
	patterns := map[string][]*regexp.Regexp{}
	for entityType, typeTerms := range gazetteer {
		key := normalizeTypeKey(entityType)
		if key == "" {
			return nil, helper.NewError("create dictionary extractor", fmt.Errorf("empty entity type"))
		}
		for _, term := range typeTerms {
			term = strings.Join(strings.Fields(term), " ")
			if term == "" {
				continue
			}
			pattern, err := regexp.Compile(`(?i)` + strings.ReplaceAll(regexp.QuoteMeta(term), " ", `\s+`))
			if err != nil {
				return nil, helper.NewError("create dictionary extractor", err)
			}
			patterns[key] = append(patterns[key], pattern)
		}
	}

	return &DictionaryExtractor{patterns: patterns}, nil
}

// Name implements NamedExtractor
func (e *DictionaryExtractor) Name() string {
	return "dictionary"
}

type dictionaryMatch struct {
	start int
	end   int
}

// Extract implements Extractor
func (e *DictionaryExtractor) Extract(ctx context.Context, text string, entityTypes []string) ([]string, error) {
	mentions := []string{}
	if strings.TrimSpace(text) == "" {
		return mentions, nil
	}

	var matches []dictionaryMatch
	seenTypes := map[string]bool{}
	for _, entityType := range entityTypes {
		key := normalizeTypeKey(entityType)
		patterns, ok := e.patterns[key]
		if !ok || seenTypes[key] {
			continue
		}
		seenTypes[key] = true

		var candidates []dictionaryMatch
		for _, pattern := range patterns {
			candidates = append(candidates, findWholeWords(pattern, text)...)
		}
		matches = append(matches, longestNonOverlapping(candidates)...)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].start < matches[j].start
	})
	for _, match := range matches {
		mentions = append(mentions, strings.Join(strings.Fields(text[match.start:match.end]), " "))
	}

	return mentions, nil
}

// findWholeWords returns every match of pattern that sits on word boundaries.
// A rejected match only skips its first rune, so overlapping occurrences are still found.
func findWholeWords(pattern *regexp.Regexp, text string) []dictionaryMatch {
	var found []dictionaryMatch
	offset := 0
	for offset < len(text) {
		loc := pattern.FindStringIndex(text[offset:])
		if loc == nil {
			break
		}
		start, end := offset+loc[0], offset+loc[1]
		if isWordBoundary(text, start, end) {
			found = append(found, dictionaryMatch{start: start, end: end})
			offset = end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + max(size, 1)
	}
	return found
}

// longestNonOverlapping keeps the longest candidate per position and drops
// candidates overlapping an already kept one
func longestNonOverlapping(candidates []dictionaryMatch) []dictionaryMatch {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].start != candidates[j].start {
			return candidates[i].start < candidates[j].start
		}
		return candidates[i].end > candidates[j].end
	})

	kept := []dictionaryMatch{}
	lastEnd := -1
	for _, candidate := range candidates {
		if candidate.start < lastEnd {
			continue
		}
		kept = append(kept, candidate)
		lastEnd = candidate.end
	}
	return kept
}

// isWordBoundary reports whether text[start:end] is not glued to a letter or digit
func isWordBoundary(text string, start int, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
