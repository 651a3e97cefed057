// Package similarity decides when two entity mentions refer to the same entity
// and collapses near-duplicate mentions.
//
// Comparison is lexical only: mentions are trimmed and case-folded and then
// compared by Levenshtein distance against a length dependent threshold.
package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Distance returns the Levenshtein distance between a and b counted in runes
func Distance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// Policy returns the maximum distance at which two canonical mentions are similar
type Policy func(a, b string) int

// Normalized allows one edit per five characters of the longer mention, but at least three
func Normalized(a, b string) int {
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	return max(3, longest/5)
}

// Absolute allows a fixed number of edits regardless of mention length
func Absolute(maxDistance int) Policy {
	return func(a, b string) int {
		return maxDistance
	}
}

// Matcher compares and deduplicates mentions under a threshold policy
type Matcher struct {
	policy Policy
}

// NewMatcher creates a matcher. A nil policy selects Normalized.
func NewMatcher(policy Policy) *Matcher {
	if policy == nil {
		policy = Normalized
	}
	return &Matcher{policy: policy}
}

var defaultMatcher = NewMatcher(Normalized)

// Default returns the matcher using the Normalized policy
func Default() *Matcher {
	return defaultMatcher
}

func canonical(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Similar reports whether a and b are the same mention up to surrounding
// whitespace, case and a small number of edits
func (m *Matcher) Similar(a, b string) bool {
	ca, cb := canonical(a), canonical(b)
	if ca == cb {
		return true
	}
	return Distance(ca, cb) <= m.policy(ca, cb)
}

// Dedupe returns the mentions with near duplicates removed.
// The first seen spelling wins, trimmed but not case-folded, and the order of
// first occurrence is kept. Blank mentions are dropped.
// Every candidate is compared with every accepted representative, so the cost
// is quadratic in the number of mentions.
func (m *Matcher) Dedupe(mentions []string) []string {
	representatives := make([]string, 0, len(mentions))
	for _, mention := range mentions {
		candidate := strings.TrimSpace(mention)
		if candidate == "" {
			continue
		}
		if m.Contains(representatives, candidate) {
			continue
		}
		representatives = append(representatives, candidate)
	}
	return representatives
}

// Contains reports whether any element of mentions is similar to candidate
func (m *Matcher) Contains(mentions []string, candidate string) bool {
	for _, mention := range mentions {
		if m.Similar(candidate, mention) {
			return true
		}
	}
	return false
}

// Similar uses the default matcher
func Similar(a, b string) bool {
	return defaultMatcher.Similar(a, b)
}

// Dedupe uses the default matcher
func Dedupe(mentions []string) []string {
	return defaultMatcher.Dedupe(mentions)
}
