package pipeline

import (
	"strings"
)

// boundarySearchChars bounds how far back from a window end a sentence boundary is searched
const boundarySearchChars = 200

func isSentenceBoundary(r rune) bool {
	switch r {
	case '.', '!', '?', ';', ':', '\n':
		return true
	}
	return false
}

// Segment splits text into segments of at most maxSegmentChars characters for
// extractors with a hard input limit.
//
// Whitespace runs are collapsed to single spaces first. A segment preferably
// ends right after a sentence boundary found in the trailing part of its
// window, but never before minSegmentChars. Without a boundary the window is
// cut hard, possibly inside a word. A non-positive maxSegmentChars disables
// segmentation.
func Segment(text string, maxSegmentChars int, minSegmentChars int) []string {
	segments := []string{}

	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return segments
	}

	runes := []rune(normalized)
	if maxSegmentChars <= 0 || len(runes) <= maxSegmentChars {
		return append(segments, normalized)
	}
	minSegmentChars = max(minSegmentChars, 0)

	start := 0
	for start < len(runes) {
		// Segments never start with the space left behind by a cut
		for start < len(runes) && runes[start] == ' ' {
			start++
		}
		if start >= len(runes) {
			break
		}

		end := start + maxSegmentChars
		if end >= len(runes) {
			segments = append(segments, string(runes[start:]))
			break
		}

		cut := end
		lowerBound := max(start+minSegmentChars, end-boundarySearchChars)
		for i := end - 1; i >= lowerBound; i-- {
			if isSentenceBoundary(runes[i]) {
				cut = i + 1
				break
			}
		}

		segments = append(segments, strings.TrimRight(string(runes[start:cut]), " "))
		start = cut
	}

	return segments
}
