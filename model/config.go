package model

// Default processing parameters
const (
	DefaultChunkSize       = 3000
	DefaultChunkOverlap    = 300
	DefaultMaxSegmentChars = 1000
	DefaultMinSegmentChars = 200
)

// DefaultEntityTypes returns the entity type catalog used when a caller
// does not request specific types. Every call returns a fresh slice.
func DefaultEntityTypes() []string {
	return []string{
		"Person",
		"Organization",
		"Location",
		"Event",
		"Product",
		"Service",
		"Technology",
		"Concept",
		"Time",
		"Money",
		"Quantity",
		"ClassName",
		"Library",
		"Framework",
		"Language",
		"Tool",
		"Methodology",
		"Standard",
		"Protocol",
		"API Endpoint",
		"Date",
	}
}

// ProcessingConfig configures the orchestration services
type ProcessingConfig struct {
	// Entity types used when a request does not name any
	EntityTypes []string `json:"entity_types"`

	// Chunking parameters for file processing
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`

	// Chunks longer than MaxSegmentChars are segmented before extraction
	MaxSegmentChars int `json:"max_segment_chars"`
	MinSegmentChars int `json:"min_segment_chars"`

	// Return an error instead of zero entities when every extractor fails
	StrictExtraction bool `json:"strict_extraction"`
}

// DefaultProcessingConfig returns the default processing configuration
func DefaultProcessingConfig() ProcessingConfig {
	return ProcessingConfig{
		EntityTypes:      DefaultEntityTypes(),
		ChunkSize:        DefaultChunkSize,
		ChunkOverlap:     DefaultChunkOverlap,
		MaxSegmentChars:  DefaultMaxSegmentChars,
		MinSegmentChars:  DefaultMinSegmentChars,
		StrictExtraction: false,
	}
}

// ResolveEntityTypes returns requested if it is non-nil, otherwise the configured defaults
func (c ProcessingConfig) ResolveEntityTypes(requested []string) []string {
	if requested != nil {
		return requested
	}
	if len(c.EntityTypes) == 0 {
		return DefaultEntityTypes()
	}
	return append([]string(nil), c.EntityTypes...)
}
