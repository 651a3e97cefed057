package model

// DiffResult is the outcome of comparing request and response entities
type DiffResult struct {
	PotentialHallucinations []string `json:"potential_hallucinations"` // Only in the response
	MissingEntities         []string `json:"missing_entities"`         // Only in the request
}

// TextProcessingResult holds the entities and embedding of a single text
type TextProcessingResult struct {
	Text      string    `json:"text"`
	Entities  []string  `json:"entities"`
	Embedding []float32 `json:"embedding"`
}

// FileProcessingResult holds the document level entities and the processed chunks
type FileProcessingResult struct {
	FileID   string   `json:"file_id"`
	Entities []string `json:"entities"`
	Chunks   []Chunk  `json:"chunks"`
}

// FileProcessingRequest describes a base64 encoded file to process
type FileProcessingRequest struct {
	File         string   `json:"file"`
	FileID       string   `json:"file_id"`
	FileName     string   `json:"file_name"`
	FilePath     string   `json:"file_path,omitempty"`
	ChunkSize    int      `json:"chunk_size"`
	ChunkOverlap int      `json:"chunk_overlap"`
	EntityTypes  []string `json:"entity_types,omitempty"`
}
