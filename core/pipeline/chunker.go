package pipeline

import (
	"github.com/siherrmann/halluguard/helper"
	"github.com/siherrmann/halluguard/model"
)

// ChunkFunc splits text into chunks with sequential ids starting at startID
type ChunkFunc func(text string, chunkSize int, chunkOverlap int, startID int) ([]model.Chunk, error)

// ValidateChunkParams checks the chunking parameters
func ValidateChunkParams(chunkSize int, chunkOverlap int) error {
	if chunkSize <= 0 {
		return helper.NewValidationError("chunk_size", "chunk_size must be > 0, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return helper.NewValidationError("chunk_overlap", "chunk_overlap must be >= 0, got %d", chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return helper.NewValidationError("chunk_overlap", "chunk_overlap must be < chunk_size, got chunk_overlap=%d, chunk_size=%d", chunkOverlap, chunkSize)
	}
	return nil
}

// Split cuts text into windows of chunkSize characters where consecutive
// windows share chunkOverlap characters. Windows advance by
// chunkSize-chunkOverlap and splitting stops with the first window reaching
// the end of the text, which may be shorter than chunkSize.
// Chunks start without entities and without embedding.
func Split(text string, chunkSize int, chunkOverlap int, startID int) ([]model.Chunk, error) {
	if err := ValidateChunkParams(chunkSize, chunkOverlap); err != nil {
		return nil, err
	}

	chunks := []model.Chunk{}
	runes := []rune(text)
	if len(runes) == 0 {
		return chunks, nil
	}

	stride := chunkSize - chunkOverlap
	chunkID := startID
	for position := 0; position < len(runes); position += stride {
		end := min(position+chunkSize, len(runes))
		chunks = append(chunks, model.NewChunk(chunkID, string(runes[position:end])))
		chunkID++
		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}
