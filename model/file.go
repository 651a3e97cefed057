package model

import (
	"time"

	"github.com/google/uuid"
)

// ProcessedFile is the persisted record of a processed file
type ProcessedFile struct {
	ID        int64     `json:"id"`
	RID       uuid.UUID `json:"rid"`
	FileID    string    `json:"file_id"`
	FileName  string    `json:"file_name"`
	FilePath  string    `json:"file_path,omitempty"`
	Entities  []string  `json:"entities"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// Loaded on demand
	Chunks []Chunk `json:"chunks,omitempty"`
}

// NewProcessedFile creates the record for a processing result
func NewProcessedFile(result *FileProcessingResult, fileName string, filePath string) *ProcessedFile {
	return &ProcessedFile{
		FileID:   result.FileID,
		FileName: fileName,
		FilePath: filePath,
		Entities: append([]string{}, result.Entities...),
		Metadata: Metadata{
			"num_chunks":   len(result.Chunks),
			"num_entities": len(result.Entities),
		},
	}
}
