package model

import (
	"time"

	"github.com/google/uuid"
)

// Chunk is one overlapping window of a processed file
type Chunk struct {
	ID        int       `json:"id"`
	Text      string    `json:"text"`
	Entities  []string  `json:"entities"`
	Embedding []float32 `json:"embedding"`
	// Set when the chunk is persisted
	FileID    int64     `json:"-"`
	FileRID   uuid.UUID `json:"-"`
	CreatedAt time.Time `json:"-"`
}

// NewChunk creates a chunk without entities and embedding
func NewChunk(id int, text string) Chunk {
	return Chunk{
		ID:       id,
		Text:     text,
		Entities: []string{},
	}
}

// WithEntities returns a copy of the chunk carrying the given entities
func (c Chunk) WithEntities(entities []string) Chunk {
	c.Entities = make([]string, len(entities))
	copy(c.Entities, entities)
	return c
}

// WithEmbedding returns a copy of the chunk carrying the given embedding.
// A nil embedding marks a chunk whose embedding could not be generated.
func (c Chunk) WithEmbedding(embedding []float32) Chunk {
	if embedding == nil {
		c.Embedding = nil
		return c
	}
	c.Embedding = append([]float32(nil), embedding...)
	return c
}
