package pipeline

import (
	"strings"
	"testing"

	"github.com/siherrmann/halluguard/helper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reconstruct joins chunks after dropping the overlap of every chunk but the first
func reconstruct(texts []string, overlap int) string {
	var sb strings.Builder
	for i, text := range texts {
		runes := []rune(text)
		if i > 0 {
			runes = runes[min(overlap, len(runes)):]
		}
		sb.WriteString(string(runes))
	}
	return sb.String()
}

func TestSplit(t *testing.T) {
	t.Run("Valid call Split with overlap", func(t *testing.T) {
		chunks, err := Split("0123456789", 4, 2, 0)

		require.NoError(t, err)
		require.Len(t, chunks, 4)
		assert.Equal(t, "0123", chunks[0].Text)
		assert.Equal(t, "2345", chunks[1].Text)
		assert.Equal(t, "4567", chunks[2].Text)
		assert.Equal(t, "6789", chunks[3].Text)
		for i, chunk := range chunks {
			assert.Equal(t, i, chunk.ID, "Expected sequential ids")
			assert.Empty(t, chunk.Entities, "Expected chunk to start without entities")
			assert.Nil(t, chunk.Embedding, "Expected chunk to start without embedding")
		}
	})

	t.Run("Valid call Split with start id", func(t *testing.T) {
		chunks, err := Split("abcdef", 2, 0, 10)

		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Equal(t, []int{10, 11, 12}, []int{chunks[0].ID, chunks[1].ID, chunks[2].ID})
	})

	t.Run("Zero overlap tiles the text", func(t *testing.T) {
		chunks, err := Split("abcdefg", 3, 0, 0)

		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Equal(t, "abc", chunks[0].Text)
		assert.Equal(t, "def", chunks[1].Text)
		assert.Equal(t, "g", chunks[2].Text)
	})

	t.Run("Chunk size one yields one chunk per character", func(t *testing.T) {
		chunks, err := Split("héllo", 1, 0, 0)

		require.NoError(t, err)
		require.Len(t, chunks, 5)
		assert.Equal(t, "é", chunks[1].Text, "Expected characters, not bytes")
	})

	t.Run("Text shorter than chunk size", func(t *testing.T) {
		chunks, err := Split("abc", 10, 8, 0)

		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "abc", chunks[0].Text)
	})

	t.Run("Empty text", func(t *testing.T) {
		chunks, err := Split("", 10, 0, 0)

		require.NoError(t, err)
		assert.NotNil(t, chunks)
		assert.Empty(t, chunks)
	})

	t.Run("Invalid parameters", func(t *testing.T) {
		tests := []struct {
			size, overlap int
			message       string
		}{
			{0, 0, "chunk_size must be > 0, got 0"},
			{-5, 0, "chunk_size must be > 0, got -5"},
			{10, -1, "chunk_overlap must be >= 0, got -1"},
			{10, 10, "chunk_overlap must be < chunk_size, got chunk_overlap=10, chunk_size=10"},
			{10, 20, "chunk_overlap must be < chunk_size, got chunk_overlap=20, chunk_size=10"},
		}
		for _, tt := range tests {
			chunks, err := Split("some text", tt.size, tt.overlap, 0)
			assert.Nil(t, chunks, "Expected no partial output")
			require.Error(t, err)
			assert.True(t, helper.IsValidationError(err), "Expected a validation error")
			assert.EqualError(t, err, tt.message)
		}
	})

	t.Run("Reconstruction and overlap hold for many parameters", func(t *testing.T) {
		text := "Alice flew from Paris to Berlin. She met Bob at Google in Zürich, then called GET /api/users."
		for size := 1; size <= 40; size++ {
			for overlap := 0; overlap < size; overlap++ {
				chunks, err := Split(text, size, overlap, 0)
				require.NoError(t, err)

				texts := make([]string, len(chunks))
				for i, chunk := range chunks {
					texts[i] = chunk.Text
					assert.LessOrEqual(t, len([]rune(chunk.Text)), size)
					assert.NotEmpty(t, chunk.Text)
				}
				assert.Equal(t, text, reconstruct(texts, overlap), "size=%d overlap=%d", size, overlap)

				for i := 0; i+1 < len(texts); i++ {
					current, next := []rune(texts[i]), []rune(texts[i+1])
					if len(current) == size && len(next) == size && overlap > 0 {
						assert.Equal(t, string(current[size-overlap:]), string(next[:overlap]), "size=%d overlap=%d chunk=%d", size, overlap, i)
					}
				}
			}
		}
	})
}
