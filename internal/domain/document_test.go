package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validChunk() *Chunk {
	return &Chunk{
		ID:           "c1",
		DocumentID:   "d1",
		DocumentName: "guide.pdf",
		ChunkIndex:   0,
		Content:      "some text",
		Embedding:    make([]float32, 4),
	}
}

func TestValidateChunk(t *testing.T) {
	t.Run("valid chunk passes", func(t *testing.T) {
		require.NoError(t, ValidateChunk(validChunk(), 4))
	})

	t.Run("nil chunk", func(t *testing.T) {
		assert.Error(t, ValidateChunk(nil, 4))
	})

	t.Run("missing document id", func(t *testing.T) {
		c := validChunk()
		c.DocumentID = ""
		assert.Error(t, ValidateChunk(c, 4))
	})

	t.Run("negative chunk index", func(t *testing.T) {
		c := validChunk()
		c.ChunkIndex = -1
		assert.Error(t, ValidateChunk(c, 4))
	})

	t.Run("empty content", func(t *testing.T) {
		c := validChunk()
		c.Content = ""
		assert.Error(t, ValidateChunk(c, 4))
	})

	t.Run("wrong embedding dimensions", func(t *testing.T) {
		c := validChunk()
		c.Embedding = make([]float32, 3)
		assert.ErrorIs(t, ValidateChunk(c, 4), ErrDimensionMismatch)
	})
}
