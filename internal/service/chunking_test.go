package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchment-ai/parchment/internal/domain"
)

func TestNewChunker_RejectsInvalidConfig(t *testing.T) {
	_, err := NewChunker(ChunkConfig{Size: 0, Overlap: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidChunkConfig)

	_, err = NewChunker(ChunkConfig{Size: 100, Overlap: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidChunkConfig)

	_, err = NewChunker(ChunkConfig{Size: 100, Overlap: 100})
	assert.ErrorIs(t, err, domain.ErrInvalidChunkConfig)

	_, err = NewChunker(ChunkConfig{Size: 100, Overlap: 150})
	assert.ErrorIs(t, err, domain.ErrInvalidChunkConfig)
}

func TestChunker_EmptyInput(t *testing.T) {
	chunker, err := NewChunker(DefaultChunkConfig())
	require.NoError(t, err)

	assert.Empty(t, chunker.Split(""))
	assert.Equal(t, 0, chunker.Count(0))
}

func TestChunker_ShortInputIsSingleChunk(t *testing.T) {
	chunker, err := NewChunker(DefaultChunkConfig())
	require.NoError(t, err)

	text := "short document"
	chunks := chunker.Split(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestChunker_ExactSizeIsSingleChunk(t *testing.T) {
	chunker, err := NewChunker(ChunkConfig{Size: 10, Overlap: 2})
	require.NoError(t, err)

	text := strings.Repeat("a", 10)
	chunks := chunker.Split(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestChunker_OverlapAndCoverage(t *testing.T) {
	chunker, err := NewChunker(ChunkConfig{Size: 10, Overlap: 3})
	require.NoError(t, err)

	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := chunker.Split(text)

	// step = 7: [0,10) [7,17) [14,24) [21,26)
	require.Len(t, chunks, 4)
	assert.Equal(t, "abcdefghij", chunks[0])
	assert.Equal(t, "hijklmnopq", chunks[1])
	assert.Equal(t, "opqrstuvwx", chunks[2])
	assert.Equal(t, "vwxyz", chunks[3])

	// Consecutive chunks share exactly the overlap.
	for i := 1; i < len(chunks)-1; i++ {
		assert.Equal(t, chunks[i-1][7:], chunks[i][:3])
	}

	// Every input position appears in some chunk.
	assert.Equal(t, text, chunks[0][:7]+chunks[1][:7]+chunks[2][:7]+chunks[3])
}

func TestChunker_CountMatchesSplit(t *testing.T) {
	configs := []ChunkConfig{
		{Size: 10, Overlap: 0},
		{Size: 10, Overlap: 3},
		{Size: 10, Overlap: 9},
		{Size: 1000, Overlap: 200},
	}
	lengths := []int{0, 1, 9, 10, 11, 26, 100, 999, 1000, 1001, 2500, 5000}

	for _, cfg := range configs {
		chunker, err := NewChunker(cfg)
		require.NoError(t, err)

		for _, n := range lengths {
			text := strings.Repeat("x", n)
			assert.Equal(t, len(chunker.Split(text)), chunker.Count(n),
				"size=%d overlap=%d n=%d", cfg.Size, cfg.Overlap, n)
		}
	}
}

func TestChunker_DefaultConfigChunkCount(t *testing.T) {
	chunker, err := NewChunker(DefaultChunkConfig())
	require.NoError(t, err)

	// step = 800: [0,1000) [800,1800) [1600,2500)
	text := strings.Repeat("a", 2500)
	chunks := chunker.Split(text)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1000)
	assert.Len(t, chunks[1], 1000)
	assert.Len(t, chunks[2], 900)
}

func TestChunker_MultibyteRunesAreNotSplit(t *testing.T) {
	chunker, err := NewChunker(ChunkConfig{Size: 4, Overlap: 1})
	require.NoError(t, err)

	text := "héllo wörld"
	for _, chunk := range chunker.Split(text) {
		for _, r := range chunk {
			assert.NotEqual(t, '�', r)
		}
	}
}

func TestChunker_ChunksIteratorCanStopEarly(t *testing.T) {
	chunker, err := NewChunker(ChunkConfig{Size: 5, Overlap: 0})
	require.NoError(t, err)

	var first string
	for chunk := range chunker.Chunks(strings.Repeat("a", 50)) {
		first = chunk
		break
	}
	assert.Equal(t, "aaaaa", first)
}
