package service

import (
	"iter"

	"github.com/parchment-ai/parchment/internal/domain"
)

// ChunkConfig controls the sliding-window chunker. Size and Overlap are in
// characters (runes).
type ChunkConfig struct {
	Size    int
	Overlap int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    1000,
		Overlap: 200,
	}
}

// Chunker splits document text into overlapping fixed-size segments. The
// window advances by Size-Overlap each step and the final segment may be
// shorter than Size, so every character of the source appears in at least
// one segment.
type Chunker struct {
	cfg ChunkConfig
}

// NewChunker validates the configuration and returns a Chunker.
// Overlap >= Size would make the window advance by zero or walk backwards.
func NewChunker(cfg ChunkConfig) (*Chunker, error) {
	if cfg.Size <= 0 || cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		return nil, domain.ErrInvalidChunkConfig
	}
	return &Chunker{cfg: cfg}, nil
}

// Chunks returns a lazy, restartable sequence of segments. Ranging over it
// again re-walks the text from the start. Empty text yields no segments;
// text no longer than Size yields exactly one segment equal to the text.
func (c *Chunker) Chunks(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		runes := []rune(text)
		if len(runes) == 0 {
			return
		}

		step := c.cfg.Size - c.cfg.Overlap
		for start := 0; start < len(runes); start += step {
			end := start + c.cfg.Size
			if end > len(runes) {
				end = len(runes)
			}
			if !yield(string(runes[start:end])) {
				return
			}
			// The last window already reached the end; a further step would
			// only re-emit text covered by the overlap.
			if end == len(runes) {
				return
			}
		}
	}
}

// Split collects the full segment sequence into a slice.
func (c *Chunker) Split(text string) []string {
	var chunks []string
	for chunk := range c.Chunks(text) {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// Count reports how many segments Chunks will produce for a text of n runes.
func (c *Chunker) Count(n int) int {
	if n <= 0 {
		return 0
	}
	if n <= c.cfg.Size {
		return 1
	}
	step := c.cfg.Size - c.cfg.Overlap
	return (n - c.cfg.Overlap + step - 1) / step
}
