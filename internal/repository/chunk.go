package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/parchment-ai/parchment/internal/domain"
)

// ChunkRepository handles persistence and similarity search of document
// chunks. The embedding dimension is fixed at construction; rows with any
// other dimension are rejected before reaching the database.
type ChunkRepository struct {
	db         dbtx
	dimensions int
}

func NewChunkRepository(pool *pgxpool.Pool, dimensions int) *ChunkRepository {
	return &ChunkRepository{db: pool, dimensions: dimensions}
}

func NewChunkRepositoryWithTx(tx pgx.Tx, dimensions int) *ChunkRepository {
	return &ChunkRepository{db: tx, dimensions: dimensions}
}

// InsertChunks inserts all chunks or none. A validation failure on any row,
// including a dimension mismatch, aborts before the first INSERT; a database
// failure mid-batch is rolled back by the enclosing transaction.
func (r *ChunkRepository) InsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	for i := range chunks {
		if err := domain.ValidateChunk(&chunks[i], r.dimensions); err != nil {
			return domain.NewStorageError("insert chunks", err)
		}
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO document_chunks
				(id, document_id, document_name, chunk_index, content, embedding, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7)`,
			c.ID,
			c.DocumentID,
			c.DocumentName,
			c.ChunkIndex,
			c.Content,
			pgvector.NewVector(c.Embedding),
			createdAt,
		)
		if err != nil {
			return domain.NewStorageError("insert chunks", err)
		}
	}

	return nil
}

// DeleteByDocument removes all chunks of a document and reports how many
// were deleted.
func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM document_chunks WHERE document_id = $1`,
		documentID,
	)
	if err != nil {
		return 0, err
	}
	return int(cmdTag.RowsAffected()), nil
}

// SimilaritySearch returns the topK chunks closest to the query vector under
// cosine similarity, best-first. Ties are broken by insertion order (the seq
// column), so earlier chunks win. topK larger than the corpus returns the
// whole corpus.
func (r *ChunkRepository) SimilaritySearch(ctx context.Context, embedding []float32, topK int) ([]*domain.ScoredChunk, error) {
	if topK <= 0 {
		return nil, domain.ErrInvalidTopK
	}
	if len(embedding) != r.dimensions {
		return nil, domain.ErrDimensionMismatch
	}

	vec := pgvector.NewVector(embedding)

	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, document_name, chunk_index, content,
		        1 - (embedding <=> $1) AS score
		 FROM document_chunks
		 ORDER BY embedding <=> $1, seq
		 LIMIT $2`,
		vec, topK,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*domain.ScoredChunk, 0, topK)
	for rows.Next() {
		var c domain.ScoredChunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.DocumentName, &c.ChunkIndex, &c.Content, &c.Score); err != nil {
			return nil, err
		}
		results = append(results, &c)
	}
	return results, rows.Err()
}
