//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchment-ai/parchment/internal/domain"
	"github.com/parchment-ai/parchment/internal/service"
	"github.com/parchment-ai/parchment/internal/testutil"
)

const testDimensions = 1536

// axisVector returns a unit vector along the given axis.
func axisVector(axis int) []float32 {
	v := make([]float32, testDimensions)
	v[axis] = 1
	return v
}

// blendVector leans mostly along mainAxis with a small component on sideAxis,
// giving a similarity strictly between the axis vectors'.
func blendVector(mainAxis, sideAxis int) []float32 {
	v := make([]float32, testDimensions)
	v[mainAxis] = 0.9
	v[sideAxis] = 0.1
	return v
}

func insertDocumentWithChunks(ctx context.Context, t *testing.T, docs *DocumentRepository, chunks *ChunkRepository, name string, embeddings [][]float32) *domain.Document {
	t.Helper()

	doc := &domain.Document{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, docs.Create(ctx, doc))

	rows := make([]domain.Chunk, len(embeddings))
	for i, emb := range embeddings {
		rows[i] = domain.Chunk{
			ID:           uuid.NewString(),
			DocumentID:   doc.ID,
			DocumentName: name,
			ChunkIndex:   i,
			Content:      name + " chunk",
			Embedding:    emb,
		}
	}
	require.NoError(t, chunks.InsertChunks(ctx, rows))
	return doc
}

func TestRepositories_IngestListDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docs := NewDocumentRepository(pool)
	chunks := NewChunkRepository(pool, testDimensions)

	doc := insertDocumentWithChunks(ctx, t, docs, chunks, "alpha.pdf",
		[][]float32{axisVector(0), axisVector(1), axisVector(2)})

	got, err := docs.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "alpha.pdf", got.Name)

	list, err := docs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].ChunkCount)

	stats, err := docs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, 3, stats.Chunks)

	deleted, err := chunks.DeleteByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
	require.NoError(t, docs.Delete(ctx, doc.ID))

	_, err = docs.GetByID(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	// Deleting twice reports not found, other documents untouched.
	assert.ErrorIs(t, docs.Delete(ctx, doc.ID), domain.ErrDocumentNotFound)
}

func TestChunkRepository_SimilaritySearchOrdering(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docs := NewDocumentRepository(pool)
	chunks := NewChunkRepository(pool, testDimensions)

	insertDocumentWithChunks(ctx, t, docs, chunks, "alpha.pdf",
		[][]float32{axisVector(0), blendVector(0, 1)})
	insertDocumentWithChunks(ctx, t, docs, chunks, "beta.pdf",
		[][]float32{axisVector(1)})

	results, err := chunks.SimilaritySearch(ctx, axisVector(0), 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Best match first: the exact axis vector, then the blend, then the
	// orthogonal one.
	assert.Equal(t, "alpha.pdf", results[0].DocumentName)
	assert.Equal(t, 0, results[0].ChunkIndex)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-4)
	assert.Equal(t, 1, results[1].ChunkIndex)
	assert.Equal(t, "beta.pdf", results[2].DocumentName)
	assert.InDelta(t, 0.0, float64(results[2].Score), 1e-4)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Greater(t, results[1].Score, results[2].Score)
}

func TestChunkRepository_SimilaritySearchTieBreakByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docs := NewDocumentRepository(pool)
	chunks := NewChunkRepository(pool, testDimensions)

	// Two chunks with identical embeddings: the one inserted first wins.
	first := insertDocumentWithChunks(ctx, t, docs, chunks, "first.pdf",
		[][]float32{axisVector(0)})
	insertDocumentWithChunks(ctx, t, docs, chunks, "second.pdf",
		[][]float32{axisVector(0)})

	results, err := chunks.SimilaritySearch(ctx, axisVector(0), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, first.ID, results[0].DocumentID)
}

func TestChunkRepository_SimilaritySearchEdgeCases(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docs := NewDocumentRepository(pool)
	chunks := NewChunkRepository(pool, testDimensions)

	// Empty store: no error, no results.
	results, err := chunks.SimilaritySearch(ctx, axisVector(0), 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	insertDocumentWithChunks(ctx, t, docs, chunks, "alpha.pdf",
		[][]float32{axisVector(0), axisVector(1)})

	// topK larger than the corpus returns the whole corpus.
	results, err = chunks.SimilaritySearch(ctx, axisVector(0), 50)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	_, err = chunks.SimilaritySearch(ctx, axisVector(0), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidTopK)

	_, err = chunks.SimilaritySearch(ctx, []float32{1, 2, 3}, 5)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestChunkRepository_InsertRejectsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docs := NewDocumentRepository(pool)
	chunks := NewChunkRepository(pool, testDimensions)

	doc := &domain.Document{ID: uuid.NewString(), Name: "alpha.pdf"}
	require.NoError(t, docs.Create(ctx, doc))

	rows := []domain.Chunk{
		{ID: uuid.NewString(), DocumentID: doc.ID, DocumentName: doc.Name, ChunkIndex: 0, Content: "ok", Embedding: axisVector(0)},
		{ID: uuid.NewString(), DocumentID: doc.ID, DocumentName: doc.Name, ChunkIndex: 1, Content: "bad", Embedding: []float32{1, 2}},
	}

	err := chunks.InsertChunks(ctx, rows)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	// Validation happens before any insert, so the valid row is absent too.
	stats, err := docs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Chunks)
}

func TestTxRunner_RollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	runner := NewTxRunner(pool, testDimensions)
	docs := NewDocumentRepository(pool)

	docID := uuid.NewString()
	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		if err := repos.Documents().Create(ctx, &domain.Document{ID: docID, Name: "alpha.pdf"}); err != nil {
			return err
		}
		return errors.New("forced failure after create")
	})
	require.Error(t, err)

	_, err = docs.GetByID(ctx, docID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestTxRunner_CommitsDocumentAndChunksTogether(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	runner := NewTxRunner(pool, testDimensions)
	docs := NewDocumentRepository(pool)

	docID := uuid.NewString()
	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		doc := &domain.Document{ID: docID, Name: "alpha.pdf"}
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}
		return repos.Chunks().InsertChunks(ctx, []domain.Chunk{
			{ID: uuid.NewString(), DocumentID: docID, DocumentName: doc.Name, ChunkIndex: 0, Content: "c", Embedding: axisVector(0)},
		})
	})
	require.NoError(t, err)

	list, err := docs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].ChunkCount)
}
