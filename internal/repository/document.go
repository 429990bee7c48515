package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parchment-ai/parchment/internal/domain"
)

// DocumentRepository handles persistence of document metadata.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
		d.CreatedAt = createdAt
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, name, created_at) VALUES ($1, $2, $3)`,
		d.ID, d.Name, createdAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var d domain.Document
	err := r.db.QueryRow(ctx,
		`SELECT id, name, created_at FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.Name, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return &d, nil
}

// List returns all documents with their chunk counts, newest first.
func (r *DocumentRepository) List(ctx context.Context) ([]*domain.DocumentInfo, error) {
	rows, err := r.db.Query(ctx,
		`SELECT d.id, d.name, d.created_at, COUNT(c.seq)
		 FROM documents d
		 LEFT JOIN document_chunks c ON c.document_id = d.id
		 GROUP BY d.id, d.name, d.created_at
		 ORDER BY d.created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.DocumentInfo
	for rows.Next() {
		var info domain.DocumentInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.CreatedAt, &info.ChunkCount); err != nil {
			return nil, err
		}
		results = append(results, &info)
	}
	return results, rows.Err()
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Stats(ctx context.Context) (*domain.StoreStats, error) {
	var stats domain.StoreStats
	err := r.db.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM documents),
			(SELECT COUNT(*) FROM document_chunks)`,
	).Scan(&stats.Documents, &stats.Chunks)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
