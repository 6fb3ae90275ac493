package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/askdoc/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// DocumentChunkRepository stores indexed chunks in pgvector and answers
// cosine similarity queries over a collection.
type DocumentChunkRepository struct {
	db dbtx
}

func NewDocumentChunkRepository(pool *pgxpool.Pool) *DocumentChunkRepository {
	return &DocumentChunkRepository{db: pool}
}

func NewDocumentChunkRepositoryWithTx(tx pgx.Tx) *DocumentChunkRepository {
	return &DocumentChunkRepository{db: tx}
}

// Upsert writes one row per document. Rows already written stay written if a
// later insert fails.
func (r *DocumentChunkRepository) Upsert(ctx context.Context, docs []domain.IndexedDocument) error {
	for _, d := range docs {
		if err := domain.ValidateIndexedDocument(d); err != nil {
			return err
		}
		createdAt := d.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO document_chunks (id, collection, source, page, chunk_index, content, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE SET
				content = EXCLUDED.content,
				embedding = EXCLUDED.embedding`,
			d.Chunk.ID,
			d.Collection,
			d.Chunk.Metadata.Source,
			d.Chunk.Metadata.Page,
			d.Chunk.ChunkIndex,
			d.Chunk.Text,
			pgvector.NewVector(d.Embedding),
			createdAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", d.Chunk.ID, err)
		}
	}
	return nil
}

// SimilaritySearch returns the k nearest chunks by cosine distance, scored
// as 1 - distance.
func (r *DocumentChunkRepository) SimilaritySearch(ctx context.Context, collection string, vector []float32, k int) ([]domain.RetrievedDocument, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT content, page, source, 1 - (embedding <=> $1) AS score
		 FROM document_chunks
		 WHERE collection = $2
		 ORDER BY embedding <=> $1, created_at, chunk_index
		 LIMIT $3`,
		pgvector.NewVector(vector), collection, k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []domain.RetrievedDocument
	for rows.Next() {
		var d domain.RetrievedDocument
		var score float64
		if err := rows.Scan(&d.Text, &d.Page, &d.Source, &score); err != nil {
			return nil, err
		}
		d.Score = float32(score)
		results = append(results, d)
	}

	return results, rows.Err()
}

// CountByCollection returns the number of stored chunks in collection.
func (r *DocumentChunkRepository) CountByCollection(ctx context.Context, collection string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM document_chunks WHERE collection = $1`,
		collection,
	).Scan(&n)
	return n, err
}
