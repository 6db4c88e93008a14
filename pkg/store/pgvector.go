package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/resumatch/pkg/llm"
)

type PGVectorConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
}

// PGVector keeps every collection in one table, partitioned by the
// collection column.
type PGVector struct {
	config   PGVectorConfig
	pool     *pgxpool.Pool
	embedder llm.Embedder
	table    string
}

func NewPGVector(ctx context.Context, config PGVectorConfig, embedder llm.Embedder) (*PGVector, error) {
	if config.TableName == "" {
		config.TableName = "resume_chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &PGVector{
		config:   config,
		pool:     pool,
		embedder: embedder,
		table:    pgx.Identifier{config.TableName}.Sanitize(),
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *PGVector) initialize(ctx context.Context) error {
	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			source TEXT NOT NULL,
			content TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			embedding vector(%d),
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		)`, vs.table, vs.config.VectorDim)
	if _, err := vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return nil
}

// VectorDim is the width of the embedding column.
func (vs *PGVector) VectorDim() int {
	return vs.config.VectorDim
}

func (vs *PGVector) Add(ctx context.Context, collection, source string, chunks []schema.Document) (int, error) {
	if err := validateCollection(collection); err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := vs.embedder.EmbedDocuments(ctx, contents(chunks))
	if err != nil {
		return 0, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("failed to create embeddings: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE collection = $1 AND source = $2)`, vs.table),
		collection, source,
	).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to check source: %w", err)
	}
	if exists {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateSource, source)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (collection, id, source, content, chunk_index, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		vs.table)

	batch := &pgx.Batch{}
	for i, chunk := range chunks {
		batch.Queue(stmt,
			collection,
			chunkID(source, i),
			source,
			chunk.PageContent,
			i,
			pgvector.NewVector(vectors[i]),
			chunkMetadata(chunk, source),
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return 0, fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return len(chunks), nil
}

func (vs *PGVector) Query(ctx context.Context, collection, text string, n int) ([]schema.Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = 5
	}

	var exists bool
	err := vs.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE collection = $1)`, vs.table),
		collection,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		return nil, nil
	}

	vector, err := vs.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}

	// Exact search inside one collection, narrowed by the primary key before
	// ranking. Ranking the whole table first and filtering afterwards can
	// return nothing for a populated collection.
	query := fmt.Sprintf(`
		WITH candidates AS MATERIALIZED (
			SELECT content, metadata, embedding
			FROM %s
			WHERE collection = $1
		)
		SELECT content, metadata, 1 - (embedding <=> $2) AS score
		FROM candidates
		ORDER BY embedding <=> $2
		LIMIT $3`,
		vs.table)

	rows, err := vs.pool.Query(ctx, query, collection, pgvector.NewVector(vector), n)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var docs []schema.Document
	for rows.Next() {
		var (
			doc   schema.Document
			score float64
		)
		if err := rows.Scan(&doc.PageContent, &doc.Metadata, &score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		doc.Score = float32(score)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return docs, nil
}

func (vs *PGVector) Reset(ctx context.Context) error {
	if _, err := vs.pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s", vs.table)); err != nil {
		return fmt.Errorf("failed to reset store: %w", err)
	}
	return nil
}

func (vs *PGVector) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}
