package store

import (
	"consultant/model"
	"consultant/types"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresStore(ctx context.Context, connStr string, logger *slog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool:   pool,
		logger: logger,
	}, nil
}

// Init creates the schema for vectors of id.Dimension and records the
// embedding identity on first use.
func (p *PostgresStore) Init(ctx context.Context, id model.Identity) error {
	if err := p.createRagTables(ctx, id.Dimension); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	var stored model.Identity
	err := p.pool.QueryRow(ctx,
		"SELECT model, dimension FROM index_meta WHERE id = 1").Scan(&stored.Model, &stored.Dimension)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = p.pool.Exec(ctx,
			"INSERT INTO index_meta (id, model, dimension) VALUES (1, $1, $2)", id.Model, id.Dimension)
		return err
	case err != nil:
		return err
	case stored != id:
		return IdentityError(stored, id)
	}
	return nil
}

func (p *PostgresStore) createRagTables(ctx context.Context, dim int) error {
	query := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS index_meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		model TEXT NOT NULL,
		dimension INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		source TEXT,
		source_path TEXT,
		ord INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE,
		updated_at TIMESTAMP WITH TIME ZONE,
		version INTEGER DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id UUID PRIMARY KEY,
		doc_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		position INT NOT NULL,
		source TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding vector(%d) NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id);
	`, dim)
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Existing(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	found := make(map[uuid.UUID]bool)
	if len(ids) == 0 {
		return found, nil
	}

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	rows, err := p.pool.Query(ctx, "SELECT id FROM chunks WHERE id = ANY($1::uuid[])", strIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	return found, rows.Err()
}

func (p *PostgresStore) ReplaceDocument(ctx context.Context, doc types.Document, fresh []types.Chunk) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := saveDocument(ctx, tx, doc); err != nil {
		return fmt.Errorf("save document %s: %w", doc.ID, err)
	}

	batch := &pgx.Batch{}
	for _, c := range fresh {
		batch.Queue(`
			INSERT INTO chunks (id, doc_id, position, source, content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING`,
			c.ID, c.DocID, c.Position, c.Source, c.Content, pgvector.NewVector(c.Embedding))
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("save chunks of %s: %w", doc.ID, err)
		}
	}

	keep := make([]string, len(doc.Chunks))
	for i, c := range doc.Chunks {
		keep[i] = c.ID.String()
	}
	tag, err := tx.Exec(ctx,
		"DELETE FROM chunks WHERE doc_id = $1 AND NOT (id = ANY($2::uuid[]))", doc.ID, keep)
	if err != nil {
		return fmt.Errorf("delete stale chunks of %s: %w", doc.ID, err)
	}
	if n := tag.RowsAffected(); n > 0 {
		p.logger.Info("stale chunks removed", "doc", doc.Title, "count", n)
	}

	return tx.Commit(ctx)
}

func saveDocument(ctx context.Context, tx pgx.Tx, doc types.Document) error {
	query := `INSERT INTO documents (id, title, source, source_path, ord, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			source = EXCLUDED.source,
			source_path = EXCLUDED.source_path,
			ord = EXCLUDED.ord,
			updated_at = EXCLUDED.updated_at,
			version = EXCLUDED.version
			`
	_, err := tx.Exec(
		ctx,
		query,
		doc.ID,
		doc.Title,
		string(doc.Source),
		doc.SourcePath,
		doc.Order,
		doc.CreatedAt,
		doc.UpdatedAt,
		doc.Version,
	)
	return err
}

func (p *PostgresStore) Prune(ctx context.Context, keep []uuid.UUID) error {
	ids := make([]string, len(keep))
	for i, id := range keep {
		ids[i] = id.String()
	}
	tag, err := p.pool.Exec(ctx, "DELETE FROM documents WHERE NOT (id = ANY($1::uuid[]))", ids)
	if err != nil {
		return err
	}
	if n := tag.RowsAffected(); n > 0 {
		p.logger.Info("removed documents no longer in the knowledge base", "count", n)
	}
	return nil
}

// Search runs an exact scan so ties are broken deterministically by
// document order and chunk position.
func (p *PostgresStore) Search(ctx context.Context, queryVec []float32, limit int) ([]types.ScoredChunk, error) {
	if limit <= 0 {
		return []types.ScoredChunk{}, nil
	}
	if len(queryVec) == 0 {
		return nil, ErrDimension
	}

	query := `
		SELECT c.id, c.doc_id, c.position, c.source, c.content,
		       1 - (c.embedding <=> $1) AS score
		FROM chunks c
		JOIN documents d ON c.doc_id = d.id
		ORDER BY c.embedding <=> $1, d.ord, c.position
		LIMIT $2
	`
	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(queryVec), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := []types.ScoredChunk{}
	for rows.Next() {
		var hit types.ScoredChunk
		if err := rows.Scan(
			&hit.ID,
			&hit.DocID,
			&hit.Position,
			&hit.Source,
			&hit.Content,
			&hit.Score); err != nil {
			return nil, err
		}
		p.logger.Debug("chunk found", "doc", hit.Source, "position", hit.Position, "score", hit.Score)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (p *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, "SELECT count(*) FROM chunks").Scan(&n)
	return n, err
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info("postgres connection pool is closed")
	}
	return nil
}
