package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/docrag/internal/core"
	"github.com/markdave123-py/docrag/internal/models"
)

var _ DbClient = (*DatabaseClient)(nil)

// DatabaseClient stores document records in Postgres with pgvector.
type DatabaseClient struct {
	db  *sql.DB
	dim int
}

func NewDatabaseClient(ctx context.Context, databaseURL string, dim int) (*DatabaseClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db, dim); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db, dim: dim}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

const upsertDocument = `
	INSERT INTO documents (id, filename, text, embedding, metadata, updated_at)
	VALUES ($1, $2, $3, $4, $5, now())
	ON CONFLICT (id) DO UPDATE SET
		filename   = EXCLUDED.filename,
		text       = EXCLUDED.text,
		embedding  = EXCLUDED.embedding,
		metadata   = EXCLUDED.metadata,
		updated_at = now()
`

func (c *DatabaseClient) IndexDocument(ctx context.Context, doc *models.DocumentRecord) error {
	if doc == nil {
		return errors.New("nil document")
	}
	if len(doc.Vector) != c.dim {
		return fmt.Errorf("document %s: %d dimensions, table expects %d: %w", doc.ID, len(doc.Vector), c.dim, core.ErrDimensionMismatch)
	}
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = c.db.ExecContext(ctx, upsertDocument,
		doc.ID, doc.Filename, sanitizeText(doc.Text), pgvector.NewVector(doc.Vector), string(meta))
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}
	return nil
}

// Hybrid keeps rows matching any query term, then orders by cosine distance.
const (
	searchHybridSQL = `
		SELECT filename, text, metadata, 1 - (embedding <=> $1) AS score
		FROM documents
		WHERE to_tsvector('simple', text) @@
		      to_tsquery('simple', replace(plainto_tsquery('simple', $2)::text, '&', '|'))
		ORDER BY embedding <=> $1
		LIMIT $3
	`
	searchVectorSQL = `
		SELECT filename, text, metadata, 1 - (embedding <=> $1) AS score
		FROM documents
		ORDER BY embedding <=> $1
		LIMIT $2
	`
)

func (c *DatabaseClient) Search(ctx context.Context, q core.SearchQuery) ([]models.SearchResult, error) {
	vec := pgvector.NewVector(q.Vector)

	var (
		rows *sql.Rows
		err  error
	)
	if q.Hybrid {
		rows, err = c.db.QueryContext(ctx, searchHybridSQL, vec, q.Text, q.TopK)
	} else {
		rows, err = c.db.QueryContext(ctx, searchVectorSQL, vec, q.TopK)
	}
	if err != nil {
		return nil, core.NewStatusError(http.StatusBadGateway, "pgvector query failed: %w", err)
	}
	defer rows.Close()

	out := []models.SearchResult{}
	for rows.Next() {
		var (
			r    models.SearchResult
			meta []byte
		)
		if err := rows.Scan(&r.Filename, &r.Text, &meta, &r.Score); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		r.Metadata = map[string]any{}
		_ = json.Unmarshal(meta, &r.Metadata)
		out = append(out, r)
	}
	return out, rows.Err()
}
