package db

import "github.com/markdave123-py/docrag/internal/core"

// DbClient is the pgvector-backed SearchIndex. It owns a connection pool, so
// the app closes it on shutdown.
type DbClient interface {
	core.SearchIndex
	Close() error
}
