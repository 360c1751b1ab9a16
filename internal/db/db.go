// Package db owns the SQLCipher-encrypted store: schema, driver registration
// and the hand-written sqlc-style Queries used by every other layer.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultPath is the database file used when DATABASE_PATH is unset.
	DefaultPath = "./data/notesaas.db"

	// MaxOpenConns caps the pool. SQLite is single-writer, so high connection
	// counts are counterproductive.
	MaxOpenConns = 10

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns = 2

	// KeySize is the SQLCipher raw key length in bytes.
	KeySize = 32
)

// DB wraps the sql.DB connection and embeds the Queries bound to it.
type DB struct {
	*Queries
	db *sql.DB
}

// NewFromSQL wraps an existing sql.DB. The schema must already be applied.
func NewFromSQL(sqlDB *sql.DB) *DB {
	return &DB{Queries: New(sqlDB), db: sqlDB}
}

// SQL returns the underlying sql.DB for direct access when needed.
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Open opens (creating if needed) the encrypted database file at path.
// WAL with synchronous=NORMAL keeps writes durable across process crashes.
func Open(path string, key []byte) (*DB, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return OpenEncrypted(path, key, "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", MaxIdleConns)
}

// ApplySchema creates missing tables and runs idempotent migrations.
func ApplySchema(sqlDB *sql.DB) error {
	if _, err := sqlDB.Exec(Schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	for _, stmt := range strings.Split(Migrations, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := sqlDB.Exec(stmt); err != nil {
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// InTx runs fn inside a transaction, committing when fn returns nil.
func (d *DB) InTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(d.Queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
