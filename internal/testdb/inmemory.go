// Package testdb opens throwaway encrypted in-memory databases for tests.
package testdb

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/kuitang/notesaas/internal/db"
)

var seq atomic.Int64

// Key encrypts every test database.
var Key = bytes.Repeat([]byte{0x42}, db.KeySize)

// Durability pragmas are pointless for a database that dies with the test.
var fastPragmas = []string{
	"PRAGMA journal_mode=MEMORY",
	"PRAGMA synchronous=OFF",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA secure_delete=OFF",
}

// NewInMemory returns a fresh schema-applied database. Each call gets its
// own shared-cache name, so pooled connections agree on the data while
// separate calls never see each other's users or notes.
func NewInMemory() (*db.DB, error) {
	target := fmt.Sprintf("file:notesaas-test-%d?mode=memory&cache=shared", seq.Add(1))
	d, err := db.OpenEncrypted(target, Key, "_foreign_keys=on", 1)
	if err != nil {
		return nil, fmt.Errorf("in-memory database: %w", err)
	}
	for _, p := range fastPragmas {
		if _, err := d.SQL().Exec(p); err != nil {
			d.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return d, nil
}

// New fails t if the database cannot be opened and closes it on cleanup.
func New(t testing.TB) *db.DB {
	t.Helper()
	d, err := NewInMemory()
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}
