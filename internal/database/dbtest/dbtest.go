// Package dbtest opens throwaway SQLite databases carrying the listings
// schema so repository, service and handler tests run without a server.
package dbtest

import (
	"database/sql"
	_ "embed"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/iliyamo/ticket-autobuy/internal/database"
)

//go:embed schema.sql
var schemaSQL string

// Open returns an in-memory database with the schema applied.  The handle
// is closed when the test ends.
func Open(t testing.TB) *database.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// one connection: every :memory: connection is its own database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return database.Wrap(db, database.DialectSQLite)
}
