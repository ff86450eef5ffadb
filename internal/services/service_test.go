package services

import (
	"database/sql"
	"testing"

	"collabdeck/internal/db"
)

// newTestDB opens a private in-memory database with the full schema.
// MaxOpenConns(1) keeps the pool on the single connection that owns the
// in-memory store.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite3", ":memory:?_foreign_keys=1")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateTables(conn); err != nil {
		t.Fatalf("create tables: %v", err)
	}
	return conn
}

// newTestServices wires the service graph against a fresh database
func newTestServices(t *testing.T) (*UserService, *PermissionService, *SlideService, *PresenceRegistry) {
	t.Helper()

	conn := newTestDB(t)
	presence := NewPresenceRegistry()
	users := NewUserService(conn)
	permissions := NewPermissionService(conn, presence, users)
	slides := NewSlideService(conn, permissions)
	return users, permissions, slides, presence
}
