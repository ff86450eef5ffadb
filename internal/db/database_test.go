package db

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func foreignKeysPragma(t *testing.T) int {
	t.Helper()

	var fk int
	if err := DB.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query pragma: %v", err)
	}
	return fk
}

func TestInitDatabasePlainMemoryPath(t *testing.T) {
	if err := InitDatabase(":memory:"); err != nil {
		t.Fatalf("InitDatabase: %v", err)
	}
	defer Close()

	assert.Equal(t, 1, foreignKeysPragma(t))
}

func TestInitDatabasePathWithParameters(t *testing.T) {
	// A path that already carries query parameters must still end up with
	// foreign keys enabled
	if err := InitDatabase("file::memory:?cache=shared"); err != nil {
		t.Fatalf("InitDatabase: %v", err)
	}
	defer Close()

	assert.Equal(t, 1, foreignKeysPragma(t))
}
