package db

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

var DB *sql.DB

// InitDatabase initializes SQLite database and creates tables
func InitDatabase(dbPath string) error {
	// In-memory databases have no parent directory to create
	if !strings.Contains(dbPath, ":memory:") && !strings.Contains(dbPath, "mode=memory") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Paths like file::memory:?cache=shared already carry parameters
	dsn := dbPath
	if strings.Contains(dsn, "?") {
		dsn += "&_foreign_keys=1"
	} else {
		dsn += "?_foreign_keys=1"
	}

	var err error
	DB, err = sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := DB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Create tables
	if err := CreateTables(DB); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("Database initialized at: %s", dbPath)
	return nil
}

// CreateTables creates all necessary tables on the given connection
func CreateTables(conn *sql.DB) error {
	createPresentationsTable := `
	CREATE TABLE IF NOT EXISTS presentations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL DEFAULT '',
		is_present_mode INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		modified_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := conn.Exec(createPresentationsTable); err != nil {
		return fmt.Errorf("failed to create presentations table: %w", err)
	}

	createSlidesTable := `
	CREATE TABLE IF NOT EXISTS slides (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		presentation_id INTEGER NOT NULL REFERENCES presentations(id),
		position INTEGER NOT NULL,
		content TEXT NOT NULL DEFAULT '[]',
		version INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		modified_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(presentation_id, position)
	);`

	if _, err := conn.Exec(createSlidesTable); err != nil {
		return fmt.Errorf("failed to create slides table: %w", err)
	}

	createUsersTable := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := conn.Exec(createUsersTable); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	createMembershipsTable := `
	CREATE TABLE IF NOT EXISTS user_presentations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id),
		presentation_id INTEGER NOT NULL REFERENCES presentations(id),
		can_edit INTEGER NOT NULL DEFAULT 0,
		is_owner INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		modified_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, presentation_id)
	);`

	if _, err := conn.Exec(createMembershipsTable); err != nil {
		return fmt.Errorf("failed to create user_presentations table: %w", err)
	}

	// Index on (presentation_id, position) for slide sequence scans
	createSlidesIndex := `CREATE INDEX IF NOT EXISTS idx_slides_presentation ON slides(presentation_id, position);`
	if _, err := conn.Exec(createSlidesIndex); err != nil {
		return fmt.Errorf("failed to create slides index: %w", err)
	}

	// Index on presentation_id for membership lookups
	createMembershipIndex := `CREATE INDEX IF NOT EXISTS idx_user_presentations_presentation ON user_presentations(presentation_id);`
	if _, err := conn.Exec(createMembershipIndex); err != nil {
		return fmt.Errorf("failed to create user_presentations index: %w", err)
	}

	return nil
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
