package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SqliteBackend stores the collection in a single SQLite table.
//
// Tables:
//
//	items(position, id, data)  position keeps collection order; data holds
//	                           the item fields as JSON, without the id
type SqliteBackend struct {
	db *sql.DB
}

func NewSqliteBackend(dbPath string) (*SqliteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS items (
		position INTEGER PRIMARY KEY,
		id INTEGER NOT NULL UNIQUE,
		data TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SqliteBackend{db: db}, nil
}

func (s *SqliteBackend) Close() error {
	return s.db.Close()
}

// Load skips rows whose data column is not a JSON object.
func (s *SqliteBackend) Load() ([]Item, error) {
	rows, err := s.db.Query("SELECT id, data FROM items ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnreadable, err)
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		var (
			id  int64
			raw string
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorageUnreadable, err)
		}
		var fields map[string]any
		if err := json.Unmarshal([]byte(raw), &fields); err != nil || fields == nil {
			continue
		}
		items = append(items, Item{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnreadable, err)
	}
	return items, nil
}

// Save rewrites the table inside one transaction.
func (s *SqliteBackend) Save(items []Item) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM items"); err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO items (position, id, data) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, it := range items {
		b, err := json.Marshal(it.Fields)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(i, it.ID, string(b)); err != nil {
			return err
		}
	}
	return tx.Commit()
}
