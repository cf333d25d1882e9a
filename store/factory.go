package store

import (
	"fmt"
	"path/filepath"
)

// Backend names accepted by NewBackend.
const (
	BackendJSON   = "json"
	BackendSqlite = "sqlite"
	BackendMemory = "memory"
)

// NewBackend creates a Backend based on the backend name.
//
// Supported backends:
//
//	"json"   - dataDir/items.json (default)
//	"sqlite" - SQLite database at dataDir/items.db
//	"memory" - In-memory (ephemeral, for testing)
func NewBackend(kind, dataDir string) (Backend, error) {
	switch kind {
	case BackendJSON, "":
		return NewJsonFileBackend(filepath.Join(dataDir, "items.json"))
	case BackendSqlite:
		return NewSqliteBackend(filepath.Join(dataDir, "items.db"))
	case BackendMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: json, sqlite, memory)", kind)
	}
}
