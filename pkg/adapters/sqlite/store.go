// Package sqlite persists tree snapshots in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/aretw0/blocksync/pkg/ports"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SnapshotStore implements ports.SnapshotStore on SQLite with WAL mode.
type SnapshotStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has a single writer; one connection also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &SnapshotStore{db: db, now: time.Now}, nil
}

var _ ports.SnapshotStore = (*SnapshotStore)(nil)

// Close closes the database connection.
func (s *SnapshotStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// migrateUp applies the embedded migrations over the shared connection.
// The migrate instance is not closed: closing it would close db.
func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// SchemaVersion reports the applied migration version.
func (s *SnapshotStore) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// Save upserts the document.
func (s *SnapshotStore) Save(ctx context.Context, docID string, tree *domain.Tree) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to marshal tree: %w", err)
	}

	count := 0
	tree.Walk(func(string, *domain.Node) bool {
		count++
		return true
	})

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (doc_id, tree, node_count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			tree = excluded.tree,
			node_count = excluded.node_count,
			updated_at = excluded.updated_at
	`, docID, string(data), count, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save snapshot %q: %w", docID, err)
	}
	return nil
}

// Load reads and decodes the document.
func (s *SnapshotStore) Load(ctx context.Context, docID string) (*domain.Tree, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT tree FROM snapshots WHERE doc_id = ?`, docID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to load snapshot %q: %w", docID, err)
	}

	tree := domain.NewTree()
	if err := json.Unmarshal([]byte(data), tree); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot %q: %w", docID, err)
	}
	return tree, nil
}

// Delete removes the document. Missing documents are not an error.
func (s *SnapshotStore) Delete(ctx context.Context, docID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("failed to delete snapshot %q: %w", docID, err)
	}
	return nil
}

// List returns document IDs, most recently saved first.
func (s *SnapshotStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc_id FROM snapshots ORDER BY updated_at DESC, doc_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	docs := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot id: %w", err)
		}
		docs = append(docs, id)
	}
	return docs, rows.Err()
}

// NodeCount returns the number of nodes, at every depth, recorded with the document.
func (s *SnapshotStore) NodeCount(ctx context.Context, docID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT node_count FROM snapshots WHERE doc_id = ?`, docID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrSnapshotNotFound
	}
	return count, err
}
