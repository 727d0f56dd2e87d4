// Package file persists tree snapshots as JSON documents on the local filesystem.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/aretw0/blocksync/pkg/ports"
)

const ext = ".json"

// ErrInvalidDocID is returned for IDs that cannot be used as file names.
var ErrInvalidDocID = errors.New("invalid document id")

// SnapshotStore implements ports.SnapshotStore with one JSON file per document.
type SnapshotStore struct {
	BasePath string
}

// New creates a store rooted at basePath.
// If basePath is empty, it defaults to ".blocksync/snapshots".
func New(basePath string) *SnapshotStore {
	if basePath == "" {
		basePath = filepath.Join(".blocksync", "snapshots")
	}
	return &SnapshotStore{BasePath: basePath}
}

var _ ports.SnapshotStore = (*SnapshotStore)(nil)

func (s *SnapshotStore) path(docID string) (string, error) {
	if docID == "" || strings.ContainsAny(docID, `/\`) || docID == "." || docID == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidDocID, docID)
	}
	return filepath.Join(s.BasePath, docID+ext), nil
}

// Save writes the tree atomically: temp file in the same directory, fsync, rename.
func (s *SnapshotStore) Save(ctx context.Context, docID string, tree *domain.Tree) error {
	destPath, err := s.path(docID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tree: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+docID+"-*"+ext)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Windows rename does not replace an existing destination.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing snapshot for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file into place: %w", err)
	}
	return nil
}

// Load reads and decodes the snapshot file.
func (s *SnapshotStore) Load(ctx context.Context, docID string) (*domain.Tree, error) {
	filePath, err := s.path(docID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	tree := domain.NewTree()
	if err := json.Unmarshal(data, tree); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot %q: %w", docID, err)
	}
	return tree, nil
}

// Delete removes the snapshot file. Missing files are not an error.
func (s *SnapshotStore) Delete(ctx context.Context, docID string) error {
	filePath, err := s.path(docID)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete snapshot file: %w", err)
	}
	return nil
}

// List returns the IDs of every snapshot file, skipping leftover temp files.
func (s *SnapshotStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	docs := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ext || strings.HasPrefix(name, "tmp-") {
			continue
		}
		docs = append(docs, strings.TrimSuffix(name, ext))
	}
	return docs, nil
}
