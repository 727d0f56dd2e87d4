// Package loam loads scenario documents from a directory through a read-only
// Loam repository. Each document carries its scenario in the frontmatter and
// may describe it in the body.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/blocksync/internal/scenario"
	"github.com/aretw0/loam"
)

// Loader reads scenarios out of a typed Loam repository.
type Loader struct {
	Repo *loam.TypedRepository[ScenarioMetadata]
}

// New wraps an existing typed repository.
func New(repo *loam.TypedRepository[ScenarioMetadata]) *Loader {
	return &Loader{Repo: repo}
}

// Open initializes a read-only repository rooted at dir.
func Open(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath, loam.WithReadOnly(true))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[ScenarioMetadata](repo)), nil
}

// List returns the sorted IDs of every document that declares steps.
// Documents without steps (a README, notes) are skipped.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	scenarios, err := l.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(scenarios))
	for _, sc := range scenarios {
		ids = append(ids, sc.ID)
	}
	return ids, nil
}

// Load reads and validates a single scenario document.
func (l *Loader) Load(ctx context.Context, id string) (*Document, error) {
	doc, err := l.Repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loam get failed for %s: %w", id, err)
	}
	return toDocument(doc.ID, doc.Data, doc.Content)
}

// LoadAll reads every scenario in the repository, ordered by ID.
// Two documents resolving to the same ID are an error.
func (l *Loader) LoadAll(ctx context.Context) ([]*Document, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	out := make([]*Document, 0, len(docs))
	for _, doc := range docs {
		if len(doc.Data.Steps) == 0 {
			continue
		}
		sd, err := toDocument(doc.ID, doc.Data, doc.Content)
		if err != nil {
			return nil, err
		}
		if existing, ok := seen[sd.ID]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", sd.ID, existing, doc.ID)
		}
		seen[sd.ID] = doc.ID
		out = append(out, sd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Document is a scenario together with its source ID and prose body.
type Document struct {
	ID          string
	Description string
	Scenario    *scenario.Scenario
}

func toDocument(docID string, meta ScenarioMetadata, content string) (*Document, error) {
	rawID := meta.ID
	if rawID == "" {
		rawID = docID
	}
	id := trimExtension(rawID)

	sc := &scenario.Scenario{Name: meta.Name, Steps: make([]scenario.Step, 0, len(meta.Steps))}
	if sc.Name == "" {
		sc.Name = id
	}
	for _, step := range meta.Steps {
		sc.Steps = append(sc.Steps, scenario.Step{Action: step.Action, Args: step.Args})
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", id, err)
	}

	return &Document{
		ID:          id,
		Description: strings.TrimSpace(content),
		Scenario:    sc,
	}, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
