package loam_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/blocksync/internal/scenario"
	adapter "github.com/aretw0/blocksync/pkg/adapters/loam"
	"github.com/aretw0/loam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const roundtripDoc = `---
name: controlled round trip
steps:
  - action: bind
    args:
      controlling_id: test
      value:
        - id: p1
          attributes: {content: hello}
  - action: edit
    args: {op: update, id: p1, attributes: {content: world}}
  - action: expect
    args: {changes: 1, controlled: [test]}
---
The store edits a controlled child and the owner hears about it once.
`

const commitDoc = `---
id: commit.md
steps:
  - action: bind
  - action: expect
    args: {writes: 0}
---
`

func setupRepo(t *testing.T, files map[string]string) *adapter.Loader {
	t.Helper()
	tmpDir := t.TempDir()
	repo, err := loam.Init(tmpDir, loam.WithVersioning(false))
	require.NoError(t, err)

	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0644))
	}
	return adapter.New(loam.NewTypedRepository[adapter.ScenarioMetadata](repo))
}

func TestLoader_ListSkipsDocumentsWithoutSteps(t *testing.T) {
	loader := setupRepo(t, map[string]string{
		"roundtrip.md": roundtripDoc,
		"commit.md":    commitDoc,
		"README.md":    "---\ntitle: notes\n---\nNot a scenario.\n",
	})

	ids, err := loader.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"commit", "roundtrip"}, ids)
}

func TestLoader_LoadDecodesFrontmatter(t *testing.T) {
	loader := setupRepo(t, map[string]string{"roundtrip.md": roundtripDoc})

	doc, err := loader.Load(context.Background(), "roundtrip")
	require.NoError(t, err)

	assert.Equal(t, "roundtrip", doc.ID)
	assert.Equal(t, "controlled round trip", doc.Scenario.Name)
	assert.Contains(t, doc.Description, "controlled child")
	require.Len(t, doc.Scenario.Steps, 3)
	assert.Equal(t, "bind", doc.Scenario.Steps[0].Action)
	assert.Equal(t, "test", doc.Scenario.Steps[0].Args["controlling_id"])
}

func TestLoader_NameDefaultsToID(t *testing.T) {
	loader := setupRepo(t, map[string]string{"commit.md": commitDoc})

	docs, err := loader.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "commit", docs[0].ID, "the extension of an explicit id is trimmed")
	assert.Equal(t, "commit", docs[0].Scenario.Name)
}

func TestLoader_LoadedScenarioRuns(t *testing.T) {
	loader := setupRepo(t, map[string]string{"roundtrip.md": roundtripDoc})

	doc, err := loader.Load(context.Background(), "roundtrip")
	require.NoError(t, err)

	trace, err := scenario.NewRunner().Run(context.Background(), doc.Scenario)
	require.NoError(t, err)
	assert.NotEmpty(t, trace.Entries)
}

func TestLoader_RejectsUnknownAction(t *testing.T) {
	loader := setupRepo(t, map[string]string{
		"broken.md": "---\nsteps:\n  - action: teleport\n---\n",
	})

	_, err := loader.LoadAll(context.Background())
	if err == nil {
		t.Fatal("expected an unknown action to be rejected")
	}
	assert.Contains(t, err.Error(), "teleport")
}

func TestLoader_DetectsIDCollisions(t *testing.T) {
	loader := setupRepo(t, map[string]string{
		"a.md": "---\nid: shared\nsteps:\n  - action: bind\n---\n",
		"b.md": "---\nid: shared\nsteps:\n  - action: bind\n---\n",
	})

	_, err := loader.LoadAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
}

func TestOpen_ReadsDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "roundtrip.md"), []byte(roundtripDoc), 0644))

	loader, err := adapter.Open(dir)
	require.NoError(t, err)

	ids, err := loader.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"roundtrip"}, ids)
}
