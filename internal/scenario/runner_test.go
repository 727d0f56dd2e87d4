package scenario_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/blocksync/internal/scenario"
	"github.com/aretw0/blocksync/pkg/adapters/memory"
	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/aretw0/blocksync/pkg/registry"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Golden(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, path := range files {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			sc, err := scenario.LoadFile(path)
			require.NoError(t, err)

			trace, err := scenario.NewRunner().Run(context.Background(), sc)
			require.NoError(t, err, "trace so far:\n%s", trace)

			g := goldie.New(t)
			g.Assert(t, name, []byte(trace.String()))
		})
	}
}

func TestParse_RejectsUnknownAction(t *testing.T) {
	_, err := scenario.Parse([]byte(`
name: bad
steps:
  - action: teleport
`))
	assert.ErrorContains(t, err, `unknown action "teleport"`)
}

func TestParse_RequiresSteps(t *testing.T) {
	_, err := scenario.Parse([]byte("name: empty\n"))
	assert.Error(t, err)
}

func TestRun_FailedExpectationStops(t *testing.T) {
	sc, err := scenario.Parse([]byte(`
name: failing
steps:
  - action: bind
    args: {value: [{id: a}]}
  - action: expect
    args: {writes: 5, target: root}
  - action: close
`))
	require.NoError(t, err)

	trace, err := scenario.NewRunner().Run(context.Background(), sc)
	assert.ErrorIs(t, err, scenario.ErrExpectation)
	require.Len(t, trace.Entries, 2)
	assert.Equal(t, "error: expectation failed: writes = 1, want 5", trace.Entries[1].Detail)
}

func TestRun_RejectsUnknownArgs(t *testing.T) {
	sc, err := scenario.Parse([]byte(`
name: typo
steps:
  - action: bind
    args: {controling_id: x}
`))
	require.NoError(t, err)

	_, err = scenario.NewRunner().Run(context.Background(), sc)
	assert.ErrorContains(t, err, "controling_id")
}

func TestRun_UpdateBeforeBind(t *testing.T) {
	sc, err := scenario.Parse([]byte(`
name: unbound
steps:
  - action: update
    args: {value: []}
`))
	require.NoError(t, err)

	_, err = scenario.NewRunner().Run(context.Background(), sc)
	assert.ErrorContains(t, err, "no binding")
}

func TestRun_SharedRegistry(t *testing.T) {
	reg := registry.NewRegistry()
	editor := memory.NewStore(memory.WithRoot(domain.NewTree(domain.NewNode("keep", nil))))
	reg.Register("editor", editor)

	sc, err := scenario.Parse([]byte(`
name: shared
steps:
  - action: bind
    args: {store: editor, controlling_id: keep, value: [{id: child}]}
  - action: expect
    args: {controlled: [keep]}
`))
	require.NoError(t, err)

	trace, err := scenario.NewRunner(scenario.WithRegistry(reg)).Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Contains(t, trace.String(), "bind editor target=controlled(keep)")

	// The runner closes its binding when the run ends.
	assert.False(t, editor.IsControlled("keep"))
	assert.Equal(t, 1, editor.Children("keep").Len())
}

func TestRun_Canceled(t *testing.T) {
	sc, err := scenario.Parse([]byte(`
name: canceled
steps:
  - action: bind
`))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = scenario.NewRunner().Run(ctx, sc)
	assert.ErrorIs(t, err, context.Canceled)
}
