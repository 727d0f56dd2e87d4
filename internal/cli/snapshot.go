package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/blocksync/internal/dto"
	"github.com/aretw0/blocksync/internal/presentation/graph"
	"github.com/aretw0/blocksync/internal/validator"
	"github.com/aretw0/blocksync/pkg/domain"
	"gopkg.in/yaml.v3"
)

// ReadTreeFile decodes a YAML or JSON node list and validates it.
func ReadTreeFile(path string) (*domain.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree file: %w", err)
	}
	var specs []dto.NodeSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to parse tree file: %w", err)
	}
	tree := dto.ToTree(specs)
	if err := validator.ValidateTree(tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// EncodeTreeYAML renders a tree in the same shape ReadTreeFile accepts.
func EncodeTreeYAML(tree *domain.Tree) ([]byte, error) {
	return yaml.Marshal(dto.FromTree(tree))
}

// InspectMarkdown describes a snapshot as a markdown outline.
func InspectMarkdown(docID string, tree *domain.Tree) string {
	var sb strings.Builder
	count := 0
	tree.Walk(func(string, *domain.Node) bool {
		count++
		return true
	})
	fmt.Fprintf(&sb, "# %s\n\n%d top-level nodes, %d in total.\n\n", docID, tree.Len(), count)
	writeOutline(&sb, tree, 0)
	return sb.String()
}

func writeOutline(sb *strings.Builder, tree *domain.Tree, depth int) {
	for _, n := range tree.Nodes() {
		fmt.Fprintf(sb, "%s- `%s`", strings.Repeat("  ", depth), n.ID)
		for _, k := range graph.AttributeKeys(n) {
			fmt.Fprintf(sb, " %s=%v", k, n.Attributes[k])
		}
		sb.WriteString("\n")
		writeOutline(sb, n.Children, depth+1)
	}
}
