package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/blocksync/pkg/domain"
)

// labelAttribute is previewed inside node labels when present.
const labelAttribute = "content"

const maxPreview = 24

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	// Controlled lists parents whose children are owned by a binding.
	Controlled []string
	// Changed lists nodes touched by the last edit.
	Changed []string
}

// GenerateMermaid produces a Mermaid flowchart of a tree under a synthetic root.
// Shapes:
// - Root: ((Circle))
// - Node with children: [[Subroutine]]
// - Leaf: [Rectangle]
func GenerateMermaid(rootLabel string, tree *domain.Tree, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	if rootLabel == "" {
		rootLabel = "root"
	}
	rootID := "root_"
	fmt.Fprintf(&sb, "    %s((\"%s\"))\n", rootID, escape(rootLabel))

	tree.Walk(func(parentID string, n *domain.Node) bool {
		safeID := sanitizeMermaidID(n.ID)

		opener, closer := "[", "]"
		if n.Children.Len() > 0 {
			opener, closer = "[[", "]]"
		}
		label := escape(n.ID)
		if preview := previewOf(n); preview != "" {
			label += " <br/> " + preview
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)

		from := rootID
		if parentID != "" {
			from = sanitizeMermaidID(parentID)
		}
		fmt.Fprintf(&sb, "    %s --> %s\n", from, safeID)
		return true
	})

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef controlled fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef changed fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		writeClass(&sb, "controlled", overlay.Controlled)
		writeClass(&sb, "changed", overlay.Changed)
	}

	return sb.String()
}

func writeClass(sb *strings.Builder, class string, ids []string) {
	seen := make(map[string]bool)
	for _, id := range ids {
		safeID := sanitizeMermaidID(id)
		if safeID == "" || seen[safeID] {
			continue
		}
		seen[safeID] = true
		fmt.Fprintf(sb, "    class %s %s;\n", safeID, class)
	}
}

func previewOf(n *domain.Node) string {
	v, ok := n.Attributes[labelAttribute]
	if !ok {
		return ""
	}
	s := fmt.Sprint(v)
	if r := []rune(s); len(r) > maxPreview {
		s = string(r[:maxPreview]) + "…"
	}
	return escape(s)
}

// AttributeKeys returns the node's attribute names in a stable order.
func AttributeKeys(n *domain.Node) []string {
	keys := make([]string, 0, len(n.Attributes))
	for k := range n.Attributes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
