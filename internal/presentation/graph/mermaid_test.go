package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/blocksync/internal/presentation/graph"
	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/sebdah/goldie/v2"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		tree     *domain.Tree
		contains []string
	}{
		{
			name: "Root Shape",
			tree: domain.NewTree(),
			contains: []string{
				`root_(("root"))`,
			},
		},
		{
			name: "Container Shape",
			tree: domain.NewTree(domain.NewNode("group", nil, domain.NewNode("child", nil))),
			contains: []string{
				`group[["group"]]`,
				`child["child"]`,
				"group --> child",
			},
		},
		{
			name: "ID Sanitization",
			tree: domain.NewTree(
				domain.NewNode("path/to/file.md", nil),
				domain.NewNode("hyphen-ated", nil),
			),
			contains: []string{
				`path_to_file_md["path/to/file.md"]`,
				`hyphen_ated["hyphen-ated"]`,
			},
		},
		{
			name: "Preview Truncation",
			tree: domain.NewTree(domain.NewNode("p", domain.Attributes{"content": strings.Repeat("x", 40)})),
			contains: []string{
				`p["p <br/> ` + strings.Repeat("x", 24) + `…"]`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid("", tt.tree, nil)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
		})
	}
}

func TestGenerateMermaid_Golden(t *testing.T) {
	tree := domain.NewTree(
		domain.NewNode("header", domain.Attributes{"content": "Welcome"}),
		domain.NewNode("gallery", nil,
			domain.NewNode("img-1", domain.Attributes{"content": `a "quoted" caption`}),
			domain.NewNode("img.2", nil),
		),
	)
	overlay := &graph.GraphOverlay{
		Controlled: []string{"gallery"},
		Changed:    []string{"img-1", "img-1"},
	}

	g := goldie.New(t)
	g.Assert(t, "document", []byte(graph.GenerateMermaid("doc", tree, overlay)))
}

func TestAttributeKeys_Sorted(t *testing.T) {
	n := domain.NewNode("a", domain.Attributes{"z": 1, "a": 2, "m": 3})
	got := strings.Join(graph.AttributeKeys(n), ",")
	if got != "a,m,z" {
		t.Errorf("AttributeKeys() = %q, want %q", got, "a,m,z")
	}
}
