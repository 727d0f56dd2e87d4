// Package dto holds the loose, tag-decoded shapes of trees used by file formats.
package dto

import (
	"github.com/aretw0/blocksync/pkg/domain"
)

// NodeSpec is the decoded form of a node in YAML scenarios and HTTP bodies.
// It uses "mapstructure" tags so generic maps decode into it.
type NodeSpec struct {
	ID         string         `json:"id" yaml:"id" mapstructure:"id"`
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty" mapstructure:"attributes"`
	Children   []NodeSpec     `json:"children,omitempty" yaml:"children,omitempty" mapstructure:"children"`
}

// ToNode builds a fresh domain node.
func (s NodeSpec) ToNode() *domain.Node {
	children := make([]*domain.Node, len(s.Children))
	for i, c := range s.Children {
		children[i] = c.ToNode()
	}
	return domain.NewNode(s.ID, s.Attributes, children...)
}

// ToTree builds a fresh tree. A nil slice yields an empty tree.
func ToTree(specs []NodeSpec) *domain.Tree {
	nodes := make([]*domain.Node, len(specs))
	for i, s := range specs {
		nodes[i] = s.ToNode()
	}
	return domain.NewTree(nodes...)
}

// FromTree flattens a tree back into specs.
func FromTree(t *domain.Tree) []NodeSpec {
	specs := make([]NodeSpec, 0, t.Len())
	for _, n := range t.Nodes() {
		specs = append(specs, NodeSpec{
			ID:         n.ID,
			Attributes: n.Attributes,
			Children:   FromTree(n.Children),
		})
	}
	return specs
}
