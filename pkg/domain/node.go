package domain

import (
	"encoding/json"
	"maps"
	"slices"
)

// Attributes holds the key-value properties of a node.
type Attributes map[string]any

// Node represents an element of the synchronized tree.
// Nodes are treated as immutable once they are part of a Tree: edits go
// through the With* helpers, which return copies.
type Node struct {
	ID         string     `json:"id" yaml:"id"`
	Attributes Attributes `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Children   *Tree      `json:"children,omitempty" yaml:"children,omitempty"`
}

// NewNode creates a node with its own children tree.
func NewNode(id string, attrs Attributes, children ...*Node) *Node {
	return &Node{
		ID:         id,
		Attributes: attrs,
		Children:   NewTree(children...),
	}
}

// WithAttributes returns a copy of the node with attrs merged over the existing ones.
func (n *Node) WithAttributes(attrs Attributes) *Node {
	next := *n
	next.Attributes = make(Attributes, len(n.Attributes)+len(attrs))
	maps.Copy(next.Attributes, n.Attributes)
	maps.Copy(next.Attributes, attrs)
	return &next
}

// WithChildren returns a copy of the node holding the given children tree by reference.
func (n *Node) WithChildren(children *Tree) *Node {
	next := *n
	next.Children = children
	return &next
}

// Tree is an ordered list of nodes.
// A *Tree is a value: it is never mutated after construction.
type Tree struct {
	nodes []*Node
}

// NewTree allocates a new tree holding the given nodes.
// It always allocates, so NewTree() != NewTree().
func NewTree(nodes ...*Node) *Tree {
	return &Tree{nodes: slices.Clone(nodes)}
}

// Same reports whether a and b are the same tree value.
func Same(a, b *Tree) bool {
	return a == b
}

// Len returns the number of top-level nodes. A nil tree has length 0.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.nodes)
}

// At returns the top-level node at index i.
func (t *Tree) At(i int) *Node {
	return t.nodes[i]
}

// Nodes returns a copy of the top-level node list.
func (t *Tree) Nodes() []*Node {
	if t == nil {
		return nil
	}
	return slices.Clone(t.nodes)
}

// Find looks up a node by ID anywhere in the tree.
func (t *Tree) Find(id string) *Node {
	var found *Node
	t.Walk(func(_ string, n *Node) bool {
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Walk visits every node depth-first in order, passing the ID of the
// enclosing node ("" for top-level nodes). Returning false stops the walk.
func (t *Tree) Walk(fn func(parentID string, n *Node) bool) {
	t.walk("", fn)
}

func (t *Tree) walk(parentID string, fn func(string, *Node) bool) bool {
	if t == nil {
		return true
	}
	for _, n := range t.nodes {
		if !fn(parentID, n) {
			return false
		}
		if !n.Children.walk(n.ID, fn) {
			return false
		}
	}
	return true
}

// Update replaces the node with the given ID by fn(node).
// It returns a new tree sharing every unchanged subtree, and false (with the
// receiver itself) when the node is not present.
func (t *Tree) Update(id string, fn func(*Node) *Node) (*Tree, bool) {
	if t == nil {
		return t, false
	}
	for i, n := range t.nodes {
		if n.ID == id {
			return t.with(i, fn(n)), true
		}
		if children, ok := n.Children.Update(id, fn); ok {
			return t.with(i, n.WithChildren(children)), true
		}
	}
	return t, false
}

// Insert returns a new tree with node placed at index among the top-level nodes.
// An index outside [0, Len] appends.
func (t *Tree) Insert(index int, node *Node) *Tree {
	nodes := t.Nodes()
	if index < 0 || index > len(nodes) {
		index = len(nodes)
	}
	return &Tree{nodes: slices.Insert(nodes, index, node)}
}

// Remove returns a new tree without the node with the given ID (searched recursively).
func (t *Tree) Remove(id string) (*Tree, bool) {
	if t == nil {
		return t, false
	}
	for i, n := range t.nodes {
		if n.ID == id {
			return &Tree{nodes: slices.Delete(t.Nodes(), i, i+1)}, true
		}
		if children, ok := n.Children.Remove(id); ok {
			return t.with(i, n.WithChildren(children)), true
		}
	}
	return t, false
}

// Clone deep-copies the tree. Every node and subtree of the result is a new
// reference, so the clone is a distinct value from the receiver.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	nodes := make([]*Node, len(t.nodes))
	for i, n := range t.nodes {
		nodes[i] = &Node{
			ID:         n.ID,
			Attributes: maps.Clone(n.Attributes),
			Children:   n.Children.Clone(),
		}
	}
	return &Tree{nodes: nodes}
}

func (t *Tree) with(i int, n *Node) *Tree {
	nodes := t.Nodes()
	nodes[i] = n
	return &Tree{nodes: nodes}
}

// MarshalJSON encodes the tree as an array of nodes.
func (t *Tree) MarshalJSON() ([]byte, error) {
	if t == nil || t.nodes == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.nodes)
}

// UnmarshalJSON decodes an array of nodes.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var nodes []*Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return err
	}
	t.nodes = nodes
	return nil
}
