// Package validator checks trees before they are loaded into a store.
package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/blocksync/pkg/domain"
)

// ValidateTree rejects nodes without IDs and IDs used more than once at any depth:
// stores address nodes by ID alone.
func ValidateTree(tree *domain.Tree) error {
	seen := make(map[string]bool)
	var errors []string

	tree.Walk(func(parentID string, n *domain.Node) bool {
		switch {
		case n.ID == "":
			where := "root"
			if parentID != "" {
				where = fmt.Sprintf("'%s'", parentID)
			}
			errors = append(errors, fmt.Sprintf("Node without ID under %s", where))
		case seen[n.ID]:
			errors = append(errors, fmt.Sprintf("Duplicate node ID: '%s'", n.ID))
		}
		seen[n.ID] = true
		return true
	})

	if len(errors) > 0 {
		return fmt.Errorf("found %d errors:\n- %s", len(errors), strings.Join(errors, "\n- "))
	}
	return nil
}
