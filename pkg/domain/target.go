package domain

import "fmt"

// TargetMode defines which part of the store a binding owns.
type TargetMode string

const (
	ModeRoot       TargetMode = "root"       // The store's top-level node list
	ModeControlled TargetMode = "controlled" // The children of one designated node
)

// Target identifies the subtree a binding synchronizes.
// Targets are comparable; two bindings with equal targets on the same store
// compete for the same value.
type Target struct {
	parentID string
}

// Root returns the target bound to the store's top-level node list.
func Root() Target {
	return Target{}
}

// Controlled returns the target bound to the children of parentID.
func Controlled(parentID string) Target {
	return Target{parentID: parentID}
}

// TargetFor selects the target from an optional controlling node ID.
// An empty ID selects Root.
func TargetFor(controllingID string) Target {
	return Target{parentID: controllingID}
}

// Mode returns whether the target is root or controlled.
func (t Target) Mode() TargetMode {
	if t.parentID == "" {
		return ModeRoot
	}
	return ModeControlled
}

// IsRoot reports whether the target is the top-level node list.
func (t Target) IsRoot() bool {
	return t.parentID == ""
}

// ParentID returns the controlling node ID ("" for Root).
func (t Target) ParentID() string {
	return t.parentID
}

func (t Target) String() string {
	if t.IsRoot() {
		return string(ModeRoot)
	}
	return fmt.Sprintf("%s(%s)", ModeControlled, t.parentID)
}
