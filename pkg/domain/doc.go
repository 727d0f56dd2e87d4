/*
Package domain contains the core domain models of the blocksync engine.

It defines the tree value that flows between the external owner and the store
replica, the selection pass-through, and the binding target. This package is
kept pure and free of external dependencies like I/O or persistence,
following Hexagonal Architecture principles.

# Key Entities

  - Node: An element of the tree (identifier, attributes, ordered children).
  - Tree: An immutable ordered list of nodes, compared by reference.
  - Target: Which subtree of the store a binding owns (Root or Controlled).
  - Selection: Opaque selection markers reported alongside outward changes.
  - SyncHooks: Callbacks for observing the synchronizer's decisions.

# Reference Identity

Trees are values identified by their address. Two trees with identical
content but different addresses are different values; the same *Tree
observed twice is "no change". Every edit (Update, Insert, Remove) returns a
new *Tree along the modified path and shares every untouched subtree.
*/
package domain
