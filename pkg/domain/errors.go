package domain

import "errors"

// ErrNodeNotFound is returned by stores when a mutation names a node that does not exist.
var ErrNodeNotFound = errors.New("node not found")

// ErrSnapshotNotFound is returned when a document ID cannot be found in a snapshot store.
var ErrSnapshotNotFound = errors.New("snapshot not found")
