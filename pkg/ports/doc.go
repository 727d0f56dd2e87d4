/*
Package ports defines the driven ports (interfaces) for the blocksync engine.

These interfaces decouple the synchronizer from the store that holds the
replica and from the backends that persist snapshots of it.

# Key Interfaces

  - Store: The mutable tree replica (Reader + Writer + Subscriber). The
    synchronizer only ever replaces whole values through it.
  - SnapshotStore: Persists tree snapshots per document ID.
  - DistributedLocker: Provides distributed locking for concurrent snapshot writers.
*/
package ports
