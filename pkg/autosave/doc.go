/*
Package autosave persists live store contents as snapshots.

A Manager serializes snapshot access per document, optionally behind a distributed lock, so that several replicas can share one backend. Attach hooks a Manager to a live store: every committed, persistent change of the root list is saved; transient and ignored changes are skipped. Restore loads a snapshot back into a store as a non-persistent change.
*/
package autosave
