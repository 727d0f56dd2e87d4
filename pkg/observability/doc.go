/*
Package observability turns synchronizer events into logs and Prometheus metrics.

Both are exposed as domain.SyncHooks, so they plug into a binding with blocksync.WithHooks and can be combined with Chain.
*/
package observability
