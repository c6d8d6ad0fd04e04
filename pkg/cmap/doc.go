// Package cmap provides a concurrent string-keyed map split into shards.
//
// Keys are assigned to shards with murmur3, so unrelated keys rarely contend
// for the same lock. Each shard is guarded by its own RWMutex.
package cmap
