// Package storage provides the hierarchical, scoped key-value store that backs
// a single quest.
//
// # Purpose
//
// Every quest owns one root Storage node. Worlds, data forges and test code
// read and write through it. A node holds plain values under symbolic keys and
// child nodes ("sub-storages") under the same kind of keys.
//
// # Characteristics
//
//   - **Ephemeral:** Created with the quest, cleared when the quest completes
//   - **Idempotent children:** Sub(k) on the same node always returns the same
//     child, so collaborators addressing the same key observe each other's writes
//   - **Typed reads:** Get[T] fails with a *KeyError when a key is missing or
//     holds a value of a different shape
//   - **Thread-Safe:** Each node serializes Put/Get/Sub with its own RWMutex so
//     concurrent sub-steps of one test never lose updates
//
// # Concurrency Model
//
// Locking is per node rather than per tree. A quest is normally driven by a
// single goroutine, so contention is rare; when a test fans out into
// sub-steps, writers to unrelated compartments do not block each other.
package storage
