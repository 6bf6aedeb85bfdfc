// Package quest implements the per-test orchestration context.
//
// A Quest is created at the start of one test execution and owns everything
// that test touches: a root storage.Storage, the live Worlds (capability
// modules for APIs, databases, UIs or custom surfaces) and the ordered list of
// cleanup actions. Worlds are created on demand by Use and live until the
// quest completes or they are removed.
//
// # Lifecycle
//
// A quest is Active from New until Complete, then Completed. Complete runs
// every cleanup action in registration order, keeps going past failures, and
// reports them together as a *CleanupAggregateError. After completion every
// operation fails with ErrQuestCompleted.
//
// # Concurrency
//
// A quest belongs to one test. Its maps are still locked so that sub-steps a
// test spawns against its own quest are safe.
package quest
