// Package syncer keeps local storage and the remote mirror in step with the
// in-memory Record Store.
//
// Overview
//
// The Store applies every mutation optimistically and in memory. The Syncer
// is registered as a store listener and does the rest in two tiers:
//
//	Store.Create/Update/Delete
//	     │ (mutation applied, listeners notified in call order)
//	     ▼
//	Syncer.Mutated
//	     ├── Tier 1: whole collection → storage key "jobs"   (synchronous)
//	     └── Tier 2: {action, data} → relay queue → remote mirror (dispatcher goroutine)
//
// Tier 1 runs before Mutated returns, so a process that exits right after a
// mutation still has it on disk. Tier 2 is fire-and-forget: no retry and no
// rollback. A single dispatcher issues requests in mutation order, starting
// the next one as soon as the previous request has been written; responses
// may complete in any order. Failures of
// either tier are logged, counted and raised as error notifications. They
// are never returned to the caller of the store.
//
// Loading
//
// Load runs once per process:
//
//	mirror configured?
//	  yes → FetchAll ok?  yes → remote records
//	                      no  → local snapshot, else seed, else empty (+ info notification)
//	  no  → local snapshot, else seed, else empty
//
// A corrupt local snapshot is treated as absent.
//
// Short-lived processes
//
// CLI commands exit soon after a mutation. They call Wait to let in-flight
// relays finish; Wait never changes what the mutation returned.
package syncer
