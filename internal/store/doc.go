// Package store provides SQLite-backed durable storage for workflow
// instances, votes, the community roster, and feedback.
//
// The store is the single source of truth for workflow lifecycle state:
// it survives process restarts, and the scheduler's recovery scan is a
// plain query against it (ListDueForClose) rather than in-memory timer
// bookkeeping.
//
// # Critical Patterns
//
// Claimed terminal transitions
//   - Finalize routines call CloseInstance, a guarded UPDATE that only
//     matches the kind's active status. Exactly one caller observes
//     claimed=true; every other invocation is a no-op. This is what
//     makes close/resolve idempotent under timer+sweep double firing.
//
// Field-level merge
//   - Update writes only the columns it is given, so concurrent partial
//     updates to disjoint fields never overwrite each other.
//
// Atomic vote accept
//   - CastVote checks poll status and records the vote inside one
//     transaction; a vote racing a concurrent close is deterministically
//     accepted or rejected, never partially recorded.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//   - single writer connection (SQLite allows one writer at a time)
//
// All timestamps are normalized to UTC before writing; the driver's
// string encoding then compares consistently with bound query times.
package store
