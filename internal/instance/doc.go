// Package instance defines the persisted shapes of workflow instances.
//
// Three concrete kinds share one generalized lifecycle:
//   - Match: a pairwise conversation that closes after a fixed delay
//   - Poll: a multi-option vote that tallies at its deadline
//   - Evaluation: a long-lived peer-verdict count resolved by sweep
//
// # Lifecycle Invariants
//
//   - Status moves from the kind's active state to its terminal state
//     exactly once; the transition is claimed atomically in the store.
//   - ClosedAt is set if and only if Status is terminal.
//   - Instances are never deleted; terminal records remain for audit.
//
// The store and the workflow services both depend on this package; it
// depends on nothing but the standard library.
package instance
