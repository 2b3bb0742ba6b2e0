// Package workflow implements the deadline-driven collaborative
// workflow engine: ephemeral, stateful instances (pairwise matches,
// polls, timed evaluations) that accept concurrent user actions and are
// finalized exactly once, at or after their deadline, even across
// process restarts.
//
// # Finalization Model
//
// Every kind registers an idempotent close routine. Three triggers can
// invoke it:
//
//   - a live one-shot timer armed at creation (matches, polls)
//   - the boot-time recovery scan (deadline elapsed while down)
//   - the periodic recovery sweep (evaluations have no per-instance
//     timer at all; the sweep is their only trigger)
//
// All three share the same routine, and the routine's first effect is a
// guarded status transition in the store. Whichever invocation claims
// the transition performs the notification side effects; every other
// invocation observes terminal status and returns without effect.
//
// # Concurrency
//
// A single background goroutine drives timer firing; close routines run
// in their own goroutines so a slow collaborator call (LLM summary,
// messaging) cannot delay other instances' deadlines. Mutating
// operations (start, cast vote, record verdict) may be called
// concurrently from any goroutine; the store's narrow contracts are the
// only shared mutable state.
//
// Failures inside a close routine are logged and never propagate out:
// a crash there would stop every other pending instance from
// finalizing.
package workflow
