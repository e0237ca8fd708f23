// Package conflict finds and repairs conflicts that keep a task graph from
// producing a valid schedule.
//
// Detection runs a set of stateless rules over the graph (resource contention
// between ready tasks, infeasible deadlines, priority inversion and cycles)
// and registers every finding as a pending Conflict. Resolution picks a
// strategy by conflict type, builds an inspectable Plan of tagged Actions and
// runs it under a timeout while holding advisory locks on the tasks it
// touches.
//
// Conflict lifecycle:
//
//	pending -> resolving -> resolved
//	pending -> resolving -> retryable -> resolving -> ...
//	... -> resolving -> escalated (after MaxAttempts failed attempts)
//
// Resolved and escalated are terminal.
package conflict
