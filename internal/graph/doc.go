// Package graph is the in-memory task dependency store used by the resolver and
// the conflict engine.
//
// # Model
//
// Every vertex is a task with a payload (TaskData), a lifecycle State and two
// edge sets: the tasks it depends on (dependencies) and the tasks that depend on
// it (dependents). The two sets are kept as exact inverses of each other across
// the whole graph.
//
// # Invariants
//
//   - The graph is acyclic at all times. AddDependency runs a reachability check
//     before touching any edge set and rejects a cyclic edge with a *CycleError,
//     leaving the adjacency structure untouched.
//   - Check-then-write happens under one write lock, so it is atomic with
//     respect to every other mutation on the same Graph.
//   - "Ready" is derived: a task is ready when it is pending and every one of
//     its dependencies has completed. It is never stored.
//
// # Algorithms
//
// All traversals use explicit stacks so graphs with tens of thousands of nodes
// never risk goroutine stack growth:
//
//   - DetectCycles: Tarjan strongly-connected components over the dependents
//     relation. Components larger than one node are cycles.
//   - Sort: three-colour depth-first topological sort over the dependencies
//     relation.
//   - ExecutionLevels: longest-path depth of every node, bucketed by level.
//   - LongestChains: duration-weighted longest path through the DAG, used for
//     the critical path and for deadline feasibility.
package graph
