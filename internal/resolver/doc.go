// Package resolver owns a dependency graph of tasks and turns it into an
// execution plan.
//
// A Resolver exposes task and edge mutation, cycle queries and Resolve, which
// orders the graph with one of five strategies: topological, priority based,
// resource aware, deadline driven and critical path. Results are cached per
// strategy and task set; every mutating method clears the whole cache.
//
// Resolve times itself into a metrics ring and logs a warning through the
// context logger when it runs past the configured budget. The budget is
// advisory and never fails a call.
package resolver
