// Package engine propagates value changes through a workspace graph.
//
// A propagation pass seeds from the nodes whose output changed, marks all
// transitive consumers dirty, partitions the dirty set into topological
// levels and executes each level's nodes concurrently, joining the whole
// level before advancing. Dirty-flag memoization means a node re-executes
// only when one of its input values actually changed. Feedback kinds run
// at level zero on their buffered value instead of gating on producers,
// which is what turns a cycle into a well-defined schedule.
//
// A single node's failure is non-fatal: its outputs become error-carrying
// values that flow downstream as ordinary data.
package engine
