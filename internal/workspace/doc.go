// Package workspace owns the node arena and link set: the graph of record.
//
// Nodes and links live in owned arenas keyed by stable handles; every
// cross-entity reference is a handle lookup, never direct ownership, so
// removal is pure index invalidation. The workspace maintains forward
// (producer to consumers) and backward (consumer input to producer)
// adjacency for O(1) lookups, and layers presentation-only Views on top.
//
// All mutation goes through Apply as a single transaction: every check
// runs before any state changes, and a rejected command leaves the
// workspace untouched.
package workspace
