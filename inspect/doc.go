// Package inspect captures point-in-time snapshots of host-exposed
// named values and diffs successive captures. Comparison is
// representation-level: two values are equal when their canonical
// renderings match, not when they are the same object.
package inspect
