// Package workspace manages the directory git sources are checked out into.
//
// The directory persists across builds so checkouts are updated in place,
// which keeps file mtimes stable and the incremental cache warm. Checkouts
// of sources that are no longer configured are pruned.
package workspace
