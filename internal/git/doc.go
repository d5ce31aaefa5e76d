// Package git mirrors remote repositories into a local workspace so they can
// be used as build source roots.
//
// Checkouts are updated in place rather than re-cloned: files that did not
// change keep their modification time, which keeps the incremental cache warm.
package git
