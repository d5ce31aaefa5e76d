// Package incremental decides which source entries need reprocessing and
// fingerprints the build configuration so cached results can be trusted.
package incremental

import "git.home.luguber.info/inful/sitebuilder/internal/manifest"

// IsDirty reports whether the file name must be transformed again.
// A file is dirty when there is no previous record for it, the record carries
// no numeric mtime, or the source is strictly newer than the record.
// Equal mtimes are clean, so a rerun over an untouched tree is a no-op.
func IsDirty(name string, sourceMTime float64, prev manifest.Tree) bool {
	rec := prev.Sub(name)
	if rec == nil {
		return true
	}
	prevMTime, ok := rec.MTime()
	if !ok {
		return true
	}
	return sourceMTime > prevMTime
}
