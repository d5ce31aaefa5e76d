package walker

import "sync/atomic"

// Stats summarizes one build's walk across all source roots.
type Stats struct {
	FilesTransformed int64 `json:"files_transformed"`
	FilesReused      int64 `json:"files_reused"`
	FilesCopied      int64 `json:"files_copied"`
	BytesCopied      int64 `json:"bytes_copied"`
	DirsPruned       int64 `json:"dirs_pruned"`
	Skipped          int64 `json:"skipped"`
}

// SkippedEntry records a parser failure tolerated in skip mode.
type SkippedEntry struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Parser string `json:"parser"`
	Error  string `json:"error"`
}

type counters struct {
	transformed atomic.Int64
	reused      atomic.Int64
	copied      atomic.Int64
	bytes       atomic.Int64
	pruned      atomic.Int64
	skipped     atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		FilesTransformed: c.transformed.Load(),
		FilesReused:      c.reused.Load(),
		FilesCopied:      c.copied.Load(),
		BytesCopied:      c.bytes.Load(),
		DirsPruned:       c.pruned.Load(),
		Skipped:          c.skipped.Load(),
	}
}
