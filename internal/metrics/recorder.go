package metrics

import "time"

// EntryOutcome enumerates what the walker did with one source entry.
type EntryOutcome string

const (
	EntryTransformed EntryOutcome = "transformed"
	EntryReused      EntryOutcome = "reused"
	EntryCopied      EntryOutcome = "copied"
	EntryPruned      EntryOutcome = "pruned"
	EntrySkipped     EntryOutcome = "skipped"
)

// BuildOutcome enumerates final build statuses.
type BuildOutcome string

const (
	BuildSuccess   BuildOutcome = "success"
	BuildFailed    BuildOutcome = "failed"
	BuildCancelled BuildOutcome = "cancelled"
)

// Recorder defines observability hooks for build and walker metrics.
// Implementations must be safe for concurrent use.
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome BuildOutcome)
	ObserveParserDuration(parser string, d time.Duration)
	IncEntry(outcome EntryOutcome)
	AddBytesCopied(n int64)
	ObserveSourceFetchDuration(source string, d time.Duration, success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration)                     {}
func (NoopRecorder) IncBuildOutcome(BuildOutcome)                           {}
func (NoopRecorder) ObserveParserDuration(string, time.Duration)            {}
func (NoopRecorder) IncEntry(EntryOutcome)                                  {}
func (NoopRecorder) AddBytesCopied(int64)                                   {}
func (NoopRecorder) ObserveSourceFetchDuration(string, time.Duration, bool) {}
