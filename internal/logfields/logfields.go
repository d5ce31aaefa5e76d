package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStatus     = "status"
	KeySource     = "source"
	KeyPath       = "path"
	KeyName       = "name"
	KeyKind       = "kind"
	KeyParser     = "parser"
	KeyDurationMS = "duration_ms"
	KeyBytes      = "bytes"
	KeyCount      = "count"
	KeyURL        = "url"
	KeySchedule   = "schedule"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Status(s string) slog.Attr       { return slog.String(KeyStatus, s) }
func Source(s string) slog.Attr       { return slog.String(KeySource, s) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Name(n string) slog.Attr         { return slog.String(KeyName, n) }
func Kind(k string) slog.Attr         { return slog.String(KeyKind, k) }
func Parser(p string) slog.Attr       { return slog.String(KeyParser, p) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Bytes(b string) slog.Attr        { return slog.String(KeyBytes, b) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Schedule(s string) slog.Attr     { return slog.String(KeySchedule, s) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
