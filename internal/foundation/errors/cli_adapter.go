package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// CLIErrorAdapter handles error presentation and exit code determination for CLI applications.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
	exit    func(int)
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
		out:     os.Stderr,
		exit:    os.Exit,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	if classified, ok := AsClassified(err); ok {
		return a.exitCodeFromClassified(classified)
	}

	return 1
}

func (a *CLIErrorAdapter) exitCodeFromClassified(err *ClassifiedError) int {
	switch err.Category() {
	case CategoryValidation:
		return 2 // Invalid usage
	case CategoryConfig:
		return 7 // Configuration error
	case CategorySource, CategoryNotify, CategoryPublish:
		return 8 // External system error
	case CategoryParser, CategoryEntryKind, CategoryFileSystem, CategoryManifest:
		return 11 // Build error
	case CategoryHistory, CategoryRuntime:
		return 12 // Runtime error
	case CategoryInternal:
		return 10 // Internal error
	default:
		return 1 // General error
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	if classified, ok := AsClassified(err); ok {
		return a.formatClassified(classified)
	}

	return fmt.Sprintf("Error: %v", err)
}

// formatClassified renders the message plus the offending path when one was recorded.
func (a *CLIErrorAdapter) formatClassified(err *ClassifiedError) string {
	if a.verbose {
		return err.Error()
	}

	msg := "Error: " + err.Message()
	if path, ok := err.Context().GetString("path"); ok {
		msg += " (" + path + ")"
	}
	if err.Cause() != nil {
		msg += ": " + err.Cause().Error()
	}
	if err.RetryStrategy() == RetryUserAction {
		msg += "\nFix the input and rerun the build."
	}
	return msg
}

// HandleError processes an error and exits the program with appropriate code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}

	exitCode := a.ExitCodeFor(err)
	message := a.FormatError(err)

	if a.shouldLog(err) {
		a.logError(err)
	}

	_, _ = fmt.Fprintf(a.out, "%s\n", message)
	a.exit(exitCode)
}

func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}

	if classified, ok := AsClassified(err); ok {
		return classified.Severity() == SeverityFatal
	}

	return true
}

func (a *CLIErrorAdapter) logError(err error) {
	if classified, ok := AsClassified(err); ok {
		level := a.slogLevelFromSeverity(classified.Severity())
		attrs := []slog.Attr{
			slog.String("category", string(classified.Category())),
		}
		for k, v := range classified.Context() {
			attrs = append(attrs, slog.Any(k, v))
		}
		if classified.CanRetry() {
			attrs = append(attrs, slog.Bool("retryable", true))
		}

		a.logger.LogAttrs(context.Background(), level, classified.Message(), attrs...)
		return
	}

	a.logger.Error("Unclassified error", "error", err)
}

func (a *CLIErrorAdapter) slogLevelFromSeverity(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	case SeverityError, SeverityFatal:
		return slog.LevelError
	default:
		return slog.LevelError
	}
}
