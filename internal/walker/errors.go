package walker

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Sentinel causes carried by the classified errors the walker returns.
var (
	ErrUnexpectedEntryKind = stderrors.New("unexpected entry kind")
	ErrParserFailure       = stderrors.New("parser failure")
)

func unexpectedKind(path string, mode fs.FileMode) error {
	return errors.EntryKindError("source entry is neither a regular file nor a directory").
		WithContext("path", path).
		WithContext("mode", mode.String()).
		WithCause(ErrUnexpectedEntryKind).
		Build()
}

func symlinkLoop(path, target string) error {
	return errors.EntryKindError("directory symlink loops back to an ancestor").
		WithContext("path", path).
		WithContext("target", target).
		WithCause(ErrUnexpectedEntryKind).
		Build()
}

func parserFailure(path, name, parser string, err error) error {
	return errors.ParserError("parser failed").
		WithContext("path", path).
		WithContext("name", name).
		WithContext("parser", parser).
		WithCause(fmt.Errorf("%w: %w", ErrParserFailure, err)).
		Build()
}

func ioFailure(op, path string, err error) error {
	return errors.FileSystemError(op).
		WithContext("path", path).
		WithCause(err).
		Build()
}

// cancelled classifies a cancellation, preferring the context's own error as cause.
func cancelled(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	return errors.RuntimeError("build cancelled").
		WithCause(err).
		Build()
}

func isCancellation(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}
