// Package errors provides the classified error primitives used across sitebuilder.
//
// Every failure that reaches the CLI carries a category (config, parser,
// entry_kind, filesystem, manifest, source, ...), a severity and a retry
// hint. Builders attach the offending path and parser name as context so
// operators can act on the message without re-running in verbose mode.
//
// Example usage:
//
//	err := errors.ParserError("transformer failed").
//		WithContext("path", srcPath).
//		WithContext("parser", name).
//		WithCause(originalErr).
//		Build()
package errors
