// Package plugin defines the parser capabilities the walker dispatches to and
// the registry that resolves them by entry name.
//
// There are two variants. A FileParser turns one source file into record
// fields (optionally producing output files itself). A DirParser takes over a
// whole source directory and returns the subtree for it; an empty subtree
// prunes the directory from the output and the manifest.
package plugin

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/sitebuilder/internal/manifest"
)

// FileParser transforms a single source file.
type FileParser interface {
	// Match reports whether the parser handles a file with this name.
	// It must be a pure predicate.
	Match(name string) bool

	// Transform processes srcPath and returns the record fields for name.
	// A "content" field marks the record as self-contained; without one the
	// walker copies the source into destDir when CopyFile is true.
	Transform(ctx context.Context, srcPath, name, destDir string) (manifest.Tree, error)

	// CopyFile reports whether a record without content is copied verbatim.
	CopyFile() bool
}

// DirParser transforms a whole source directory.
type DirParser interface {
	// Match reports whether the parser handles a directory with this name.
	// It must be a pure predicate.
	Match(name string) bool

	// Transform builds the subtree for srcDir. destDir already exists.
	// prev is the previous subtree for this directory and must not be modified.
	// An empty result prunes the directory.
	Transform(ctx context.Context, scope Scope, srcDir, destDir string, prev manifest.Tree) (manifest.Tree, error)
}

// Scope exposes the walker's default handling to directory parsers, so a
// parser can take over one directory yet delegate individual children.
type Scope interface {
	// Descend walks srcDir into destDir with the default per-child rules.
	Descend(ctx context.Context, srcDir, destDir string, prev manifest.Tree) (manifest.Tree, error)

	// File processes one file child with the cache gate and dispatch.
	// ok is false when the child was skipped after a parser failure.
	File(ctx context.Context, srcDir, destDir, name string, prev manifest.Tree) (rec manifest.Tree, ok bool, err error)

	// Subdir processes one directory child. ok is false when it was pruned.
	Subdir(ctx context.Context, srcDir, destDir, name string, prev manifest.Tree) (rec manifest.Tree, ok bool, err error)

	// RelPath returns destDir relative to the output root in slash form.
	RelPath(destDir string) string
}

// Named is implemented by parsers that report a stable name for logs,
// metrics and failure records.
type Named interface {
	Name() string
}

// NameOf returns the parser's name, falling back to its Go type.
func NameOf(p any) string {
	if n, ok := p.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", p)
}
