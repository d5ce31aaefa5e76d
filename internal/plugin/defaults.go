package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"git.home.luguber.info/inful/sitebuilder/internal/manifest"
)

// PrivatePrefix marks files whose text is loaded into the manifest instead of copied.
const PrivatePrefix = "_"

// ErrNotUTF8 is returned for private files that are not valid UTF-8 text.
var ErrNotUTF8 = errors.New("private file is not valid UTF-8")

// DefaultFileParser loads private files into content and leaves everything
// else to be copied verbatim.
type DefaultFileParser struct{}

func (DefaultFileParser) Name() string           { return "default" }
func (DefaultFileParser) Match(name string) bool { return true }
func (DefaultFileParser) CopyFile() bool         { return true }

func (DefaultFileParser) Transform(_ context.Context, srcPath, name, _ string) (manifest.Tree, error) {
	if !strings.HasPrefix(name, PrivatePrefix) {
		return manifest.Tree{}, nil
	}
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("load private file: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("load private file %s: %w", name, ErrNotUTF8)
	}
	return manifest.Tree{manifest.KeyContent: string(data)}, nil
}

// DefaultDirParser descends into the directory with the walker's own rules.
type DefaultDirParser struct{}

func (DefaultDirParser) Name() string           { return "default" }
func (DefaultDirParser) Match(name string) bool { return true }

func (DefaultDirParser) Transform(ctx context.Context, scope Scope, srcDir, destDir string, prev manifest.Tree) (manifest.Tree, error) {
	return scope.Descend(ctx, srcDir, destDir, prev)
}
