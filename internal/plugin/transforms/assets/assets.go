// Package assets mirrors a static directory verbatim, copying only files
// whose bytes differ from what is already in the output tree.
package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/sitebuilder/internal/fsutil"
	"git.home.luguber.info/inful/sitebuilder/internal/manifest"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
)

// DefaultDir is the directory name the parser matches by default.
const DefaultDir = "static"

// Parser handles a static asset directory. It ignores the previous manifest
// and compares content instead, so touched-but-identical files are not rewritten.
type Parser struct {
	dir string
}

// New creates an assets parser for directories named dir.
func New(dir string) *Parser {
	if dir == "" {
		dir = DefaultDir
	}
	return &Parser{dir: dir}
}

func (p *Parser) Name() string           { return "assets" }
func (p *Parser) Match(name string) bool { return name == p.dir }

func (p *Parser) Transform(ctx context.Context, scope plugin.Scope, srcDir, destDir string, _ manifest.Tree) (manifest.Tree, error) {
	return p.mirror(ctx, scope, srcDir, destDir)
}

func (p *Parser) mirror(ctx context.Context, scope plugin.Scope, srcDir, destDir string) (manifest.Tree, error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, err
	}

	out := manifest.Tree{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		srcPath := filepath.Join(srcDir, name)
		destPath := filepath.Join(destDir, name)

		info, err := os.Stat(srcPath)
		if err != nil {
			return nil, err
		}
		switch {
		case info.IsDir():
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return nil, err
			}
			sub, err := p.mirror(ctx, scope, srcPath, destPath)
			if err != nil {
				return nil, err
			}
			if len(sub) == 0 {
				if err := os.Remove(destPath); err != nil {
					return nil, err
				}
				continue
			}
			sub.Stamp(scope.RelPath(destDir), manifest.MTimeOf(info))
			out[name] = sub
		case info.Mode().IsRegular():
			rec, err := copyIfChanged(srcPath, destPath, info)
			if err != nil {
				return nil, err
			}
			rec.Stamp(scope.RelPath(destDir), manifest.MTimeOf(info))
			out[name] = rec
		default:
			return nil, fmt.Errorf("%s: unsupported file mode %s", srcPath, info.Mode())
		}
	}
	return out, nil
}

func copyIfChanged(srcPath, destPath string, info os.FileInfo) (manifest.Tree, error) {
	same, err := fsutil.SameContent(srcPath, destPath)
	if err != nil {
		return nil, err
	}
	if !same {
		if _, err := fsutil.CopyFile(srcPath, destPath); err != nil {
			return nil, err
		}
	}
	sum, err := fsutil.HashFile(destPath)
	if err != nil {
		return nil, err
	}
	return manifest.Tree{
		"size": info.Size(),
		"hash": fsutil.FormatHash(sum),
	}, nil
}
