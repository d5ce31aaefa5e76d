package markdown

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/manifest"
)

// Parser renders `.md` files into the record's content field.
type Parser struct {
	ext      string
	renderer *Renderer
}

// NewParser creates the inline Markdown parser. An empty ext means ".md".
func NewParser(r *Renderer, ext string) *Parser {
	if ext == "" {
		ext = ".md"
	}
	return &Parser{ext: ext, renderer: r}
}

func (p *Parser) Name() string           { return "markdown" }
func (p *Parser) Match(name string) bool { return strings.HasSuffix(name, p.ext) }
func (p *Parser) CopyFile() bool         { return false }

func (p *Parser) Transform(_ context.Context, srcPath, _, _ string) (manifest.Tree, error) {
	fields, html, err := p.renderer.RenderFile(srcPath)
	if err != nil {
		return nil, err
	}
	fields[manifest.KeyContent] = html
	return fields, nil
}

// FileParser renders Markdown sources named like `page.md.html` into an HTML
// file of the same name and records the frontmatter plus an abstract.
type FileParser struct {
	ext      string
	renderer *Renderer
}

// NewFileParser creates the HTML file parser. An empty ext means ".md.html".
func NewFileParser(r *Renderer, ext string) *FileParser {
	if ext == "" {
		ext = ".md.html"
	}
	return &FileParser{ext: ext, renderer: r}
}

func (p *FileParser) Name() string           { return "markdown_file" }
func (p *FileParser) Match(name string) bool { return strings.HasSuffix(name, p.ext) }
func (p *FileParser) CopyFile() bool         { return false }

func (p *FileParser) Transform(_ context.Context, srcPath, name, destDir string) (manifest.Tree, error) {
	fields, html, err := p.renderer.RenderFile(srcPath)
	if err != nil {
		return nil, err
	}
	abstract, err := Abstract(html)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(destDir, name), []byte(html), 0o644); err != nil {
		return nil, err
	}
	fields["abstract"] = abstract
	return fields, nil
}
