// Package markdown provides the Markdown file parsers: one that stores the
// rendered HTML in the manifest and one that writes it to an HTML file.
package markdown

import (
	"bytes"
	"fmt"
	"os"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"git.home.luguber.info/inful/sitebuilder/internal/frontmatter"
	"git.home.luguber.info/inful/sitebuilder/internal/manifest"
)

// KeyFingerprint holds the document fingerprint in rendered records.
const KeyFingerprint = "fingerprint"

// Renderer converts Markdown documents into record fields.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer builds a GFM renderer with generated heading ids.
// unsafe keeps raw HTML embedded in the Markdown source.
func NewRenderer(unsafe bool) *Renderer {
	var rendererOpts []goldmark.Option
	if unsafe {
		rendererOpts = append(rendererOpts, goldmark.WithRendererOptions(html.WithUnsafe()))
	}
	opts := append([]goldmark.Option{
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	}, rendererOpts...)
	return &Renderer{md: goldmark.New(opts...)}
}

// RenderFile reads a Markdown file and returns its frontmatter fields, the
// rendered HTML and the fingerprint field.
func (r *Renderer) RenderFile(path string) (manifest.Tree, string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return r.Render(src)
}

// Render converts a Markdown document.
func (r *Renderer) Render(src []byte) (manifest.Tree, string, error) {
	doc, err := frontmatter.Parse(src)
	if err != nil {
		return nil, "", fmt.Errorf("frontmatter: %w", err)
	}

	var buf bytes.Buffer
	if err := r.md.Convert(doc.Body, &buf); err != nil {
		return nil, "", fmt.Errorf("render markdown: %w", err)
	}

	fp, err := frontmatter.Fingerprint(doc.Fields, doc.Body)
	if err != nil {
		return nil, "", fmt.Errorf("fingerprint: %w", err)
	}

	fields := make(manifest.Tree, len(doc.Fields)+1)
	for k, v := range doc.Fields {
		fields[k] = v
	}
	fields[KeyFingerprint] = fp
	return fields, buf.String(), nil
}
