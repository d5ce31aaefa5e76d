// Package blog renders a directory of Markdown posts through an HTML template.
package blog

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/sitebuilder/internal/incremental"
	"git.home.luguber.info/inful/sitebuilder/internal/manifest"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin/transforms/markdown"
)

// Defaults for the directory name and the template file inside it.
const (
	DefaultDir      = "blog"
	DefaultTemplate = "blog.tmpl"
)

// keyTemplateMTime records which template revision rendered a post.
const keyTemplateMTime = "template_mtime"

// Parser takes over a blog directory. Each `*.md` post is rendered to
// `<stem>.html` through the directory's template and recorded under that
// name. Other files and subdirectories get the default treatment.
type Parser struct {
	dir      string
	tmplName string
	renderer *markdown.Renderer
}

// New creates a blog parser. Empty dir and tmpl select the defaults.
func New(r *markdown.Renderer, dir, tmpl string) *Parser {
	if dir == "" {
		dir = DefaultDir
	}
	if tmpl == "" {
		tmpl = DefaultTemplate
	}
	return &Parser{dir: dir, tmplName: tmpl, renderer: r}
}

func (p *Parser) Name() string           { return "blog" }
func (p *Parser) Match(name string) bool { return name == p.dir }

func (p *Parser) Transform(ctx context.Context, scope plugin.Scope, srcDir, destDir string, prev manifest.Tree) (manifest.Tree, error) {
	tmplPath := filepath.Join(srcDir, p.tmplName)
	tmplInfo, err := os.Stat(tmplPath)
	if err != nil {
		return nil, fmt.Errorf("blog template: %w", err)
	}
	tmpl, err := template.ParseFiles(tmplPath)
	if err != nil {
		return nil, fmt.Errorf("blog template: %w", err)
	}
	tmplMTime := manifest.MTimeOf(tmplInfo)

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
		switch {
		case name == p.tmplName:
			continue
		case entry.IsDir():
			rec, ok, err := scope.Subdir(ctx, srcDir, destDir, name, prev)
			if err != nil {
				return nil, err
			}
			if ok {
				out[name] = rec
			}
		case strings.HasSuffix(name, ".md"):
			key, rec, err := p.post(tmpl, tmplMTime, scope, srcDir, destDir, name, prev)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			out[key] = rec
		default:
			rec, ok, err := scope.File(ctx, srcDir, destDir, name, prev)
			if err != nil {
				return nil, err
			}
			if ok {
				out[name] = rec
			}
		}
	}
	return out, nil
}

// post renders one Markdown post unless the cached record is still current.
func (p *Parser) post(tmpl *template.Template, tmplMTime float64, scope plugin.Scope, srcDir, destDir, name string, prev manifest.Tree) (string, manifest.Tree, error) {
	stem := strings.TrimSuffix(name, ".md")
	key := stem + ".html"
	srcPath := filepath.Join(srcDir, name)
	destPath := filepath.Join(destDir, key)

	info, err := os.Stat(srcPath)
	if err != nil {
		return key, nil, err
	}
	mtime := manifest.MTimeOf(info)

	if cached := prev.Sub(key); cached != nil && !incremental.IsDirty(key, mtime, prev) {
		if rendered, ok := cached[keyTemplateMTime].(float64); ok && rendered >= tmplMTime {
			if _, err := os.Stat(destPath); err == nil {
				return key, cached, nil
			}
		}
	}

	fields, html, err := p.renderer.RenderFile(srcPath)
	if err != nil {
		return key, nil, err
	}
	fields[manifest.KeyContent] = html
	if _, ok := fields["title"]; !ok {
		fields["title"] = cases.Title(language.English).String(strings.NewReplacer("_", " ", "-", " ").Replace(stem))
	}

	data := make(map[string]any, len(fields))
	for k, v := range fields {
		data[k] = v
	}
	data[manifest.KeyContent] = template.HTML(html) //nolint:gosec // rendered by goldmark

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return key, nil, fmt.Errorf("execute template: %w", err)
	}
	if err := os.WriteFile(destPath, buf.Bytes(), 0o644); err != nil {
		return key, nil, err
	}

	fields[keyTemplateMTime] = tmplMTime
	fields.Stamp(scope.RelPath(destDir), mtime)
	return key, fields, nil
}
