// Package frontmatter splits YAML frontmatter from Markdown sources and
// fingerprints documents for change tracking.
package frontmatter

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates the document started with a YAML
// frontmatter delimiter but did not contain a closing delimiter.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

// Document is a parsed Markdown source.
type Document struct {
	Fields map[string]any
	Body   []byte
	// Raw is the frontmatter text without delimiters.
	Raw []byte
}

// Split separates YAML frontmatter (`---` delimited) from the Markdown body.
// If the document does not start with a delimiter, had is false and body is
// the full input.
func Split(content []byte) (frontmatter []byte, body []byte, had bool, err error) {
	nl := detectNewline(content)
	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return nil, content, false, nil
	}

	rest := content[len(open):]
	if bytes.HasPrefix(rest, open) {
		return []byte{}, rest[len(open):], true, nil
	}

	closeSeq := []byte(nl + "---" + nl)
	idx := bytes.Index(rest, closeSeq)
	if idx < 0 {
		// A closing delimiter on the last line without a trailing newline.
		closeEOF := []byte(nl + "---")
		if bytes.HasSuffix(rest, closeEOF) {
			return rest[:len(rest)-len(closeEOF)+len(nl)], []byte{}, true, nil
		}
		return nil, nil, false, ErrMissingClosingDelimiter
	}
	return rest[:idx+len(nl)], rest[idx+len(closeSeq):], true, nil
}

// ParseYAML parses raw YAML frontmatter (without --- delimiters) into a map.
func ParseYAML(frontmatter []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(frontmatter)) == 0 {
		return map[string]any{}, nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal(frontmatter, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

// Parse splits content and decodes its frontmatter.
func Parse(content []byte) (*Document, error) {
	raw, body, _, err := Split(content)
	if err != nil {
		return nil, err
	}
	fields, err := ParseYAML(raw)
	if err != nil {
		return nil, err
	}
	return &Document{Fields: fields, Body: body, Raw: raw}, nil
}

func detectNewline(content []byte) string {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
