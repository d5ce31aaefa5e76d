package markdown

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Abstract returns the document's opening section: the first heading and
// everything after it up to the next heading. Attributes are dropped.
func Abstract(doc string) (string, error) {
	z := html.NewTokenizer(strings.NewReader(doc))
	var b strings.Builder
	capturing := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return strings.TrimSpace(b.String()), nil
			}
			return "", z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if isHeading(name) {
				if capturing {
					return strings.TrimSpace(b.String()), nil
				}
				capturing = true
			}
			if capturing {
				b.WriteString("<" + string(name) + ">")
			}
		case html.EndTagToken:
			if capturing {
				name, _ := z.TagName()
				b.WriteString("</" + string(name) + ">")
			}
		case html.TextToken:
			if capturing {
				b.WriteString(html.EscapeString(string(z.Text())))
			}
		}
	}
}

func isHeading(tag []byte) bool {
	return len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6'
}
