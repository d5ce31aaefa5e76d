package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		fm      string
		body    string
		had     bool
		wantErr error
	}{
		{"no frontmatter", "# Title\n", "", "# Title\n", false, nil},
		{"with frontmatter", "---\ntitle: X\n---\n# X\n", "title: X\n", "# X\n", true, nil},
		{"empty frontmatter", "---\n---\nbody", "", "body", true, nil},
		{"crlf", "---\r\ntitle: X\r\n---\r\nbody", "title: X\r\n", "body", true, nil},
		{"closing at eof", "---\ntitle: X\n---", "title: X\n", "", true, nil},
		{"unterminated", "---\ntitle: X\n", "", "", false, ErrMissingClosingDelimiter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, body, had, err := Split([]byte(tt.in))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.fm, string(fm))
			assert.Equal(t, tt.body, string(body))
			assert.Equal(t, tt.had, had)
		})
	}
}

func TestParse(t *testing.T) {
	doc, err := Parse([]byte("---\ntitle: Hello\ntags: [a, b]\n---\nBody\n"))
	require.NoError(t, err)
	assert.Equal(t, "Hello", doc.Fields["title"])
	assert.Equal(t, []any{"a", "b"}, doc.Fields["tags"])
	assert.Equal(t, "Body\n", string(doc.Body))

	doc, err = Parse([]byte("plain"))
	require.NoError(t, err)
	assert.Empty(t, doc.Fields)

	_, err = Parse([]byte("---\ntitle: [unclosed\n---\n"))
	assert.Error(t, err)
}

func TestFingerprintIgnoresVolatileFieldsAndKeyOrder(t *testing.T) {
	body := []byte("# Doc\n")
	a, err := Fingerprint(map[string]any{"title": "T", "tags": []any{"x"}, "lastmod": "2024-01-01"}, body)
	require.NoError(t, err)
	b, err := Fingerprint(map[string]any{"tags": []any{"x"}, "title": "T", "uid": "u-1"}, body)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)

	c, err := Fingerprint(map[string]any{"title": "Other"}, body)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	d, err := Fingerprint(map[string]any{"title": "T", "tags": []any{"x"}}, []byte("# Changed\n"))
	require.NoError(t, err)
	assert.NotEqual(t, a, d)
}
