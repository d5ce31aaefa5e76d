package incremental

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSignature(t *testing.T, parsers []ParserRef, quality int) *BuildSignature {
	t.Helper()
	sig, err := ComputeSignature(
		[]SourceRef{{Name: "site", Path: "./site"}, {Name: "docs", URL: "https://example.com/docs.git", Branch: "main"}},
		parsers,
		map[string]any{"images.quality": quality},
	)
	require.NoError(t, err)
	return sig
}

func TestSignatureConsistency(t *testing.T) {
	parsers := []ParserRef{{Kind: "file", Name: "markdown"}, {Kind: "dir", Name: "blog"}}
	a := testSignature(t, parsers, 80)
	b := testSignature(t, parsers, 80)

	assert.NotEmpty(t, a.BuildHash)
	assert.Equal(t, a.BuildHash, b.BuildHash)
}

func TestSignatureChangesWithInputs(t *testing.T) {
	base := testSignature(t, []ParserRef{{Kind: "file", Name: "markdown"}, {Kind: "file", Name: "image_png"}}, 80)

	reordered := testSignature(t, []ParserRef{{Kind: "file", Name: "image_png"}, {Kind: "file", Name: "markdown"}}, 80)
	assert.NotEqual(t, base.BuildHash, reordered.BuildHash, "registration order changes dispatch priority")

	tuned := testSignature(t, []ParserRef{{Kind: "file", Name: "markdown"}, {Kind: "file", Name: "image_png"}}, 90)
	assert.NotEqual(t, base.BuildHash, tuned.BuildHash)

	withOptions := testSignature(t, []ParserRef{
		{Kind: "file", Name: "markdown", Options: map[string]any{"unsafe": true}},
		{Kind: "file", Name: "image_png"},
	}, 80)
	assert.NotEqual(t, base.BuildHash, withOptions.BuildHash)
}
