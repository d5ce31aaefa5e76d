package transforms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin/transforms/images"
)

func TestRegisterOrderAndOptions(t *testing.T) {
	reg := plugin.NewRegistry()
	err := Register(reg,
		[]Spec{
			{Name: "markdown"},
			{Name: "markdown_file", Options: map[string]any{"extension": ".page.md"}},
			{Name: "image_png"},
		},
		[]Spec{{Name: "blog", Options: map[string]any{"dir": "news"}}, {Name: "assets"}},
		Settings{Images: images.DefaultSettings()},
	)
	require.NoError(t, err)

	assert.Equal(t, "markdown_file", plugin.NameOf(reg.ResolveFileParser("a.page.md")))
	assert.Equal(t, "markdown", plugin.NameOf(reg.ResolveFileParser("a.md")))
	assert.Equal(t, "image_png", plugin.NameOf(reg.ResolveFileParser("a.png")))
	assert.Equal(t, "default", plugin.NameOf(reg.ResolveFileParser("a.jpg")))

	assert.Equal(t, "blog", plugin.NameOf(reg.ResolveDirParser("news")))
	assert.Equal(t, "default", plugin.NameOf(reg.ResolveDirParser("blog")))
	assert.Equal(t, "assets", plugin.NameOf(reg.ResolveDirParser("static")))
}

func TestUnknownParser(t *testing.T) {
	reg := plugin.NewRegistry()
	err := Register(reg, []Spec{{Name: "latex"}}, nil, Settings{})
	assert.ErrorContains(t, err, `unknown file parser "latex"`)

	err = Register(reg, nil, []Spec{{Name: "gallery"}}, Settings{})
	assert.ErrorContains(t, err, `unknown directory parser "gallery"`)
}

func TestBadOptions(t *testing.T) {
	_, err := NewFileParser(Spec{Name: "markdown", Options: map[string]any{"unsafe": "maybe"}}, Settings{})
	assert.Error(t, err)
}
