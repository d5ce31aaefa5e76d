package commands

import (
	"encoding/json"
	stderrors "errors"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/manifest"
)

// ShowCmd implements the 'show' command.
type ShowCmd struct {
	Path string `help:"Slash-separated entry path to print instead of the whole manifest"`
}

func (s *ShowCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config, g.logger())
	if err != nil {
		return err
	}
	mpath := cfg.Output.ManifestPath()
	tree, err := manifest.Load(mpath)
	if err != nil {
		if stderrors.Is(err, manifest.ErrColdStart) {
			return errors.ManifestError("no manifest yet; run a build first").
				WithContext("path", mpath).WithCause(err).Build()
		}
		return err
	}

	v, ok := tree.Lookup(s.Path)
	if !ok {
		return errors.ValidationError("entry not found in manifest").
			WithContext("path", s.Path).Build()
	}

	enc := json.NewEncoder(g.out())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
