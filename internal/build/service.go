package build

import (
	"context"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/git"
	"git.home.luguber.info/inful/sitebuilder/internal/history"
	"git.home.luguber.info/inful/sitebuilder/internal/incremental"
	"git.home.luguber.info/inful/sitebuilder/internal/manifest"
	"git.home.luguber.info/inful/sitebuilder/internal/publish"
	"git.home.luguber.info/inful/sitebuilder/internal/walker"
)

// Service executes builds. The CLI, watch mode and the daemon all go
// through it.
type Service interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// Root is one source root. Exactly one of Path and Remote is set.
type Root struct {
	Name   string
	Path   string
	Remote *git.Remote
}

// Request carries the inputs of one build.
type Request struct {
	// Roots are merged in order; later roots win on conflicting keys.
	Roots []Root

	OutputDir string

	// ManifestPath defaults to <OutputDir>/all.json.
	ManifestPath string

	// StateDir holds the per-root trees of the last successful build.
	// It defaults to <OutputDir>/.sitebuilder.
	StateDir string

	// Full ignores the previous manifest.
	Full bool

	// Signature fingerprints the configuration. When it differs from the
	// last successful build the previous manifest is ignored.
	Signature *incremental.BuildSignature

	Concurrency        int
	SkipParserFailures bool
}

// Default locations inside the output directory.
const (
	StateDirName  = publish.StateDir
	RootStateFile = "roots.json"
)

func (r Request) rootStatePath() string {
	dir := r.StateDir
	if dir == "" {
		dir = filepath.Join(r.OutputDir, StateDirName)
	}
	return filepath.Join(dir, RootStateFile)
}

// Result is the outcome of one build.
type Result struct {
	ID           string
	Status       history.Status
	Manifest     manifest.Tree
	ManifestPath string
	ManifestHash string
	Stats        walker.Stats
	Skipped      []walker.SkippedEntry

	// Full is set when the build ran without a usable previous manifest;
	// FullReason says why.
	Full       bool
	FullReason string

	Published *publish.Result

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Sources lists the root names in merge order.
func (r Request) Sources() []string {
	names := make([]string, len(r.Roots))
	for i, root := range r.Roots {
		names[i] = root.Name
	}
	return names
}
