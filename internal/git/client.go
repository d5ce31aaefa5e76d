package git

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Remote describes a repository used as a source root.
type Remote struct {
	Name   string
	URL    string
	Branch string
	Token  string
}

// Checkout is the result of a fetch.
type Checkout struct {
	Path   string
	Branch string
	Commit string
}

// Client clones and updates repositories below a workspace directory.
type Client struct {
	workspace string
	logger    *slog.Logger
}

// NewClient creates a client rooted at workspace.
func NewClient(workspace string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{workspace: workspace, logger: logger}
}

// Fetch makes <workspace>/<remote.Name> match the tip of the remote branch.
// An existing checkout is updated; local changes in it are discarded.
func (c *Client) Fetch(ctx context.Context, r Remote) (*Checkout, error) {
	if r.Name == "" || r.URL == "" {
		return nil, errors.ValidationError("git source requires name and url").
			WithContext("name", r.Name).Build()
	}
	path := filepath.Join(c.workspace, r.Name)

	var (
		co  *Checkout
		err error
	)
	if _, statErr := os.Stat(filepath.Join(path, ".git")); statErr == nil {
		co, err = c.update(ctx, path, r)
	} else {
		co, err = c.clone(ctx, path, r)
	}
	if err != nil {
		return nil, errors.SourceError("fetch git source").
			WithContext("name", r.Name).
			WithContext("url", r.URL).
			WithCause(err).Build()
	}
	return co, nil
}

func (c *Client) clone(ctx context.Context, path string, r Remote) (*Checkout, error) {
	c.logger.Debug("Cloning repository", logfields.Name(r.Name), logfields.URL(r.URL), logfields.Path(path))

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove stale checkout: %w", err)
	}
	opts := &git.CloneOptions{URL: r.URL, Auth: authFor(r), Tags: git.NoTags}
	if r.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(r.Branch)
		opts.SingleBranch = true
	}
	repo, err := git.PlainCloneContext(ctx, path, false, opts)
	if err != nil {
		_ = os.RemoveAll(path)
		return nil, fmt.Errorf("clone: %w", err)
	}

	co := describe(repo, path)
	c.logger.Info("Repository cloned",
		logfields.Name(r.Name), slog.String("branch", co.Branch), slog.String("commit", short(co.Commit)))
	return co, nil
}

func (c *Client) update(ctx context.Context, path string, r Remote) (*Checkout, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		Auth:       authFor(r),
		Tags:       git.NoTags,
		RefSpecs:   []ggitcfg.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
		Force:      true,
	})
	if err != nil && !stderrors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	branch := targetBranch(repo, r)
	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return nil, fmt.Errorf("remote branch %q: %w", branch, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("worktree: %w", err)
	}
	local := plumbing.NewBranchReferenceName(branch)
	checkout := &git.CheckoutOptions{Branch: local, Force: true}
	if _, lerr := repo.Reference(local, false); lerr != nil {
		checkout.Create = true
		checkout.Hash = remoteRef.Hash()
	}
	if err := wt.Checkout(checkout); err != nil {
		return nil, fmt.Errorf("checkout %s: %w", branch, err)
	}

	before, _ := repo.Head()
	if err := wt.Reset(&git.ResetOptions{Commit: remoteRef.Hash(), Mode: git.HardReset}); err != nil {
		return nil, fmt.Errorf("reset to origin/%s: %w", branch, err)
	}

	co := describe(repo, path)
	if before != nil && before.Hash() == remoteRef.Hash() {
		c.logger.Debug("Repository up to date", logfields.Name(r.Name), slog.String("branch", branch))
	} else {
		c.logger.Info("Repository updated",
			logfields.Name(r.Name), slog.String("branch", branch), slog.String("commit", short(co.Commit)))
	}
	return co, nil
}

// targetBranch picks the configured branch, then the checked out branch,
// then the remote default, then "main".
func targetBranch(repo *git.Repository, r Remote) string {
	if r.Branch != "" {
		return r.Branch
	}
	if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
		return head.Name().Short()
	}
	if ref, err := repo.Reference(plumbing.NewRemoteHEADReferenceName("origin"), false); err == nil {
		if name := strings.TrimPrefix(ref.Target().String(), "refs/remotes/origin/"); name != "" && name != ref.Target().String() {
			return name
		}
	}
	return "main"
}

func describe(repo *git.Repository, path string) *Checkout {
	co := &Checkout{Path: path}
	if head, err := repo.Head(); err == nil {
		co.Commit = head.Hash().String()
		if head.Name().IsBranch() {
			co.Branch = head.Name().Short()
		}
	}
	return co
}

func authFor(r Remote) transport.AuthMethod {
	if r.Token == "" {
		return nil
	}
	return &http.BasicAuth{Username: "token", Password: r.Token}
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
