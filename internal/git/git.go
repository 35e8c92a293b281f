// Package git provides the repository operations the update pipeline needs:
// branch creation, staging, commits, and authenticated pushes.
//
// This is a leaf package: it imports only stdlib and go-git, and all
// configuration arrives as parameters. Manager is a thin facade over a
// go-git Repository.
package git

import (
	"context"
	"errors"
	"fmt"
	"time"

	gogit "github.com/go-git/go-git/v6"
	gitconfig "github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
	githttp "github.com/go-git/go-git/v6/plumbing/transport/http"
)

var (
	// ErrNotRepository is returned when the path is not inside a git repository.
	ErrNotRepository = errors.New("not a git repository")

	// ErrNothingToCommit is returned when a commit is requested with a clean worktree.
	ErrNothingToCommit = errors.New("nothing to commit")
)

// tokenUser is the username GitLab expects alongside a project or personal
// access token over HTTPS.
const tokenUser = "oauth2"

// Signature identifies the commit author, normally the bot identity from
// configuration.
type Signature struct {
	Name  string
	Email string
}

// Manager is the facade for git operations on a single repository.
type Manager struct {
	repo     *gogit.Repository
	repoRoot string
}

// NewManager opens the git repository containing the given path, walking up
// the directory tree to find the repository root.
//
// Returns ErrNotRepository (wrapped) if path is not inside a git repository.
func NewManager(path string) (*Manager, error) {
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, path)
		}
		return nil, fmt.Errorf("opening repository at %s: %w", path, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}

	return &Manager{
		repo:     repo,
		repoRoot: wt.Filesystem.Root(),
	}, nil
}

// NewManagerWithRepo wraps an existing go-git Repository. Primarily for tests.
func NewManagerWithRepo(repo *gogit.Repository, repoRoot string) *Manager {
	return &Manager{repo: repo, repoRoot: repoRoot}
}

// RepoRoot returns the root directory of the git repository.
func (m *Manager) RepoRoot() string {
	return m.repoRoot
}

// CurrentBranch returns the short name of the checked-out branch, or "" on a
// detached HEAD.
func (m *Manager) CurrentBranch() (string, error) {
	head, err := m.repo.Head()
	if err != nil {
		return "", fmt.Errorf("getting HEAD: %w", err)
	}
	if head.Name() == plumbing.HEAD {
		return "", nil
	}
	return head.Name().Short(), nil
}

// BranchExists checks if a local branch exists.
func (m *Manager) BranchExists(branch string) (bool, error) {
	_, err := m.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("checking branch %q: %w", branch, err)
	}
	return true, nil
}

// CreateBranch creates branch at baseRef and checks it out, the equivalent of
// `git checkout -b branch baseRef`. baseRef may be a branch, remote ref, or
// commit.
func (m *Manager) CreateBranch(branch, baseRef string) error {
	hash, err := m.repo.ResolveRevision(plumbing.Revision(baseRef))
	if err != nil {
		return fmt.Errorf("resolving %q: %w", baseRef, err)
	}

	wt, err := m.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Hash:   *hash,
		Create: true,
	}); err != nil {
		return fmt.Errorf("creating branch %q: %w", branch, err)
	}
	return nil
}

// Checkout switches to an existing local branch.
func (m *Manager) Checkout(branch string) error {
	wt, err := m.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
	}); err != nil {
		return fmt.Errorf("checking out %q: %w", branch, err)
	}
	return nil
}

// IsDirty reports whether the worktree has uncommitted changes.
func (m *Manager) IsDirty() (bool, error) {
	wt, err := m.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("getting worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("getting status: %w", err)
	}
	return !status.IsClean(), nil
}

// StageAll stages every modified and untracked file, like `git add -A`.
func (m *Manager) StageAll() error {
	wt, err := m.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if err := wt.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return fmt.Errorf("staging changes: %w", err)
	}
	return nil
}

// Commit records the staged changes and returns the commit hash. Returns
// ErrNothingToCommit when the worktree is clean.
func (m *Manager) Commit(message string, author Signature) (string, error) {
	wt, err := m.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("getting status: %w", err)
	}
	if status.IsClean() {
		return "", ErrNothingToCommit
	}

	hash, err := wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  author.Name,
			Email: author.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}
	return hash.String(), nil
}

// PushOptions configures Push.
type PushOptions struct {
	// Branch is the local branch to push to origin under the same name.
	Branch string

	// Token authenticates over HTTPS as the oauth2 user. Empty means the
	// remote needs no auth (local remotes in tests).
	Token string

	// SkipCI adds the ci.skip push option so the push does not trigger
	// another pipeline.
	SkipCI bool
}

// Push pushes the branch to origin.
func (m *Manager) Push(ctx context.Context, opts PushOptions) error {
	refSpec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", opts.Branch, opts.Branch))

	pushOpts := &gogit.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{refSpec},
	}
	if opts.Token != "" {
		pushOpts.Auth = &githttp.BasicAuth{Username: tokenUser, Password: opts.Token}
	}
	if opts.SkipCI {
		pushOpts.Options = []string{"ci.skip"}
	}

	if err := m.repo.PushContext(ctx, pushOpts); err != nil {
		if errors.Is(err, gogit.NoErrAlreadyUpToDate) {
			return nil
		}
		return fmt.Errorf("pushing %q: %w", opts.Branch, err)
	}
	return nil
}

// DeleteRemoteBranch removes a branch from origin by pushing an empty refspec.
func (m *Manager) DeleteRemoteBranch(ctx context.Context, branch, token string) error {
	refSpec := gitconfig.RefSpec(fmt.Sprintf(":refs/heads/%s", branch))

	pushOpts := &gogit.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{refSpec},
	}
	if token != "" {
		pushOpts.Auth = &githttp.BasicAuth{Username: tokenUser, Password: token}
	}

	if err := m.repo.PushContext(ctx, pushOpts); err != nil {
		if errors.Is(err, gogit.NoErrAlreadyUpToDate) {
			return nil
		}
		return fmt.Errorf("deleting remote branch %q: %w", branch, err)
	}
	return nil
}
