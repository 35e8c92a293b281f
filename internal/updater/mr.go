package updater

import (
	"context"
	"fmt"
	"strings"

	"github.com/verdantci/evergreen/internal/gitlab"
	"github.com/verdantci/evergreen/internal/logger"
	"github.com/verdantci/evergreen/internal/resolver"
)

// MRCreator turns update candidates into merge requests through the GitLab
// API: one branch, one commit, one merge request per candidate. No local
// clone is involved.
type MRCreator struct {
	Client       *gitlab.Client
	BaseBranch   string
	BranchPrefix string
}

// CreateAll opens a merge request for each candidate. A branch that already
// exists means an earlier run covered that update; the candidate is skipped.
// A failure on one candidate is logged and does not stop the rest.
func (m *MRCreator) CreateAll(ctx context.Context, candidates []resolver.UpdateCandidate) ([]*gitlab.MergeRequest, error) {
	var created []*gitlab.MergeRequest
	for _, c := range candidates {
		mr, err := m.createOne(ctx, c)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("image", c.Current.Name).
				Str("tag", c.Latest.Tag).
				Msg("merge request not created")
			continue
		}
		if mr != nil {
			created = append(created, mr)
		}
	}
	return created, nil
}

func (m *MRCreator) createOne(ctx context.Context, c resolver.UpdateCandidate) (*gitlab.MergeRequest, error) {
	branch := m.branchFor(c)

	exists, err := m.Client.BranchExists(ctx, branch)
	if err != nil {
		return nil, err
	}
	if exists {
		logger.Info().Str("branch", branch).Msg("branch exists, update already proposed")
		return nil, nil
	}

	if err := m.Client.CreateBranch(ctx, branch, m.BaseBranch); err != nil {
		return nil, fmt.Errorf("creating branch %q: %w", branch, err)
	}
	logger.Info().Str("branch", branch).Str("base", m.BaseBranch).Msg("update branch created")

	content, err := m.Client.RawFile(ctx, c.Path, m.BaseBranch)
	if err != nil {
		m.cleanupBranch(ctx, branch)
		return nil, fmt.Errorf("reading %s: %w", c.Path, err)
	}
	updated, err := ApplyToContent(string(content), []resolver.UpdateCandidate{c})
	if err != nil {
		m.cleanupBranch(ctx, branch)
		return nil, fmt.Errorf("rewriting %s: %w", c.Path, err)
	}
	message := Title([]resolver.UpdateCandidate{c})
	if err := m.Client.UpdateFile(ctx, c.Path, branch, updated, message); err != nil {
		m.cleanupBranch(ctx, branch)
		return nil, fmt.Errorf("committing %s: %w", c.Path, err)
	}

	mr, err := m.Client.CreateMergeRequest(ctx, gitlab.CreateMergeRequestOptions{
		SourceBranch:       branch,
		TargetBranch:       m.BaseBranch,
		Title:              Title([]resolver.UpdateCandidate{c}),
		Description:        Description([]resolver.UpdateCandidate{c}),
		RemoveSourceBranch: true,
	})
	if err != nil {
		m.cleanupBranch(ctx, branch)
		return nil, fmt.Errorf("creating merge request: %w", err)
	}
	return mr, nil
}

// cleanupBranch removes a branch this run created but could not finish.
// A leftover branch would make the next run skip the candidate for good.
func (m *MRCreator) cleanupBranch(ctx context.Context, branch string) {
	if err := m.Client.DeleteBranch(ctx, branch); err != nil {
		logger.Warn().Err(err).Str("branch", branch).Msg("could not delete unfinished update branch")
	}
}

// branchFor derives the per-update branch name, "evergreen/node-20.11.1".
// Slashes in the image name would nest the branch ref, so they become
// dashes.
func (m *MRCreator) branchFor(c resolver.UpdateCandidate) string {
	name := strings.ReplaceAll(c.Current.Name, "/", "-")
	return m.BranchPrefix + name + "-" + c.Latest.Tag
}

// Title builds the MR title: specific for a single update, generic for a
// batch.
func Title(candidates []resolver.UpdateCandidate) string {
	if len(candidates) == 1 {
		c := candidates[0]
		return fmt.Sprintf("chore: update %s to %s", c.Current.Name, c.Latest.Tag)
	}
	return "chore: update Docker base images (automated)"
}

// Description builds the MR body listing every update.
func Description(candidates []resolver.UpdateCandidate) string {
	var b strings.Builder
	b.WriteString("Automated Docker base image updates.\n\n## Changes\n\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- `%s`: `%s` -> `%s` (%s, line %d)\n",
			c.Current.Name, c.Current.Tag, c.Latest.Tag, c.Path, c.Line)
	}
	b.WriteString("\nPlease review the Dockerfile changes for compatibility before merging.\n")
	return b.String()
}
