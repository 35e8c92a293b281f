// Package update provides the update command: rewrite local Dockerfiles to
// the latest base image tags, optionally on a branch with a commit, push,
// and merge request.
package update

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/verdantci/evergreen/internal/cmdutil"
	"github.com/verdantci/evergreen/internal/config"
	"github.com/verdantci/evergreen/internal/git"
	"github.com/verdantci/evergreen/internal/gitlab"
	"github.com/verdantci/evergreen/internal/iostreams"
	"github.com/verdantci/evergreen/internal/registry"
	"github.com/verdantci/evergreen/internal/resolver"
	"github.com/verdantci/evergreen/internal/updater"
)

// UpdateOptions holds options for the update command.
type UpdateOptions struct {
	IO           *iostreams.IOStreams
	Config       func() (*config.Config, error)
	TagSource    func() (registry.TagSource, error)
	GitLabClient func() (*gitlab.Client, error)
	GitManager   func(context.Context) (*git.Manager, error)
	WorkDir      string

	DryRun   bool
	Branch   string
	Push     bool
	CreateMR bool
}

// NewCmdUpdate creates the update command.
func NewCmdUpdate(f *cmdutil.Factory, runF func(context.Context, *UpdateOptions) error) *cobra.Command {
	opts := &UpdateOptions{
		IO:           f.IOStreams,
		Config:       f.Config,
		TagSource:    f.TagSource,
		GitLabClient: f.GitLabClient,
		GitManager:   f.GitManager,
		WorkDir:      f.WorkDir,
	}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Rewrite Dockerfiles to the latest base image tags",
		Long: `Scans the working tree and rewrites every outdated FROM line to the
latest tag.

Without flags the files are changed in place on the current branch. With
--branch the changes are committed on a new branch; --push pushes it with
ci.skip, and --mr opens a merge request against the configured base branch.`,
		Example: `  # Update files in place
  evergreen update

  # Show what would change without touching files
  evergreen update --dry-run

  # Branch, commit, push, and open a merge request
  evergreen update --branch evergreen/updates --push --mr`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.CreateMR {
				opts.Push = true
			}
			if (opts.Push || opts.CreateMR) && opts.Branch == "" {
				opts.Branch = defaultBranchName()
			}
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return updateRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Report the updates without changing any file")
	cmd.Flags().StringVar(&opts.Branch, "branch", "", "Commit the changes on this new branch")
	cmd.Flags().BoolVar(&opts.Push, "push", false, "Push the branch to origin (with ci.skip)")
	cmd.Flags().BoolVar(&opts.CreateMR, "mr", false, "Open a merge request for the branch (implies --push)")

	return cmd
}

func defaultBranchName() string {
	return "evergreen/updates-" + time.Now().UTC().Format("20060102-150405")
}

func updateRun(ctx context.Context, opts *UpdateOptions) error {
	cfg, err := opts.Config()
	if err != nil {
		return err
	}
	tags, err := opts.TagSource()
	if err != nil {
		return err
	}
	rules, err := updater.CompileRules(cfg.Scanner.TagRules)
	if err != nil {
		return err
	}

	scanner := resolver.NewScanner(resolver.NewLocalSource(opts.WorkDir, cfg.Scanner.ExcludePatterns), tags)
	scanner.Rules = rules

	report, err := scanner.Scan(ctx)
	if err != nil {
		fmt.Fprintf(opts.IO.ErrOut, "scan failed: %v\n", err)
		return &cmdutil.ExitError{Code: 1}
	}

	if !report.UpdatesNeeded() {
		fmt.Fprintln(opts.IO.Out, "All images are up to date.")
		if report.Failed() {
			return &cmdutil.ExitError{Code: 1}
		}
		return nil
	}

	for _, c := range report.Candidates {
		fmt.Fprintf(opts.IO.Out, "%s: %s -> %s  (%s:%d)\n",
			c.Current.Name, c.Current.Tag, c.Latest.Tag, c.Path, c.Line)
	}
	if opts.DryRun {
		fmt.Fprintf(opts.IO.Out, "%d update(s) available (dry run, nothing changed).\n", report.UpdatesFound)
		return nil
	}

	var mgr *git.Manager
	if opts.Branch != "" {
		mgr, err = opts.GitManager(ctx)
		if err != nil {
			return err
		}
		if err := mgr.CreateBranch(opts.Branch, "HEAD"); err != nil {
			return err
		}
		fmt.Fprintf(opts.IO.Out, "Created branch %s\n", opts.Branch)
	}

	res := updater.Apply(ctx, &updater.LocalStore{Root: opts.WorkDir}, report.Candidates)
	report.UpdatesApplied = res.Applied
	report.Failures += res.Failed
	report.Errors = append(report.Errors, res.Errors...)

	for _, msg := range res.Errors {
		fmt.Fprintf(opts.IO.ErrOut, "skipped: %s\n", msg)
	}
	fmt.Fprintf(opts.IO.Out, "Updated %d Dockerfile(s).\n", res.FilesChanged)

	// Exit non-zero only when nothing could be applied at all.
	if res.Applied == 0 {
		return &cmdutil.ExitError{Code: 1}
	}

	if mgr == nil {
		return nil
	}

	if err := mgr.StageAll(); err != nil {
		return err
	}
	hash, err := mgr.Commit(updater.Title(report.Candidates), git.Signature{
		Name:  cfg.GitLab.UserName,
		Email: cfg.GitLab.UserEmail,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(opts.IO.Out, "Committed %s\n", hash[:8])

	if opts.Push {
		if err := mgr.Push(ctx, git.PushOptions{
			Branch: opts.Branch,
			Token:  cfg.GitLab.Token,
			SkipCI: true,
		}); err != nil {
			return err
		}
		fmt.Fprintf(opts.IO.Out, "Pushed %s to origin\n", opts.Branch)
	}

	if opts.CreateMR {
		client, err := opts.GitLabClient()
		if err != nil {
			return err
		}
		mr, err := client.CreateMergeRequest(ctx, gitlab.CreateMergeRequestOptions{
			SourceBranch:       opts.Branch,
			TargetBranch:       cfg.GitLab.BaseBranch,
			Title:              updater.Title(report.Candidates),
			Description:        updater.Description(report.Candidates),
			RemoveSourceBranch: true,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(opts.IO.Out, "Merge request created: %s\n", mr.WebURL)
	}

	return nil
}
