// Package scan provides the scan command: discover Dockerfiles, check the
// registry for newer tags, and optionally open merge requests.
package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/verdantci/evergreen/internal/cmdutil"
	"github.com/verdantci/evergreen/internal/config"
	"github.com/verdantci/evergreen/internal/gitlab"
	"github.com/verdantci/evergreen/internal/iostreams"
	"github.com/verdantci/evergreen/internal/registry"
	"github.com/verdantci/evergreen/internal/resolver"
	"github.com/verdantci/evergreen/internal/updater"
)

// ScanOptions holds options for the scan command.
type ScanOptions struct {
	IO           *iostreams.IOStreams
	Config       func() (*config.Config, error)
	TagSource    func() (registry.TagSource, error)
	GitLabClient func() (*gitlab.Client, error)
	WorkDir      string

	Remote    bool
	CreateMRs bool
	JSON      bool
	Ref       string
}

// NewCmdScan creates the scan command.
func NewCmdScan(f *cmdutil.Factory, runF func(context.Context, *ScanOptions) error) *cobra.Command {
	opts := &ScanOptions{
		IO:           f.IOStreams,
		Config:       f.Config,
		TagSource:    f.TagSource,
		GitLabClient: f.GitLabClient,
		WorkDir:      f.WorkDir,
	}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan Dockerfiles for outdated base images",
		Long: `Scans every Dockerfile for image references and checks the registry
for newer tags.

By default the current directory is scanned. With --remote the configured
GitLab project is scanned through the API instead, without a local checkout.

The scan exits non-zero only when it produced nothing at all: no readable
Dockerfile, or a registry failure for every image. Individual failures are
reported and skipped.`,
		Example: `  # Scan the current directory
  evergreen scan

  # Scan the configured GitLab project and open merge requests
  evergreen scan --remote --create-mrs

  # Machine-readable output
  evergreen scan --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.CreateMRs {
				opts.Remote = true
			}
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return scanRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Remote, "remote", false, "Scan the configured GitLab project via the API")
	cmd.Flags().BoolVar(&opts.CreateMRs, "create-mrs", false, "Open a merge request for the updates found (implies --remote)")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output the scan report as JSON")
	cmd.Flags().StringVar(&opts.Ref, "ref", "", "Branch to scan (defaults to the configured base branch)")

	return cmd
}

func scanRun(ctx context.Context, opts *ScanOptions) error {
	cfg, err := opts.Config()
	if err != nil {
		return err
	}

	scanner, client, err := buildScanner(opts, cfg)
	if err != nil {
		return err
	}

	report, err := scanner.Scan(ctx)
	if err != nil {
		fmt.Fprintf(opts.IO.ErrOut, "scan failed: %v\n", err)
		return &cmdutil.ExitError{Code: 1}
	}

	if opts.CreateMRs && report.UpdatesNeeded() {
		creator := &updater.MRCreator{
			Client:       client,
			BaseBranch:   baseRef(opts, cfg),
			BranchPrefix: cfg.Scanner.BranchPrefix,
		}
		mrs, err := creator.CreateAll(ctx, report.Candidates)
		if err != nil {
			return fmt.Errorf("creating merge requests: %w", err)
		}
		report.UpdatesApplied = len(mrs)
		for _, mr := range mrs {
			fmt.Fprintf(opts.IO.Out, "Merge request created: %s\n", mr.WebURL)
		}
	}

	if err := printReport(opts.IO, report, opts.JSON); err != nil {
		return err
	}

	if report.Failed() {
		return &cmdutil.ExitError{Code: 1}
	}
	return nil
}

func buildScanner(opts *ScanOptions, cfg *config.Config) (*resolver.Scanner, *gitlab.Client, error) {
	tags, err := opts.TagSource()
	if err != nil {
		return nil, nil, err
	}
	rules, err := updater.CompileRules(cfg.Scanner.TagRules)
	if err != nil {
		return nil, nil, err
	}

	var files resolver.FileSource
	var client *gitlab.Client
	if opts.Remote {
		client, err = opts.GitLabClient()
		if err != nil {
			return nil, nil, err
		}
		files = gitlab.NewRepoSource(client, baseRef(opts, cfg), cfg.Scanner.ExcludePatterns)
	} else {
		files = resolver.NewLocalSource(opts.WorkDir, cfg.Scanner.ExcludePatterns)
	}

	scanner := resolver.NewScanner(files, tags)
	scanner.Rules = rules
	return scanner, client, nil
}

func baseRef(opts *ScanOptions, cfg *config.Config) string {
	if opts.Ref != "" {
		return opts.Ref
	}
	return cfg.GitLab.BaseBranch
}

func printReport(ios *iostreams.IOStreams, report resolver.ScanReport, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(ios.Out, string(data))
		return nil
	}

	fmt.Fprintf(ios.Out, "Scanned %d Dockerfiles, %d images in %s\n",
		report.DockerfilesScanned, report.ImagesScanned, report.Duration.Round(time.Millisecond))

	for _, c := range report.Candidates {
		fmt.Fprintf(ios.Out, "  %s: %s -> %s  (%s:%d)\n",
			c.Current.Name, c.Current.Tag, c.Latest.Tag, c.Path, c.Line)
	}

	switch {
	case report.UpdatesFound == 0 && report.Failures == 0:
		fmt.Fprintln(ios.Out, "All images are up to date.")
	case report.UpdatesFound > 0:
		fmt.Fprintf(ios.Out, "%d update(s) available.\n", report.UpdatesFound)
	}
	if report.Failures > 0 {
		fmt.Fprintf(ios.ErrOut, "%d image(s) could not be checked.\n", report.Failures)
	}
	for _, e := range report.Errors {
		fmt.Fprintf(ios.ErrOut, "  error: %s\n", e)
	}
	return nil
}
