package component

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verdantci/evergreen/internal/cmdutil"
	"github.com/verdantci/evergreen/internal/component"
	"github.com/verdantci/evergreen/internal/gitlab"
	"github.com/verdantci/evergreen/internal/iostreams"
)

// ScanOptions holds options for the component scan command.
type ScanOptions struct {
	IO           *iostreams.IOStreams
	GitLabClient func() (*gitlab.Client, error)
	Store        *component.Store

	ProjectPath    string
	Group          string
	Ref            string
	JSON           bool
	UpdateRegistry bool
}

func newCmdScan(f *cmdutil.Factory, runF func(context.Context, *ScanOptions) error) *cobra.Command {
	opts := &ScanOptions{
		IO:           f.IOStreams,
		GitLabClient: f.GitLabClient,
	}
	var registryPath string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a project's CI files for component includes",
		Long: `Fetches .gitlab-ci.yml (and fragments under .gitlab/ci/) through the
GitLab API and reports every component or project-template include it
finds. --project-path scans the configured project; --group walks every
project of a group at its default branch. With --update-registry each
detected usage is recorded as a consumer of the matching registered
component.`,
		Example: `  evergreen component scan --project-path teams/billing/api

  evergreen component scan --group teams --update-registry`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (opts.ProjectPath == "") == (opts.Group == "") {
				return cmdutil.FlagErrorf("exactly one of --project-path or --group is required")
			}
			opts.Store = storeFor(f, registryPath)
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return scanRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&registryPath, "registry", "", "Registry file (default component-registry.yaml)")
	cmd.Flags().StringVar(&opts.ProjectPath, "project-path", "", "Project path for reporting (group/project)")
	cmd.Flags().StringVar(&opts.Group, "group", "", "Scan every project of this group instead")
	cmd.Flags().StringVar(&opts.Ref, "ref", "", "Git ref to scan (default: the project's default branch)")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output the patterns as JSON")
	cmd.Flags().BoolVar(&opts.UpdateRegistry, "update-registry", false, "Record detected usages as consumers in the registry")

	return cmd
}

func scanRun(ctx context.Context, opts *ScanOptions) error {
	client, err := opts.GitLabClient()
	if err != nil {
		return err
	}
	scanner := &component.Scanner{Client: client}

	var patterns []component.UsagePattern
	if opts.Group != "" {
		patterns, err = scanner.ScanGroup(ctx, opts.Group)
	} else {
		ref := opts.Ref
		if ref == "" {
			project, perr := client.Project(ctx)
			if perr != nil {
				return perr
			}
			ref = project.DefaultBranch
		}
		patterns, err = scanner.ScanProject(ctx, opts.ProjectPath, ref)
	}
	if err != nil {
		return err
	}

	if opts.UpdateRegistry {
		for _, p := range patterns {
			err := opts.Store.AddConsumer(ctx, p.ComponentName, component.Consumer{
				ProjectPath:   p.ProjectPath,
				VersionUsed:   p.Version,
				IncludeMethod: p.IncludeMethod,
			})
			if err != nil {
				// Usages of unregistered components are expected during a
				// discovery scan.
				fmt.Fprintf(opts.IO.ErrOut, "not recorded: %s: %v\n", p.ComponentName, err)
			}
		}
	}

	if opts.JSON {
		enc := json.NewEncoder(opts.IO.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(patterns)
	}

	if len(patterns) == 0 {
		fmt.Fprintln(opts.IO.Out, "No component includes found.")
		return nil
	}
	for _, p := range patterns {
		switch p.IncludeMethod {
		case component.IncludeComponent:
			fmt.Fprintf(opts.IO.Out, "%s: component %s@%s (%s)\n",
				p.FilePath, p.ComponentName, p.Version, p.ComponentRef)
		default:
			fmt.Fprintf(opts.IO.Out, "%s: template %s (%s)\n",
				p.FilePath, p.ComponentName, p.ComponentRef)
		}
	}
	fmt.Fprintf(opts.IO.Out, "%d include(s) found.\n", len(patterns))
	return nil
}
