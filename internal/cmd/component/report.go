package component

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/verdantci/evergreen/internal/cmdutil"
	"github.com/verdantci/evergreen/internal/component"
	"github.com/verdantci/evergreen/internal/gitlab"
	"github.com/verdantci/evergreen/internal/iostreams"
)

// ReportOptions holds options for the component report command.
type ReportOptions struct {
	IO           *iostreams.IOStreams
	GitLabClient func() (*gitlab.Client, error)

	Input       string
	Output      string
	ProjectPath string
	Ref         string
}

func newCmdReport(f *cmdutil.Factory, runF func(context.Context, *ReportOptions) error) *cobra.Command {
	opts := &ReportOptions{
		IO:           f.IOStreams,
		GitLabClient: f.GitLabClient,
	}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate component usage into a report",
		Long: `Builds a usage report from detected include patterns: per-component and
per-project totals plus the raw patterns. Reads patterns from --input
(the JSON written by "component scan --json"), or runs a fresh scan when
--project-path is given.`,
		Example: `  evergreen component scan --project-path teams/billing/api --json > patterns.json
  evergreen component report --input patterns.json --output usage-report.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Input == "" && opts.ProjectPath == "" {
				return cmdutil.FlagErrorf("either --input or --project-path is required")
			}
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return reportRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Input, "input", "", "JSON file of patterns from a previous scan")
	cmd.Flags().StringVar(&opts.Output, "output", "", "Write the report to this file instead of stdout")
	cmd.Flags().StringVar(&opts.ProjectPath, "project-path", "", "Scan this project instead of reading --input")
	cmd.Flags().StringVar(&opts.Ref, "ref", "", "Git ref to scan (default: the project's default branch)")

	return cmd
}

func reportRun(ctx context.Context, opts *ReportOptions) error {
	patterns, err := collectPatterns(ctx, opts)
	if err != nil {
		return err
	}

	report := component.BuildUsageReport(patterns)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		printSummary(opts.IO, report)
		fmt.Fprintf(opts.IO.Out, "Report written to %s\n", opts.Output)
		return nil
	}

	_, err = opts.IO.Out.Write(data)
	return err
}

func collectPatterns(ctx context.Context, opts *ReportOptions) ([]component.UsagePattern, error) {
	if opts.Input != "" {
		data, err := os.ReadFile(opts.Input)
		if err != nil {
			return nil, fmt.Errorf("reading patterns: %w", err)
		}
		var patterns []component.UsagePattern
		if err := json.Unmarshal(data, &patterns); err != nil {
			return nil, fmt.Errorf("parsing patterns: %w", err)
		}
		return patterns, nil
	}

	client, err := opts.GitLabClient()
	if err != nil {
		return nil, err
	}
	ref := opts.Ref
	if ref == "" {
		project, err := client.Project(ctx)
		if err != nil {
			return nil, err
		}
		ref = project.DefaultBranch
	}
	scanner := &component.Scanner{Client: client}
	return scanner.ScanProject(ctx, opts.ProjectPath, ref)
}

func printSummary(io *iostreams.IOStreams, report component.UsageReport) {
	fmt.Fprintf(io.Out, "%d pattern(s) across %d project(s), %d component(s)\n",
		report.TotalPatterns, len(report.Projects), len(report.Components))

	names := make([]string, 0, len(report.Components))
	for name := range report.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stats := report.Components[name]
		fmt.Fprintf(io.Out, "  %s: %d usage(s) in %d project(s)\n",
			name, stats.TotalUsage, stats.UniqueProjects)
	}
}
