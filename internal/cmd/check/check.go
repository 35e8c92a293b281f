// Package check provides the check command: a CI gate that exits non-zero
// when base image updates are available.
package check

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/verdantci/evergreen/internal/cmdutil"
	"github.com/verdantci/evergreen/internal/config"
	"github.com/verdantci/evergreen/internal/iostreams"
	"github.com/verdantci/evergreen/internal/registry"
	"github.com/verdantci/evergreen/internal/resolver"
	"github.com/verdantci/evergreen/internal/updater"
)

// CheckOptions holds options for the check command.
type CheckOptions struct {
	IO        *iostreams.IOStreams
	Config    func() (*config.Config, error)
	TagSource func() (registry.TagSource, error)
	WorkDir   string

	ReportFile string
}

// NewCmdCheck creates the check command.
func NewCmdCheck(f *cmdutil.Factory, runF func(context.Context, *CheckOptions) error) *cobra.Command {
	opts := &CheckOptions{
		IO:        f.IOStreams,
		Config:    f.Config,
		TagSource: f.TagSource,
		WorkDir:   f.WorkDir,
	}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Exit non-zero when image updates are available",
		Long: `Scans the current directory like "evergreen scan" but is meant as a
pipeline gate: it exits 1 when at least one base image has a newer tag,
and 0 when everything is current.`,
		Example: `  # Gate a pipeline stage on image freshness
  evergreen check

  # Also write the full report for a later stage
  evergreen check --report updates.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return checkRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.ReportFile, "report", "", "Write the JSON scan report to this file")

	return cmd
}

func checkRun(ctx context.Context, opts *CheckOptions) error {
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
		fmt.Fprintf(opts.IO.ErrOut, "check failed: %v\n", err)
		return &cmdutil.ExitError{Code: 1}
	}

	if opts.ReportFile != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.ReportFile, data, 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
	}

	for _, c := range report.Candidates {
		fmt.Fprintf(opts.IO.Out, "%s: %s -> %s  (%s:%d)\n",
			c.Current.Name, c.Current.Tag, c.Latest.Tag, c.Path, c.Line)
	}

	switch {
	case report.Failed():
		fmt.Fprintln(opts.IO.ErrOut, "check could not complete: all lookups failed")
		return &cmdutil.ExitError{Code: 1}
	case report.UpdatesNeeded():
		fmt.Fprintf(opts.IO.Out, "%d update(s) available.\n", report.UpdatesFound)
		return &cmdutil.ExitError{Code: 1}
	default:
		fmt.Fprintln(opts.IO.Out, "All images are up to date.")
		return nil
	}
}
