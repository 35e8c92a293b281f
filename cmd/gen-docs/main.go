// gen-docs generates markdown reference documentation for the evergreen CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/verdantci/evergreen/internal/cmd/root"
	"github.com/verdantci/evergreen/internal/cmdutil"
	"github.com/verdantci/evergreen/internal/docs"
	"github.com/verdantci/evergreen/internal/iostreams"
)

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("gen-docs", pflag.ContinueOnError)

	var docPath string
	flags.StringVar(&docPath, "doc-path", "", "Output directory for generated docs (required)")

	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n\n%s", filepath.Base(args[0]), flags.FlagUsages())
	}
	if err := flags.Parse(args[1:]); err != nil {
		return err
	}
	if docPath == "" {
		return fmt.Errorf("--doc-path is required")
	}

	if err := os.MkdirAll(docPath, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	ios, _, _, _ := iostreams.Test()
	f := &cmdutil.Factory{IOStreams: ios}
	rootCmd := root.NewCmdRoot(f, "", "")

	if err := docs.GenMarkdownTree(rootCmd, docPath); err != nil {
		return fmt.Errorf("generating markdown documentation: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Generated markdown documentation in %s\n", docPath)
	return nil
}
