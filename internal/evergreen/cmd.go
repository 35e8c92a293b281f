// Package evergreen holds the CLI entry point shared by the evergreen
// binary and tests.
package evergreen

import (
	"errors"
	"fmt"
	"os"

	"github.com/verdantci/evergreen/internal/cmd/factory"
	"github.com/verdantci/evergreen/internal/cmd/root"
	"github.com/verdantci/evergreen/internal/cmdutil"
	"github.com/verdantci/evergreen/internal/logger"
)

// Build-time variables injected via ldflags.
var (
	Version = "dev"
	Commit  = "none"
)

const (
	exitOk    = 0
	exitError = 1
	exitUsage = 2
)

// Main is the entry point for the evergreen CLI. It initializes the
// Factory, creates the root command, and executes it.
func Main() int {
	// Ensure logs are flushed on exit
	defer logger.CloseFileWriter()

	f := factory.New(Version, Commit)

	rootCmd := root.NewCmdRoot(f, Version, Commit)

	cmd, err := rootCmd.ExecuteC()
	if err == nil {
		return exitOk
	}

	var exitErr *cmdutil.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, cmdutil.SilentError) {
		return exitError
	}

	var flagErr *cmdutil.FlagError
	if errors.As(err, &flagErr) {
		fmt.Fprintf(os.Stderr, "%s\n\n%s", flagErr, cmd.UsageString())
		return exitUsage
	}

	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	return exitError
}
