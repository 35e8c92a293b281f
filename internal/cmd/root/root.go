package root

import (
	"path/filepath"

	"github.com/spf13/cobra"

	authcmd "github.com/verdantci/evergreen/internal/cmd/auth"
	checkcmd "github.com/verdantci/evergreen/internal/cmd/check"
	componentcmd "github.com/verdantci/evergreen/internal/cmd/component"
	scancmd "github.com/verdantci/evergreen/internal/cmd/scan"
	servecmd "github.com/verdantci/evergreen/internal/cmd/serve"
	updatecmd "github.com/verdantci/evergreen/internal/cmd/update"
	versioncmd "github.com/verdantci/evergreen/internal/cmd/version"
	"github.com/verdantci/evergreen/internal/cmdutil"
	"github.com/verdantci/evergreen/internal/logger"
)

// NewCmdRoot creates the root command for the evergreen CLI.
func NewCmdRoot(f *cmdutil.Factory, version, buildDate string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evergreen <command>",
		Short: "Keep Dockerfile base images and CI/CD components up to date",
		Long: `Evergreen scans Dockerfiles for outdated base images, opens merge
requests with the updates, and tracks CI/CD component usage across
projects.

Quick start:
  evergreen scan           # Report available base image updates
  evergreen check          # Same, exiting non-zero when updates exist
  evergreen update         # Rewrite the Dockerfiles in place
  evergreen serve          # Scheduled scans with a trigger webhook`,
		SilenceUsage: true,
		Annotations: map[string]string{
			"versionInfo": versioncmd.Format(version, buildDate),
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			initializeLogger(f)

			logger.Debug().
				Str("version", f.Version).
				Bool("debug", f.Debug).
				Msg("evergreen starting")

			return nil
		},
		Version: f.Version,
	}

	cmd.PersistentFlags().BoolVarP(&f.Debug, "debug", "D", false, "Enable debug logging")

	cmd.SetVersionTemplate(versioncmd.Format(version, buildDate) + "\n")

	cmd.AddCommand(authcmd.NewCmdAuth(f))
	cmd.AddCommand(scancmd.NewCmdScan(f, nil))
	cmd.AddCommand(checkcmd.NewCmdCheck(f, nil))
	cmd.AddCommand(updatecmd.NewCmdUpdate(f, nil))
	cmd.AddCommand(componentcmd.NewCmdComponent(f))
	cmd.AddCommand(servecmd.NewCmdServe(f, nil))
	cmd.AddCommand(versioncmd.NewCmdVersion(f, version, buildDate))

	return cmd
}

// initializeLogger sets up logging from the loaded configuration, falling
// back to console-only when the config cannot be read.
func initializeLogger(f *cmdutil.Factory) {
	cfg, err := f.Config()
	if err != nil {
		logger.Init(f.Debug)
		logger.Warn().Err(err).Msg("file logging unavailable: failed to load config")
		return
	}

	path := cfg.Logging.File
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(f.WorkDir, path)
	}
	logger.InitWithFile(f.Debug, logger.FileConfig{
		Path:       path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		MaxBackups: cfg.Logging.MaxBackups,
	})
}
