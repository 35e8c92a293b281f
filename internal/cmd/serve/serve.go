// Package serve provides the serve command: a long-running mode with
// scheduled scans, a trigger webhook, and Prometheus metrics.
package serve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/verdantci/evergreen/internal/cmdutil"
	"github.com/verdantci/evergreen/internal/config"
	"github.com/verdantci/evergreen/internal/gitlab"
	"github.com/verdantci/evergreen/internal/iostreams"
	"github.com/verdantci/evergreen/internal/logger"
	"github.com/verdantci/evergreen/internal/registry"
	"github.com/verdantci/evergreen/internal/resolver"
	"github.com/verdantci/evergreen/internal/serve"
	"github.com/verdantci/evergreen/internal/updater"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	IO           *iostreams.IOStreams
	Config       func() (*config.Config, error)
	ResetConfig  func()
	TagSource    func() (registry.TagSource, error)
	GitLabClient func() (*gitlab.Client, error)
	WorkDir      string

	Addr     string
	Interval time.Duration
	Local    bool
}

// NewCmdServe creates the serve command.
func NewCmdServe(f *cmdutil.Factory, runF func(context.Context, *ServeOptions) error) *cobra.Command {
	opts := &ServeOptions{
		IO:           f.IOStreams,
		Config:       f.Config,
		ResetConfig:  f.ResetConfig,
		TagSource:    f.TagSource,
		GitLabClient: f.GitLabClient,
		WorkDir:      f.WorkDir,
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled scans with a trigger webhook",
		Long: `Runs until interrupted, scanning the configured GitLab project on a
schedule. The HTTP listener exposes /healthz, /status, Prometheus
/metrics, and POST /scan to trigger an immediate scan (authenticated by
the webhook token when one is configured).

Changes to evergreen.yaml are picked up without a restart.`,
		Example: `  evergreen serve

  # Scan every hour regardless of the configured interval
  evergreen serve --interval 1h

  curl -X POST -H "X-Webhook-Token: $TOKEN" http://localhost:8080/scan`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return serveRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "Scan interval, overriding the config (0 uses the config)")
	cmd.Flags().BoolVar(&opts.Local, "local", false, "Scan the working directory instead of the GitLab project")

	return cmd
}

func serveRun(ctx context.Context, opts *ServeOptions) error {
	cfg, err := opts.Config()
	if err != nil {
		return err
	}

	addr := opts.Addr
	if addr == "" {
		addr = cfg.Webhook.Addr
	}
	interval := opts.Interval
	if interval == 0 && cfg.Scheduler.Enabled {
		interval = cfg.Scheduler.Interval
	}

	metrics := serve.NewMetrics()
	scheduler := serve.NewScheduler(interval, opts.scanFunc(), metrics)
	server := serve.NewServer(addr, cfg.Webhook.Token, scheduler, metrics)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)
	go func() { errCh <- scheduler.Run(ctx) }()
	go func() { errCh <- server.ListenAndServe(ctx) }()

	configFile := filepath.Join(opts.WorkDir, config.ConfigFileName)
	if _, statErr := os.Stat(configFile); statErr == nil {
		go func() {
			errCh <- serve.WatchConfig(ctx, configFile, opts.ResetConfig)
		}()
	}

	// First scan immediately rather than one interval from now.
	scheduler.Trigger()

	fmt.Fprintf(opts.IO.Out, "Listening on %s\n", addr)

	err = <-errCh
	cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("serve mode stopped")
		return err
	}
	fmt.Fprintln(opts.IO.Out, "Shutting down.")
	return nil
}

// scanFunc builds the scan executed by the scheduler. Configuration is
// re-read on every run so a config reload takes effect on the next scan.
func (opts *ServeOptions) scanFunc() serve.ScanFunc {
	return func(ctx context.Context) (resolver.ScanReport, error) {
		cfg, err := opts.Config()
		if err != nil {
			return resolver.ScanReport{}, err
		}
		tags, err := opts.TagSource()
		if err != nil {
			return resolver.ScanReport{}, err
		}
		rules, err := updater.CompileRules(cfg.Scanner.TagRules)
		if err != nil {
			return resolver.ScanReport{}, err
		}

		var files resolver.FileSource
		if opts.Local {
			files = resolver.NewLocalSource(opts.WorkDir, cfg.Scanner.ExcludePatterns)
		} else {
			client, err := opts.GitLabClient()
			if err != nil {
				return resolver.ScanReport{}, err
			}
			files = gitlab.NewRepoSource(client, cfg.GitLab.BaseBranch, cfg.Scanner.ExcludePatterns)
		}

		scanner := resolver.NewScanner(files, tags)
		scanner.Rules = rules
		return scanner.Scan(ctx)
	}
}
