// Package auth provides the auth command group: storing the GitLab token
// in the OS keychain instead of config files or CI variables.
package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verdantci/evergreen/internal/cmdutil"
	"github.com/verdantci/evergreen/internal/config"
	"github.com/verdantci/evergreen/internal/iostreams"
	"github.com/verdantci/evergreen/internal/keyring"
)

// NewCmdAuth creates the auth command group.
func NewCmdAuth(f *cmdutil.Factory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth <command>",
		Short: "Manage the stored GitLab token",
	}

	cmd.AddCommand(newCmdLogin(f, nil))
	cmd.AddCommand(newCmdLogout(f, nil))
	cmd.AddCommand(newCmdStatus(f, nil))

	return cmd
}

// LoginOptions holds options for the auth login command.
type LoginOptions struct {
	IO     *iostreams.IOStreams
	Config func() (*config.Config, error)

	Token string
}

func newCmdLogin(f *cmdutil.Factory, runF func(context.Context, *LoginOptions) error) *cobra.Command {
	opts := &LoginOptions{
		IO:     f.IOStreams,
		Config: f.Config,
	}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a GitLab token in the OS keychain",
		Long: `Stores the token for the configured GitLab host. Commands fall back to
the keychain when no token is set in config or environment.`,
		Example: `  evergreen auth login --token glpat-...

  # Read the token from stdin
  echo "$TOKEN" | evergreen auth login`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return loginRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Token, "token", "", "Token to store (read from stdin when omitted)")

	return cmd
}

func loginRun(_ context.Context, opts *LoginOptions) error {
	host, err := configuredHost(opts.Config)
	if err != nil {
		return err
	}

	token := opts.Token
	if token == "" {
		line, err := bufio.NewReader(opts.IO.In).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading token from stdin: %w", err)
		}
		token = strings.TrimSpace(line)
	}
	if token == "" {
		return cmdutil.FlagErrorf("no token provided")
	}

	if err := keyring.SetToken(host, token); err != nil {
		return fmt.Errorf("storing token for %s: %w", host, err)
	}
	fmt.Fprintf(opts.IO.Out, "Token stored for %s\n", host)
	return nil
}

// LogoutOptions holds options for the auth logout command.
type LogoutOptions struct {
	IO     *iostreams.IOStreams
	Config func() (*config.Config, error)
}

func newCmdLogout(f *cmdutil.Factory, runF func(context.Context, *LogoutOptions) error) *cobra.Command {
	opts := &LogoutOptions{
		IO:     f.IOStreams,
		Config: f.Config,
	}

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored GitLab token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return logoutRun(cmd.Context(), opts)
		},
	}

	return cmd
}

func logoutRun(_ context.Context, opts *LogoutOptions) error {
	host, err := configuredHost(opts.Config)
	if err != nil {
		return err
	}

	if err := keyring.DeleteToken(host); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			fmt.Fprintf(opts.IO.Out, "No token stored for %s\n", host)
			return nil
		}
		return fmt.Errorf("removing token for %s: %w", host, err)
	}
	fmt.Fprintf(opts.IO.Out, "Token removed for %s\n", host)
	return nil
}

// StatusOptions holds options for the auth status command.
type StatusOptions struct {
	IO     *iostreams.IOStreams
	Config func() (*config.Config, error)
}

func newCmdStatus(f *cmdutil.Factory, runF func(context.Context, *StatusOptions) error) *cobra.Command {
	opts := &StatusOptions{
		IO:     f.IOStreams,
		Config: f.Config,
	}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether a token is stored for the configured host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return statusRun(cmd.Context(), opts)
		},
	}

	return cmd
}

func statusRun(_ context.Context, opts *StatusOptions) error {
	host, err := configuredHost(opts.Config)
	if err != nil {
		return err
	}

	if _, err := keyring.GetToken(host); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			fmt.Fprintf(opts.IO.Out, "No token stored for %s\n", host)
			return &cmdutil.ExitError{Code: 1}
		}
		return err
	}
	fmt.Fprintf(opts.IO.Out, "Token stored for %s\n", host)
	return nil
}

func configuredHost(loadConfig func() (*config.Config, error)) (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	u, err := url.Parse(cfg.GitLab.URL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid gitlab URL %q", cfg.GitLab.URL)
	}
	return u.Host, nil
}
