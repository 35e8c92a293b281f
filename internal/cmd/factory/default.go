// Package factory wires the real implementations behind cmdutil.Factory.
package factory

import (
	"context"
	"errors"
	"net/url"
	"os"
	"sync"

	"github.com/verdantci/evergreen/internal/cmdutil"
	"github.com/verdantci/evergreen/internal/config"
	"github.com/verdantci/evergreen/internal/git"
	"github.com/verdantci/evergreen/internal/gitlab"
	"github.com/verdantci/evergreen/internal/iostreams"
	"github.com/verdantci/evergreen/internal/keyring"
	"github.com/verdantci/evergreen/internal/registry"
)

// New creates a fully-wired Factory with lazy-initialized dependency
// closures. Called exactly once at the CLI entry point. Tests should NOT
// import this package; construct &cmdutil.Factory{} directly.
func New(version, commit string) *cmdutil.Factory {
	workDir, err := os.Getwd()
	if err != nil {
		workDir = "."
	}

	f := &cmdutil.Factory{
		WorkDir:   workDir,
		Version:   version,
		Commit:    commit,
		IOStreams: iostreams.System(),
	}

	// --- Lazy dependency closures ---

	var (
		configOnce sync.Once
		cfg        *config.Config
		cfgErr     error
	)
	loadConfig := func() (*config.Config, error) {
		configOnce.Do(func() {
			cfg, cfgErr = config.NewLoader(f.WorkDir).Load()
		})
		return cfg, cfgErr
	}
	f.ConfigLoader = func() *config.Loader {
		return config.NewLoader(f.WorkDir)
	}
	f.Config = loadConfig
	f.ResetConfig = func() {
		configOnce = sync.Once{}
	}

	f.GitLabClient = func() (*gitlab.Client, error) {
		c, err := loadConfig()
		if err != nil {
			return nil, err
		}
		token := c.GitLab.Token
		if token == "" {
			// Fall back to the OS keychain when nothing came from config
			// or environment.
			if host := hostOf(c.GitLab.URL); host != "" {
				stored, err := keyring.GetToken(host)
				if err == nil {
					token = stored
				} else if !errors.Is(err, keyring.ErrNotFound) {
					return nil, err
				}
			}
		}
		return gitlab.NewClient(gitlab.Options{
			BaseURL:   c.GitLab.APIURL,
			ProjectID: c.GitLab.ProjectID,
			Token:     token,
			Timeout:   c.GitLab.Timeout,
		})
	}

	f.TagSource = func() (registry.TagSource, error) {
		c, err := loadConfig()
		if err != nil {
			return nil, err
		}
		return registry.NewDockerHubClientWithOptions(registry.DockerHubOptions{
			PageSize: c.Scanner.Registry.PageSize,
			Timeout:  c.Scanner.Registry.Timeout,
			Retries:  c.Scanner.Registry.Retries,
		}), nil
	}

	f.GitManager = func(context.Context) (*git.Manager, error) {
		return git.NewManager(f.WorkDir)
	}

	return f
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
