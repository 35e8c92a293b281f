package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Loader handles loading and parsing of evergreen configuration.
type Loader struct {
	workDir string
	viper   *viper.Viper
}

// NewLoader creates a configuration loader for the given working directory.
func NewLoader(workDir string) *Loader {
	return &Loader{
		workDir: workDir,
		viper:   viper.New(),
	}
}

// Load reads evergreen.yaml, applies defaults and environment overrides, and
// unmarshals the result. A missing config file is not an error: the tool is
// commonly driven entirely by CI variables.
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()
	l.bindEnv()

	configPath := l.ConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		l.viper.SetConfigFile(configPath)
		l.viper.SetConfigType("yaml")
		if err := l.viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := l.viper.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.GitLab.APIURL == "" && cfg.GitLab.URL != "" {
		cfg.GitLab.APIURL = strings.TrimSuffix(cfg.GitLab.URL, "/") + "/api/v4"
	}

	return &cfg, nil
}

func (l *Loader) setDefaults() {
	defaults := DefaultConfig()
	l.viper.SetDefault("gitlab.url", defaults.GitLab.URL)
	l.viper.SetDefault("gitlab.base_branch", defaults.GitLab.BaseBranch)
	l.viper.SetDefault("gitlab.user_name", defaults.GitLab.UserName)
	l.viper.SetDefault("gitlab.user_email", defaults.GitLab.UserEmail)
	l.viper.SetDefault("gitlab.timeout", defaults.GitLab.Timeout)
	l.viper.SetDefault("scanner.branch_prefix", defaults.Scanner.BranchPrefix)
	l.viper.SetDefault("scanner.exclude_patterns", defaults.Scanner.ExcludePatterns)
	l.viper.SetDefault("scanner.registry.page_size", defaults.Scanner.Registry.PageSize)
	l.viper.SetDefault("scanner.registry.timeout", defaults.Scanner.Registry.Timeout)
	l.viper.SetDefault("scanner.registry.retries", defaults.Scanner.Registry.Retries)
	l.viper.SetDefault("scheduler.enabled", defaults.Scheduler.Enabled)
	l.viper.SetDefault("scheduler.interval", defaults.Scheduler.Interval)
	l.viper.SetDefault("webhook.enabled", defaults.Webhook.Enabled)
	l.viper.SetDefault("webhook.addr", defaults.Webhook.Addr)
}

// bindEnv wires the GitLab CI predefined variables so a pipeline job needs
// no config file at all.
func (l *Loader) bindEnv() {
	l.viper.BindEnv("gitlab.url", "EVERGREEN_GITLAB_URL", "GITLAB_URL", "CI_SERVER_URL")
	l.viper.BindEnv("gitlab.api_url", "EVERGREEN_GITLAB_API_URL", "CI_API_V4_URL")
	l.viper.BindEnv("gitlab.token", "EVERGREEN_GITLAB_TOKEN", "ACCESS_TOKEN")
	l.viper.BindEnv("gitlab.project_id", "EVERGREEN_PROJECT_ID", "CI_PROJECT_ID")
	l.viper.BindEnv("gitlab.base_branch", "EVERGREEN_BASE_BRANCH", "CI_DEFAULT_BRANCH")
	l.viper.BindEnv("gitlab.user_name", "EVERGREEN_GIT_USER_NAME", "GITLAB_USER_NAME")
	l.viper.BindEnv("gitlab.user_email", "EVERGREEN_GIT_USER_EMAIL", "GITLAB_USER_EMAIL")
	l.viper.BindEnv("webhook.token", "EVERGREEN_WEBHOOK_TOKEN")
}

// ConfigPath returns the full path to the config file.
func (l *Loader) ConfigPath() string {
	return filepath.Join(l.workDir, ConfigFileName)
}

// Exists checks if the configuration file exists.
func (l *Loader) Exists() bool {
	_, err := os.Stat(l.ConfigPath())
	return err == nil
}
