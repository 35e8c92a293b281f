// Package config loads evergreen configuration from evergreen.yaml with
// environment-variable overrides, including the GitLab CI variables the
// tool inherits when running inside a pipeline.
package config

import "time"

// ConfigFileName is the default configuration file name.
const ConfigFileName = "evergreen.yaml"

// Config is the root configuration for all commands.
type Config struct {
	GitLab    GitLabConfig    `mapstructure:"gitlab"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// GitLabConfig identifies the GitLab instance and project being scanned.
type GitLabConfig struct {
	// URL is the GitLab base URL (CI_SERVER_URL in pipelines).
	URL string `mapstructure:"url"`

	// APIURL is the REST v4 endpoint (CI_API_V4_URL). Derived from URL
	// when empty.
	APIURL string `mapstructure:"api_url"`

	// Token authenticates API and push operations. May come from config,
	// ACCESS_TOKEN, or the OS keychain.
	Token string `mapstructure:"token"`

	// ProjectID is the numeric ID or URL-encoded path of the project.
	ProjectID string `mapstructure:"project_id"`

	// BaseBranch is the branch scanned and targeted by merge requests.
	BaseBranch string `mapstructure:"base_branch"`

	UserName  string `mapstructure:"user_name"`
	UserEmail string `mapstructure:"user_email"`

	Timeout time.Duration `mapstructure:"timeout"`
}

// ScannerConfig controls the Dockerfile scan.
type ScannerConfig struct {
	// BranchPrefix names update branches ("evergreen/").
	BranchPrefix string `mapstructure:"branch_prefix"`

	// ExcludePatterns are path prefixes skipped during Dockerfile
	// discovery ("test/", "examples/").
	ExcludePatterns []string `mapstructure:"exclude_patterns"`

	Registry RegistryConfig  `mapstructure:"registry"`
	TagRules []TagRuleConfig `mapstructure:"tag_rules"`
}

// RegistryConfig bounds the Docker Hub tag source.
type RegistryConfig struct {
	PageSize int           `mapstructure:"page_size"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Retries  int           `mapstructure:"retries"`
}

// TagRuleConfig is the configuration form of a per-image tag rule.
type TagRuleConfig struct {
	Image       string `mapstructure:"image"`
	DisplayName string `mapstructure:"display_name"`
	Pattern     string `mapstructure:"pattern"`
	Ordering    string `mapstructure:"ordering"`
}

// SchedulerConfig controls serve-mode periodic scans.
type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// WebhookConfig controls the serve-mode HTTP listener.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`

	// Token, when set, is required in the X-Webhook-Token header of
	// trigger requests.
	Token string `mapstructure:"token"`
}

// LoggingConfig controls optional file logging.
type LoggingConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// DefaultConfig returns the built-in defaults. The python slim rule mirrors
// the image family the pipeline has always tracked.
func DefaultConfig() *Config {
	return &Config{
		GitLab: GitLabConfig{
			URL:        "https://gitlab.com",
			BaseBranch: "main",
			UserName:   "Evergreen Bot",
			UserEmail:  "evergreen@example.com",
			Timeout:    30 * time.Second,
		},
		Scanner: ScannerConfig{
			BranchPrefix:    "evergreen/",
			ExcludePatterns: []string{"test/", "examples/"},
			Registry: RegistryConfig{
				PageSize: 100,
				Timeout:  30 * time.Second,
				Retries:  3,
			},
			TagRules: []TagRuleConfig{
				{
					Image:       "python",
					DisplayName: "Python slim",
					Pattern:     `^[0-9]+\.[0-9]+(\.[0-9]+)?-slim$`,
					Ordering:    "semver",
				},
			},
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Interval: 6 * time.Hour,
		},
		Webhook: WebhookConfig{
			Enabled: false,
			Addr:    ":8080",
		},
	}
}
