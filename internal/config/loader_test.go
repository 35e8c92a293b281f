package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	loader := NewLoader(t.TempDir())
	require.False(t, loader.Exists())

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://gitlab.com", cfg.GitLab.URL)
	assert.Equal(t, "https://gitlab.com/api/v4", cfg.GitLab.APIURL)
	assert.Equal(t, "main", cfg.GitLab.BaseBranch)
	assert.Equal(t, "evergreen/", cfg.Scanner.BranchPrefix)
	assert.Equal(t, 100, cfg.Scanner.Registry.PageSize)
	assert.Equal(t, 3, cfg.Scanner.Registry.Retries)
	assert.Equal(t, 6*time.Hour, cfg.Scheduler.Interval)
	assert.False(t, cfg.Scheduler.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
gitlab:
  url: https://gitlab.example.com
  project_id: "42"
  base_branch: develop
scanner:
  branch_prefix: "deps/"
  exclude_patterns:
    - vendor/
  registry:
    timeout: 10s
  tag_rules:
    - image: python
      display_name: Python slim
      pattern: '^[0-9]+\.[0-9]+-slim$'
      ordering: semver
scheduler:
  enabled: true
  interval: 30m
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644))

	loader := NewLoader(dir)
	require.True(t, loader.Exists())

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://gitlab.example.com", cfg.GitLab.URL)
	assert.Equal(t, "https://gitlab.example.com/api/v4", cfg.GitLab.APIURL)
	assert.Equal(t, "42", cfg.GitLab.ProjectID)
	assert.Equal(t, "develop", cfg.GitLab.BaseBranch)
	assert.Equal(t, "deps/", cfg.Scanner.BranchPrefix)
	assert.Equal(t, []string{"vendor/"}, cfg.Scanner.ExcludePatterns)
	assert.Equal(t, 10*time.Second, cfg.Scanner.Registry.Timeout)
	require.Len(t, cfg.Scanner.TagRules, 1)
	assert.Equal(t, "python", cfg.Scanner.TagRules[0].Image)
	assert.Equal(t, "semver", cfg.Scanner.TagRules[0].Ordering)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.Interval)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CI_SERVER_URL", "https://ci.example.com")
	t.Setenv("CI_API_V4_URL", "https://ci.example.com/api/v4")
	t.Setenv("CI_PROJECT_ID", "1234")
	t.Setenv("ACCESS_TOKEN", "glpat-secret")

	loader := NewLoader(t.TempDir())
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://ci.example.com", cfg.GitLab.URL)
	assert.Equal(t, "https://ci.example.com/api/v4", cfg.GitLab.APIURL)
	assert.Equal(t, "1234", cfg.GitLab.ProjectID)
	assert.Equal(t, "glpat-secret", cfg.GitLab.Token)
}

func TestLoadInvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("gitlab: [broken"), 0o644))

	_, err := NewLoader(dir).Load()
	assert.Error(t, err)
}
