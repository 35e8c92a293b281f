package update

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantci/evergreen/internal/cmdutil"
	"github.com/verdantci/evergreen/internal/config"
	"github.com/verdantci/evergreen/internal/git"
	"github.com/verdantci/evergreen/internal/iostreams"
	"github.com/verdantci/evergreen/internal/registry"
)

func tagSource(t *testing.T, tags ...string) registry.TagSource {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"count":%d,"results":[`, len(tags))
		for i, tag := range tags {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"name":%q}`, tag)
		}
		fmt.Fprint(w, `]}`)
	}))
	t.Cleanup(server.Close)
	return registry.NewDockerHubClientWithHTTP(server.URL, server.Client())
}

func TestUpdateRunRewritesInPlace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Dockerfile")
	require.NoError(t, os.WriteFile(path, []byte("FROM node:18.2.0\n"), 0o644))

	ios, _, out, _ := iostreams.Test()
	opts := &UpdateOptions{
		IO:        ios,
		WorkDir:   dir,
		Config:    func() (*config.Config, error) { return config.DefaultConfig(), nil },
		TagSource: func() (registry.TagSource, error) { return tagSource(t, "18.2.0", "20.11.1"), nil },
	}

	require.NoError(t, updateRun(context.Background(), opts))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "FROM node:20.11.1\n", string(data))
	assert.Contains(t, out.String(), "Updated 1 Dockerfile(s).")
}

func TestUpdateRunDryRunLeavesFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Dockerfile")
	require.NoError(t, os.WriteFile(path, []byte("FROM node:18.2.0\n"), 0o644))

	ios, _, out, _ := iostreams.Test()
	opts := &UpdateOptions{
		IO:        ios,
		WorkDir:   dir,
		DryRun:    true,
		Config:    func() (*config.Config, error) { return config.DefaultConfig(), nil },
		TagSource: func() (registry.TagSource, error) { return tagSource(t, "18.2.0", "20.11.1"), nil },
	}

	require.NoError(t, updateRun(context.Background(), opts))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "FROM node:18.2.0\n", string(data))
	assert.Contains(t, out.String(), "dry run")
}

func TestUpdateRunFailedRewriteExitsNonZero(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Dockerfile")
	require.NoError(t, os.WriteFile(path, []byte("FROM node:18.2.0\n"), 0o644))

	// The file changes underneath the run after it was scanned, so the
	// rewrite cannot land and nothing is applied.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, os.WriteFile(path, []byte("FROM node:19.0.0\n"), 0o644))
		fmt.Fprint(w, `{"count":2,"results":[{"name":"18.2.0"},{"name":"20.11.1"}]}`)
	}))
	t.Cleanup(server.Close)
	tags := registry.NewDockerHubClientWithHTTP(server.URL, server.Client())

	ios, _, _, errOut := iostreams.Test()
	opts := &UpdateOptions{
		IO:        ios,
		WorkDir:   dir,
		Config:    func() (*config.Config, error) { return config.DefaultConfig(), nil },
		TagSource: func() (registry.TagSource, error) { return tags, nil },
	}

	err := updateRun(context.Background(), opts)
	var exitErr *cmdutil.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, errOut.String(), "skipped:")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "FROM node:19.0.0\n", string(data))
}

func TestUpdateRunUpToDate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM node:20.11.1\n"), 0o644))

	ios, _, out, _ := iostreams.Test()
	opts := &UpdateOptions{
		IO:        ios,
		WorkDir:   dir,
		Config:    func() (*config.Config, error) { return config.DefaultConfig(), nil },
		TagSource: func() (registry.TagSource, error) { return tagSource(t, "18.2.0", "20.11.1"), nil },
	}

	require.NoError(t, updateRun(context.Background(), opts))
	assert.Contains(t, out.String(), "All images are up to date.")
}

func TestUpdateRunOnBranchCommits(t *testing.T) {
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	path := filepath.Join(dir, "Dockerfile")
	require.NoError(t, os.WriteFile(path, []byte("FROM node:18.2.0\n"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("Dockerfile")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &gogit.CommitOptions{
		Author: &object.Signature{Name: "t", Email: "t@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	mgr := git.NewManagerWithRepo(repo, dir)

	ios, _, out, _ := iostreams.Test()
	opts := &UpdateOptions{
		IO:         ios,
		WorkDir:    dir,
		Branch:     "evergreen/test",
		Config:     func() (*config.Config, error) { return config.DefaultConfig(), nil },
		TagSource:  func() (registry.TagSource, error) { return tagSource(t, "18.2.0", "20.11.1"), nil },
		GitManager: func(context.Context) (*git.Manager, error) { return mgr, nil },
	}

	require.NoError(t, updateRun(context.Background(), opts))

	current, err := mgr.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "evergreen/test", current)

	dirty, err := mgr.IsDirty()
	require.NoError(t, err)
	assert.False(t, dirty, "changes should be committed")

	assert.Contains(t, out.String(), "Created branch evergreen/test")
	assert.Contains(t, out.String(), "Committed")
}
