package check

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantci/evergreen/internal/cmdutil"
	"github.com/verdantci/evergreen/internal/config"
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

func newOpts(t *testing.T, dir string, tags registry.TagSource) (*CheckOptions, *iostreams.IOStreams) {
	ios, _, _, _ := iostreams.Test()
	return &CheckOptions{
		IO:        ios,
		WorkDir:   dir,
		Config:    func() (*config.Config, error) { return config.DefaultConfig(), nil },
		TagSource: func() (registry.TagSource, error) { return tags, nil },
	}, ios
}

func TestCheckExitsOneWhenUpdatesAvailable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM node:18.2.0\n"), 0o644))

	opts, _ := newOpts(t, dir, tagSource(t, "18.2.0", "20.11.1"))

	err := checkRun(context.Background(), opts)
	var exitErr *cmdutil.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
}

func TestCheckPassesWhenUpToDate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM node:20.11.1\n"), 0o644))

	opts, _ := newOpts(t, dir, tagSource(t, "18.2.0", "20.11.1"))
	assert.NoError(t, checkRun(context.Background(), opts))
}

func TestCheckWritesReportFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM node:18.2.0\n"), 0o644))

	reportPath := filepath.Join(t.TempDir(), "updates.json")
	opts, _ := newOpts(t, dir, tagSource(t, "18.2.0", "20.11.1"))
	opts.ReportFile = reportPath

	err := checkRun(context.Background(), opts)
	require.Error(t, err) // updates available

	data, readErr := os.ReadFile(reportPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), `"updates_found": 1`)
}
