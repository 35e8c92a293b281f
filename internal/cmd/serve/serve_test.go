package serve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantci/evergreen/internal/cmdutil"
	"github.com/verdantci/evergreen/internal/config"
	"github.com/verdantci/evergreen/internal/iostreams"
	"github.com/verdantci/evergreen/internal/registry"
)

func TestNewCmdServeFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want ServeOptions
	}{
		{
			name: "defaults",
			args: []string{},
			want: ServeOptions{},
		},
		{
			name: "custom address and interval",
			args: []string{"--addr", ":9090", "--interval", "1h"},
			want: ServeOptions{Addr: ":9090", Interval: time.Hour},
		},
		{
			name: "local scanning",
			args: []string{"--local"},
			want: ServeOptions{Local: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ios, _, _, _ := iostreams.Test()
			f := &cmdutil.Factory{IOStreams: ios}

			var got *ServeOptions
			cmd := NewCmdServe(f, func(_ context.Context, opts *ServeOptions) error {
				got = opts
				return nil
			})
			cmd.SetArgs(tt.args)
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)

			require.NoError(t, cmd.Execute())
			assert.Equal(t, tt.want.Addr, got.Addr)
			assert.Equal(t, tt.want.Interval, got.Interval)
			assert.Equal(t, tt.want.Local, got.Local)
		})
	}
}

func tagServer(t *testing.T, tags ...string) registry.TagSource {
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

func TestScanFuncLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM node:18.2.0\n"), 0o644))

	ios, _, _, _ := iostreams.Test()
	opts := &ServeOptions{
		IO:        ios,
		WorkDir:   dir,
		Local:     true,
		Config:    func() (*config.Config, error) { return config.DefaultConfig(), nil },
		TagSource: func() (registry.TagSource, error) { return tagServer(t, "18.2.0", "20.11.1"), nil },
	}

	report, err := opts.scanFunc()(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.UpdatesFound)
}

func TestScanFuncReloadsConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "legacy"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "legacy", "Dockerfile"), []byte("FROM node:18.2.0\n"), 0o644))

	cfg := config.DefaultConfig()
	ios, _, _, _ := iostreams.Test()
	opts := &ServeOptions{
		IO:        ios,
		WorkDir:   dir,
		Local:     true,
		Config:    func() (*config.Config, error) { return cfg, nil },
		TagSource: func() (registry.TagSource, error) { return tagServer(t, "18.2.0", "20.11.1"), nil },
	}
	scan := opts.scanFunc()

	report, err := scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.UpdatesFound)

	// Excluding the directory between runs takes effect without a rebuild.
	cfg.Scanner.ExcludePatterns = append(cfg.Scanner.ExcludePatterns, "legacy/")

	report, err = scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.DockerfilesScanned)
}
