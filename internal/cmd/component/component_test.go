package component

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantci/evergreen/internal/cmdutil"
	"github.com/verdantci/evergreen/internal/component"
	"github.com/verdantci/evergreen/internal/gitlab"
	"github.com/verdantci/evergreen/internal/iostreams"
)

func testStore(t *testing.T) *component.Store {
	t.Helper()
	return component.NewStore(filepath.Join(t.TempDir(), "component-registry.yaml"))
}

func TestNewCmdRegisterFlags(t *testing.T) {
	ios, _, _, _ := iostreams.Test()
	f := &cmdutil.Factory{IOStreams: ios, WorkDir: t.TempDir()}

	var got *RegisterOptions
	cmd := newCmdRegister(f, func(_ context.Context, opts *RegisterOptions) error {
		got = opts
		return nil
	})
	cmd.SetArgs([]string{
		"--name", "helloworld",
		"--project", "components/helloworld",
		"--path", "templates/helloworld.yml",
		"--version", "1.0.0",
		"--maintainer", "platform@example.com",
	})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "helloworld", got.Name)
	assert.Equal(t, "components/helloworld", got.Project)
	assert.Equal(t, "1.0.0", got.Version)
	assert.Equal(t, "platform@example.com", got.Maintainer)
	assert.NotNil(t, got.Store)
}

func TestNewCmdRegisterRequiresName(t *testing.T) {
	ios, _, _, _ := iostreams.Test()
	f := &cmdutil.Factory{IOStreams: ios, WorkDir: t.TempDir()}

	cmd := newCmdRegister(f, func(context.Context, *RegisterOptions) error { return nil })
	cmd.SetArgs([]string{"--project", "components/helloworld", "--version", "1.0.0"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	assert.Error(t, cmd.Execute())
}

func TestRegisterAndConsumersRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	ios, _, out, _ := iostreams.Test()
	require.NoError(t, registerRun(ctx, &RegisterOptions{
		IO:      ios,
		Store:   store,
		Name:    "helloworld",
		Project: "components/helloworld",
		Path:    "templates/helloworld.yml",
		Version: "1.0.0",
	}))
	assert.Contains(t, out.String(), "Registered helloworld v1.0.0")

	require.NoError(t, addConsumerRun(ctx, &AddConsumerOptions{
		IO:        ios,
		Store:     store,
		Component: "helloworld",
		Project:   "teams/billing/api",
		Contact:   "billing@example.com",
		Version:   "1.0.0",
		Method:    component.IncludeComponent,
	}))

	ios, _, out, _ = iostreams.Test()
	require.NoError(t, consumersRun(ctx, &ConsumersOptions{
		IO:        ios,
		Store:     store,
		Component: "helloworld",
	}))
	assert.Contains(t, out.String(), "teams/billing/api (component) v1.0.0")
	assert.Contains(t, out.String(), "billing@example.com")
}

func TestConsumersUnknownComponent(t *testing.T) {
	ios, _, _, _ := iostreams.Test()
	err := consumersRun(context.Background(), &ConsumersOptions{
		IO:        ios,
		Store:     testStore(t),
		Component: "missing",
	})
	assert.ErrorIs(t, err, component.ErrComponentNotFound)
}

func TestAddConsumerRejectsBadMethod(t *testing.T) {
	ios, _, _, _ := iostreams.Test()
	f := &cmdutil.Factory{IOStreams: ios, WorkDir: t.TempDir()}

	cmd := newCmdAddConsumer(f, func(context.Context, *AddConsumerOptions) error { return nil })
	cmd.SetArgs([]string{"--component", "helloworld", "--project", "a/b", "--method", "bogus"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	var flagErr *cmdutil.FlagError
	assert.ErrorAs(t, err, &flagErr)
}

// ciServer serves a project with a default branch and one CI file containing
// a component include and a project template include.
func ciServer(t *testing.T) *gitlab.Client {
	t.Helper()
	ciContent := `include:
  - component: gitlab.example.com/components/helloworld/helloworld@1.0.0
    inputs:
      environment: production
  - project: shared/templates
    file: templates/deploy.yml
`
	mux := http.NewServeMux()
	mux.HandleFunc("/projects/123", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":123,"default_branch":"main"}`)
	})
	mux.HandleFunc("/projects/123/repository/tree", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"path":".gitlab-ci.yml","type":"blob"}]`)
	})
	mux.HandleFunc("/projects/123/repository/files/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, ciContent)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := gitlab.NewClient(gitlab.Options{
		BaseURL:   server.URL,
		ProjectID: "123",
		Token:     "glpat-test",
	})
	require.NoError(t, err)
	return client
}

func TestScanRunPrintsIncludes(t *testing.T) {
	client := ciServer(t)

	ios, _, out, _ := iostreams.Test()
	opts := &ScanOptions{
		IO:           ios,
		GitLabClient: func() (*gitlab.Client, error) { return client, nil },
		Store:        testStore(t),
		ProjectPath:  "teams/billing/api",
	}

	require.NoError(t, scanRun(context.Background(), opts))

	output := out.String()
	assert.Contains(t, output, "component helloworld@1.0.0")
	assert.Contains(t, output, "template deploy")
	assert.Contains(t, output, "2 include(s) found.")
}

func TestScanRunUpdateRegistry(t *testing.T) {
	client := ciServer(t)
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Register(ctx, component.Component{
		Name:           "helloworld",
		Project:        "components/helloworld",
		CurrentVersion: "1.0.0",
	}))

	ios, _, _, errOut := iostreams.Test()
	opts := &ScanOptions{
		IO:             ios,
		GitLabClient:   func() (*gitlab.Client, error) { return client, nil },
		Store:          store,
		ProjectPath:    "teams/billing/api",
		UpdateRegistry: true,
	}

	require.NoError(t, scanRun(ctx, opts))

	consumers, err := store.Consumers(ctx, "helloworld")
	require.NoError(t, err)
	require.Len(t, consumers, 1)
	assert.Equal(t, "teams/billing/api", consumers[0].ProjectPath)
	assert.Equal(t, "1.0.0", consumers[0].VersionUsed)

	// The unregistered template component is reported, not fatal.
	assert.Contains(t, errOut.String(), "deploy")
}

func TestReportRunFromInputFile(t *testing.T) {
	patterns := []component.UsagePattern{
		{ProjectPath: "a/b", FilePath: ".gitlab-ci.yml", ComponentName: "helloworld", IncludeMethod: component.IncludeComponent},
		{ProjectPath: "c/d", FilePath: ".gitlab-ci.yml", ComponentName: "helloworld", IncludeMethod: component.IncludeComponent},
	}
	data, err := json.Marshal(patterns)
	require.NoError(t, err)

	input := filepath.Join(t.TempDir(), "patterns.json")
	require.NoError(t, os.WriteFile(input, data, 0o644))
	output := filepath.Join(t.TempDir(), "report.json")

	ios, _, out, _ := iostreams.Test()
	require.NoError(t, reportRun(context.Background(), &ReportOptions{
		IO:     ios,
		Input:  input,
		Output: output,
	}))

	assert.Contains(t, out.String(), "helloworld: 2 usage(s) in 2 project(s)")

	report, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(report), `"total_patterns": 2`)
}

func TestReportRunRequiresSource(t *testing.T) {
	ios, _, _, _ := iostreams.Test()
	f := &cmdutil.Factory{IOStreams: ios, WorkDir: t.TempDir()}

	cmd := newCmdReport(f, func(context.Context, *ReportOptions) error { return nil })
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	var flagErr *cmdutil.FlagError
	assert.ErrorAs(t, err, &flagErr)
}
