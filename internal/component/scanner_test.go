package component

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeCIFileComponentIncludes(t *testing.T) {
	content := `
include:
  - component: gitlab.example.com/components/helloworld/hello@1.2.0
    inputs:
      stage: test
  - component: gitlab.example.com/components/deploy/rollout
  - local: ci/lint.yml
stages:
  - test
`
	patterns := AnalyzeCIFile("teams/app", ".gitlab-ci.yml", content)
	require.Len(t, patterns, 2)

	assert.Equal(t, "hello", patterns[0].ComponentName)
	assert.Equal(t, IncludeComponent, patterns[0].IncludeMethod)
	assert.Equal(t, "1.2.0", patterns[0].Version)
	assert.Equal(t, map[string]string{"stage": "test"}, patterns[0].Inputs)

	assert.Equal(t, "rollout", patterns[1].ComponentName)
	assert.Equal(t, "latest", patterns[1].Version)
}

func TestAnalyzeCIFileProjectTemplateInclude(t *testing.T) {
	content := `
include:
  - project: platform/ci-templates
    file: templates/docker-build.yml
    ref: main
  - project: platform/ci-templates
    file: jobs/misc.yml
`
	patterns := AnalyzeCIFile("teams/app", ".gitlab-ci.yml", content)
	require.Len(t, patterns, 1)
	assert.Equal(t, "docker-build", patterns[0].ComponentName)
	assert.Equal(t, IncludeProject, patterns[0].IncludeMethod)
	assert.Equal(t, "platform/ci-templates//templates/docker-build.yml", patterns[0].ComponentRef)
}

func TestAnalyzeCIFileSingleMappingInclude(t *testing.T) {
	content := `
include:
  component: gitlab.example.com/components/helloworld/hello@2.0.0
`
	patterns := AnalyzeCIFile("teams/app", ".gitlab-ci.yml", content)
	require.Len(t, patterns, 1)
	assert.Equal(t, "hello", patterns[0].ComponentName)
	assert.Equal(t, "2.0.0", patterns[0].Version)
}

func TestAnalyzeCIFileShortComponentRefIgnored(t *testing.T) {
	// Fewer than four path elements is not a valid component address.
	content := `
include:
  - component: hello@1.0.0
`
	assert.Empty(t, AnalyzeCIFile("teams/app", ".gitlab-ci.yml", content))
}

func TestAnalyzeCIFileInvalidYAML(t *testing.T) {
	assert.Empty(t, AnalyzeCIFile("teams/app", ".gitlab-ci.yml", "include: [broken"))
}

func TestAnalyzeCIFileNoIncludes(t *testing.T) {
	assert.Empty(t, AnalyzeCIFile("teams/app", ".gitlab-ci.yml", "stages:\n  - build\n"))
}

func TestComponentNameFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"templates/docker-build.yml", "docker-build"},
		{"templates/deploy/main.yaml", "deploy"},
		{"ci/rollout-template.yml", "rollout"},
		{"ci/rollout.template.yaml", "rollout"},
		{"jobs/misc.yml", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, componentNameFromPath(tt.path), tt.path)
	}
}

func TestBuildUsageReport(t *testing.T) {
	patterns := []UsagePattern{
		{ProjectPath: "teams/app", ComponentName: "hello", IncludeMethod: IncludeComponent},
		{ProjectPath: "teams/app", ComponentName: "deploy", IncludeMethod: IncludeComponent},
		{ProjectPath: "teams/api", ComponentName: "hello", IncludeMethod: IncludeProject},
	}

	report := BuildUsageReport(patterns)

	assert.Equal(t, 3, report.TotalPatterns)
	assert.Equal(t, 2, report.IncludeCounts[IncludeComponent])
	assert.Equal(t, 1, report.IncludeCounts[IncludeProject])

	hello := report.Components["hello"]
	assert.Equal(t, 2, hello.TotalUsage)
	assert.Equal(t, 2, hello.UniqueProjects)
	assert.Equal(t, []string{"teams/api", "teams/app"}, hello.Projects)

	app := report.Projects["teams/app"]
	assert.Equal(t, 2, app.UniqueComponents)
	assert.Equal(t, []string{"deploy", "hello"}, app.Components)
}
