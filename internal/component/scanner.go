package component

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/verdantci/evergreen/internal/gitlab"
	"github.com/verdantci/evergreen/internal/logger"
)

// Include methods detected in CI files.
const (
	IncludeComponent = "component"
	IncludeProject   = "project"
)

// ciFileNames are the top-level CI files checked in order; additional CI
// fragments are picked up from .gitlab/ci/.
var ciFileNames = []string{".gitlab-ci.yml", ".gitlab-ci.yaml"}

const ciFragmentDir = ".gitlab/ci/"

// templatePathPatterns extract a component name from project-include file
// paths that look like component templates.
var templatePathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)templates/([^/]+)\.ya?ml$`),
	regexp.MustCompile(`(?i)templates/([^/]+)/[^/]+\.ya?ml$`),
	regexp.MustCompile(`(?i)([^/]+)-template\.ya?ml$`),
	regexp.MustCompile(`(?i)([^/]+)\.template\.ya?ml$`),
}

// UsagePattern is one detected component inclusion.
type UsagePattern struct {
	ProjectPath   string            `json:"project_path"`
	FilePath      string            `json:"file_path"`
	ComponentName string            `json:"component_name"`
	IncludeMethod string            `json:"include_method"`
	ComponentRef  string            `json:"component_ref,omitempty"`
	Version       string            `json:"version,omitempty"`
	Inputs        map[string]string `json:"inputs,omitempty"`
	DetectedAt    time.Time         `json:"detected_at"`
}

// ciInclude is the shape of one include entry in a CI file. Scalar includes
// (plain file paths) carry none of these keys and are skipped.
type ciInclude struct {
	Component string         `yaml:"component"`
	Project   string         `yaml:"project"`
	File      string         `yaml:"file"`
	Inputs    map[string]any `yaml:"inputs"`
}

type ciFile struct {
	Include yaml.Node `yaml:"include"`
}

// AnalyzeCIFile parses a CI file and returns the component usage patterns it
// contains. Invalid YAML yields no patterns, not an error: a broken CI file
// in one project must not abort a fleet-wide scan.
func AnalyzeCIFile(projectPath, filePath, content string) []UsagePattern {
	var doc ciFile
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		logger.Debug().
			Str("project", projectPath).
			Str("file", filePath).
			Err(err).
			Msg("skipping invalid CI file")
		return nil
	}

	includes := decodeIncludes(&doc.Include)
	now := time.Now().UTC()

	var patterns []UsagePattern
	for _, inc := range includes {
		switch {
		case inc.Component != "":
			name, version := parseComponentRef(inc.Component)
			if name == "" {
				continue
			}
			patterns = append(patterns, UsagePattern{
				ProjectPath:   projectPath,
				FilePath:      filePath,
				ComponentName: name,
				IncludeMethod: IncludeComponent,
				ComponentRef:  inc.Component,
				Version:       version,
				Inputs:        stringifyInputs(inc.Inputs),
				DetectedAt:    now,
			})

		case inc.Project != "" && inc.File != "":
			name := componentNameFromPath(inc.File)
			if name == "" {
				continue
			}
			patterns = append(patterns, UsagePattern{
				ProjectPath:   projectPath,
				FilePath:      filePath,
				ComponentName: name,
				IncludeMethod: IncludeProject,
				ComponentRef:  inc.Project + "//" + inc.File,
				DetectedAt:    now,
			})
		}
	}
	return patterns
}

// decodeIncludes handles the three YAML shapes of include: a sequence, a
// single mapping, or a scalar.
func decodeIncludes(node *yaml.Node) []ciInclude {
	switch node.Kind {
	case yaml.SequenceNode:
		var includes []ciInclude
		for _, item := range node.Content {
			var inc ciInclude
			if item.Kind == yaml.MappingNode && item.Decode(&inc) == nil {
				includes = append(includes, inc)
			}
		}
		return includes
	case yaml.MappingNode:
		var inc ciInclude
		if node.Decode(&inc) == nil {
			return []ciInclude{inc}
		}
	}
	return nil
}

// parseComponentRef splits "host/group/project/component@version". The name
// is the last path element; a missing version means "latest".
func parseComponentRef(ref string) (name, version string) {
	parts := strings.Split(ref, "/")
	if len(parts) < 4 {
		return "", ""
	}
	last := parts[len(parts)-1]
	name, version, found := strings.Cut(last, "@")
	if !found {
		version = "latest"
	}
	return name, version
}

func componentNameFromPath(path string) string {
	if !strings.Contains(strings.ToLower(path), "template") && !strings.HasPrefix(path, "templates/") {
		return ""
	}
	for _, pattern := range templatePathPatterns {
		if m := pattern.FindStringSubmatch(path); m != nil {
			return m[1]
		}
	}
	return ""
}

func stringifyInputs(inputs map[string]any) map[string]string {
	if len(inputs) == 0 {
		return nil
	}
	out := make(map[string]string, len(inputs))
	for k, v := range inputs {
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			out[k] = strings.TrimSpace(strings.ReplaceAll(nodeString(v), "\n", " "))
		}
	}
	return out
}

func nodeString(v any) string {
	data, err := yaml.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// Scanner discovers component usage in a GitLab project by fetching its CI
// files through the API.
type Scanner struct {
	Client *gitlab.Client
}

// ScanProject fetches the project's CI files at ref and returns the usage
// patterns found. projectPath is used for reporting only.
func (s *Scanner) ScanProject(ctx context.Context, projectPath, ref string) ([]UsagePattern, error) {
	entries, err := s.Client.ListTree(ctx, ref)
	if err != nil {
		return nil, err
	}

	var ciPaths []string
	for _, entry := range entries {
		if entry.Type != "blob" {
			continue
		}
		if isTopLevelCIFile(entry.Path) || isCIFragment(entry.Path) {
			ciPaths = append(ciPaths, entry.Path)
		}
	}

	var patterns []UsagePattern
	for _, path := range ciPaths {
		content, err := s.Client.RawFile(ctx, path, ref)
		if err != nil {
			logger.Warn().Str("file", path).Err(err).Msg("failed to fetch CI file")
			continue
		}
		patterns = append(patterns, AnalyzeCIFile(projectPath, path, string(content))...)
	}
	return patterns, nil
}

// ScanGroup scans every project of a group at its default branch. A project
// that cannot be scanned is logged and skipped, never fatal for the group.
func (s *Scanner) ScanGroup(ctx context.Context, group string) ([]UsagePattern, error) {
	projects, err := s.Client.ListGroupProjects(ctx, group)
	if err != nil {
		return nil, err
	}

	var patterns []UsagePattern
	for _, p := range projects {
		if p.DefaultBranch == "" {
			continue
		}
		scanner := &Scanner{Client: s.Client.ForProject(strconv.Itoa(p.ID))}
		found, err := scanner.ScanProject(ctx, p.PathWithNS, p.DefaultBranch)
		if err != nil {
			logger.Warn().Str("project", p.PathWithNS).Err(err).Msg("project scan failed")
			continue
		}
		patterns = append(patterns, found...)
	}
	return patterns, nil
}

func isTopLevelCIFile(path string) bool {
	for _, name := range ciFileNames {
		if path == name {
			return true
		}
	}
	return false
}

func isCIFragment(path string) bool {
	if !strings.HasPrefix(path, ciFragmentDir) {
		return false
	}
	return strings.HasSuffix(path, ".yml") || strings.HasSuffix(path, ".yaml")
}
