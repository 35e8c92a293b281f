package component

import (
	"sort"
	"time"
)

// UsageReport summarizes component usage across scanned projects.
type UsageReport struct {
	GeneratedAt   time.Time                 `json:"generated_at"`
	TotalPatterns int                       `json:"total_patterns"`
	Components    map[string]ComponentStats `json:"components"`
	Projects      map[string]ProjectStats   `json:"projects"`
	IncludeCounts map[string]int            `json:"include_methods"`
	Patterns      []UsagePattern            `json:"patterns"`
}

// ComponentStats aggregates usage of one component.
type ComponentStats struct {
	TotalUsage     int            `json:"total_usage"`
	UniqueProjects int            `json:"unique_projects"`
	Projects       []string       `json:"projects"`
	IncludeCounts  map[string]int `json:"include_methods"`
}

// ProjectStats aggregates includes in one project.
type ProjectStats struct {
	UniqueComponents int      `json:"unique_components"`
	Components       []string `json:"components"`
	TotalIncludes    int      `json:"total_includes"`
}

// BuildUsageReport aggregates raw patterns into a report.
func BuildUsageReport(patterns []UsagePattern) UsageReport {
	report := UsageReport{
		GeneratedAt:   time.Now().UTC(),
		TotalPatterns: len(patterns),
		Components:    make(map[string]ComponentStats),
		Projects:      make(map[string]ProjectStats),
		IncludeCounts: map[string]int{IncludeComponent: 0, IncludeProject: 0},
		Patterns:      patterns,
	}

	componentProjects := make(map[string]map[string]bool)
	projectComponents := make(map[string]map[string]bool)

	for _, p := range patterns {
		report.IncludeCounts[p.IncludeMethod]++

		stats := report.Components[p.ComponentName]
		if stats.IncludeCounts == nil {
			stats.IncludeCounts = map[string]int{IncludeComponent: 0, IncludeProject: 0}
			componentProjects[p.ComponentName] = make(map[string]bool)
		}
		stats.TotalUsage++
		stats.IncludeCounts[p.IncludeMethod]++
		componentProjects[p.ComponentName][p.ProjectPath] = true
		report.Components[p.ComponentName] = stats

		proj := report.Projects[p.ProjectPath]
		if projectComponents[p.ProjectPath] == nil {
			projectComponents[p.ProjectPath] = make(map[string]bool)
		}
		proj.TotalIncludes++
		projectComponents[p.ProjectPath][p.ComponentName] = true
		report.Projects[p.ProjectPath] = proj
	}

	for name, stats := range report.Components {
		stats.Projects = sortedKeys(componentProjects[name])
		stats.UniqueProjects = len(stats.Projects)
		report.Components[name] = stats
	}
	for path, stats := range report.Projects {
		stats.Components = sortedKeys(projectComponents[path])
		stats.UniqueComponents = len(stats.Components)
		report.Projects[path] = stats
	}
	return report
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
