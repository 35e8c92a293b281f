// Package updater orchestrates the update pipeline on top of the scanner:
// compiling tag rules from configuration, applying resolved candidates to
// Dockerfiles, and turning them into commits and merge requests.
package updater

import (
	"context"
	"fmt"
	"sort"

	"github.com/verdantci/evergreen/internal/config"
	"github.com/verdantci/evergreen/internal/dockerfile"
	"github.com/verdantci/evergreen/internal/logger"
	"github.com/verdantci/evergreen/internal/resolver"
)

// CompileRules builds the per-image rule set from configuration.
func CompileRules(rules []config.TagRuleConfig) (map[string]resolver.TagRule, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	compiled := make(map[string]resolver.TagRule, len(rules))
	for _, rc := range rules {
		rule, err := resolver.CompileRule(rc.Image, rc.DisplayName, rc.Pattern, resolver.Ordering(rc.Ordering))
		if err != nil {
			return nil, err
		}
		compiled[rc.Image] = rule
	}
	return compiled, nil
}

// GroupByPath groups candidates by Dockerfile so multiple updates to one
// file become a single rewrite. Paths are returned in sorted order.
func GroupByPath(candidates []resolver.UpdateCandidate) (paths []string, byPath map[string][]resolver.UpdateCandidate) {
	byPath = make(map[string][]resolver.UpdateCandidate)
	for _, c := range candidates {
		byPath[c.Path] = append(byPath[c.Path], c)
	}
	paths = make([]string, 0, len(byPath))
	for path := range byPath {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, byPath
}

// ApplyToContent rewrites one Dockerfile's content for all of its
// candidates. Any single mismatch aborts the whole file so a partially
// rewritten Dockerfile is never produced.
func ApplyToContent(content string, candidates []resolver.UpdateCandidate) (string, error) {
	for _, c := range candidates {
		updated, err := dockerfile.Rewrite(content, c.Current, c.Latest)
		if err != nil {
			return "", fmt.Errorf("%s: %w", c.Current.String(), err)
		}
		content = updated
	}
	return content, nil
}

// ApplyResult is the outcome of one apply pass: how many files changed,
// how many candidates landed, and which ones did not.
type ApplyResult struct {
	FilesChanged int
	Applied      int
	Failed       int
	Errors       []string
}

// Apply rewrites the Dockerfiles behind a report's candidates in place
// through the given writer. A failure on one file is recorded in the
// result and does not stop the rest.
func Apply(ctx context.Context, files FileStore, candidates []resolver.UpdateCandidate) ApplyResult {
	paths, byPath := GroupByPath(candidates)

	var res ApplyResult
	for _, path := range paths {
		if err := applyFile(ctx, files, path, byPath[path]); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("dockerfile not updated")
			res.Failed += len(byPath[path])
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		res.FilesChanged++
		res.Applied += len(byPath[path])
		for _, c := range byPath[path] {
			logger.Info().
				Str("path", path).
				Str("from", c.Current.Tag).
				Str("to", c.Latest.Tag).
				Str("image", c.Current.Name).
				Msg("dockerfile updated")
		}
	}
	return res
}

func applyFile(ctx context.Context, files FileStore, path string, candidates []resolver.UpdateCandidate) error {
	content, err := files.ReadFile(ctx, path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	updated, err := ApplyToContent(content, candidates)
	if err != nil {
		return fmt.Errorf("rewriting %s: %w", path, err)
	}
	if err := files.WriteFile(ctx, path, updated); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// FileStore reads and writes project files. The local implementation works
// on the filesystem; tests use an in-memory map.
type FileStore interface {
	ReadFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path, content string) error
}
