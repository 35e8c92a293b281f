package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/verdantci/evergreen/internal/dockerfile"
	"github.com/verdantci/evergreen/internal/logger"
	"github.com/verdantci/evergreen/internal/registry"
)

// FileSource lists and reads the Dockerfiles of one project. Implemented by
// the GitLab repository adapter and by the local-directory source, and by
// in-memory fakes in tests.
type FileSource interface {
	// ListDockerfiles returns project-relative Dockerfile paths.
	ListDockerfiles(ctx context.Context) ([]string, error)

	// ReadFile returns the content of one file.
	ReadFile(ctx context.Context, path string) (string, error)
}

// Scanner runs the bounded per-project scan loop: every Dockerfile, every
// image reference, one registry lookup each. Images are resolved
// independently; a registry failure for one image is recorded and skipped,
// never propagated to the rest of the scan.
type Scanner struct {
	Files FileSource
	Tags  registry.TagSource

	// Rules overrides resolution per image name. Images without a rule use
	// plain semantic-version resolution.
	Rules map[string]TagRule
}

// NewScanner creates a scanner over the given file and tag sources.
func NewScanner(files FileSource, tags registry.TagSource) *Scanner {
	return &Scanner{Files: files, Tags: tags}
}

// Scan walks all Dockerfiles and resolves an update candidate for each
// eligible image reference. The returned report is complete even when
// individual files or images failed; the error return is reserved for the
// scan being impossible (no file listing at all).
func (s *Scanner) Scan(ctx context.Context) (ScanReport, error) {
	report := NewScanReport()

	paths, err := s.Files.ListDockerfiles(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("listing dockerfiles: %v", err))
		report.Duration = time.Since(report.StartedAt)
		return report, fmt.Errorf("listing dockerfiles: %w", err)
	}
	logger.Info().Int("count", len(paths)).Msg("found dockerfiles to scan")

	for _, path := range paths {
		s.scanDockerfile(ctx, path, &report)
	}

	report.Duration = time.Since(report.StartedAt)
	logger.Info().
		Str("scan_id", report.ID).
		Int("images", report.ImagesScanned).
		Int("updates", report.UpdatesFound).
		Int("failures", report.Failures).
		Dur("duration", report.Duration).
		Msg("scan complete")
	return report, nil
}

func (s *Scanner) scanDockerfile(ctx context.Context, path string, report *ScanReport) {
	content, err := s.Files.ReadFile(ctx, path)
	if err != nil {
		logger.Warn().Str("path", path).Err(err).Msg("skipping unreadable dockerfile")
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", path, err))
		return
	}
	report.DockerfilesScanned++

	refs := dockerfile.Parse(content)
	logger.Debug().Str("path", path).Int("images", len(refs)).Msg("parsed dockerfile")

	for _, ref := range refs {
		report.ImagesScanned++

		if !Eligible(ref) {
			logger.Debug().Str("image", ref.String()).Msg("image not eligible for update")
			continue
		}

		tags, err := s.Tags.Tags(ctx, ref.Name)
		if err != nil {
			// Partial-failure isolation: record and move on.
			logger.Warn().Str("image", ref.Name).Err(err).Msg("could not fetch tags")
			report.Failures++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", ref.Name, err))
			continue
		}

		var candidate UpdateCandidate
		var ok bool
		if rule, has := s.Rules[ref.Name]; has {
			candidate, ok = ResolveWithRule(ref, tags, rule)
		} else {
			candidate, ok = Resolve(ref, tags)
		}
		if !ok {
			continue
		}
		candidate.Path = path
		report.UpdatesFound++
		report.Candidates = append(report.Candidates, candidate)
		logger.Info().
			Str("image", candidate.Current.String()).
			Str("latest", candidate.Latest.Tag).
			Str("path", path).
			Msg("update candidate found")
	}
}
