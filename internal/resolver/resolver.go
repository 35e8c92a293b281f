// Package resolver decides whether newer tags exist for the image
// references found in Dockerfiles, and drives the per-project scan loop.
package resolver

import (
	"github.com/verdantci/evergreen/internal/dockerfile"
	"github.com/verdantci/evergreen/internal/semver"
)

// defaultRegistryHosts are the hosts treated as "the default registry".
// Images pinned to any other registry are not eligible for automated
// updates (private registries would need credentials we don't hold).
var defaultRegistryHosts = map[string]bool{
	"":                        true,
	"docker.io":               true,
	"index.docker.io":         true,
	"registry.hub.docker.com": true,
}

// UpdateCandidate is a detected (current, latest) pair differing in tag,
// eligible for an automated update. Current and Latest always name the same
// image on the same registry.
type UpdateCandidate struct {
	Current dockerfile.ImageRef `json:"current_image"`
	Latest  dockerfile.ImageRef `json:"latest_image"`

	// Path is the Dockerfile the current reference came from.
	Path string `json:"dockerfile_path"`

	// Line is the 1-based line number of the FROM statement.
	Line int `json:"line_number"`
}

// Eligible reports whether an image reference qualifies for update
// resolution at all. Floating "latest" tags are already current by
// definition, and non-default registries are out of policy.
func Eligible(ref dockerfile.ImageRef) bool {
	if ref.Tag == dockerfile.DefaultTag {
		return false
	}
	return defaultRegistryHosts[ref.Registry]
}

// Resolve decides whether an update candidate exists for the current
// reference given the available tags. The boolean is false for NoUpdate:
// ineligible image, no usable version information, or already at the
// latest tag.
func Resolve(current dockerfile.ImageRef, tags []string) (UpdateCandidate, bool) {
	if !Eligible(current) {
		return UpdateCandidate{}, false
	}

	latest, err := semver.Latest(tags)
	if err != nil {
		// No semantic tags at all: fall back to a literal "latest" tag
		// when the registry publishes one.
		latest = ""
		for _, tag := range tags {
			if tag == dockerfile.DefaultTag {
				latest = tag
				break
			}
		}
		if latest == "" {
			return UpdateCandidate{}, false
		}
	}

	if latest == current.Tag {
		return UpdateCandidate{}, false
	}

	return UpdateCandidate{
		Current: current,
		Latest: dockerfile.ImageRef{
			Name:     current.Name,
			Tag:      latest,
			Registry: current.Registry,
		},
		Line: current.Line,
	}, true
}

// ResolveWithRule is Resolve under a per-image tag rule: only tags passing
// the rule's filter compete, ranked by the rule's ordering.
func ResolveWithRule(current dockerfile.ImageRef, tags []string, rule TagRule) (UpdateCandidate, bool) {
	if !Eligible(current) {
		return UpdateCandidate{}, false
	}

	latest, err := rule.Latest(tags)
	if err != nil || latest == current.Tag {
		return UpdateCandidate{}, false
	}

	return UpdateCandidate{
		Current: current,
		Latest: dockerfile.ImageRef{
			Name:     current.Name,
			Tag:      latest,
			Registry: current.Registry,
		},
		Line: current.Line,
	}, true
}
