package resolver

import (
	"fmt"
	"regexp"

	"github.com/verdantci/evergreen/internal/semver"
)

// Ordering selects how a tag rule ranks the tags that pass its filter.
type Ordering string

const (
	// OrderingSemantic ranks by (major, minor, patch) version tuples.
	OrderingSemantic Ordering = "semver"

	// OrderingNumeric ranks whole-number tags ("16", "20") numerically.
	OrderingNumeric Ordering = "numeric"
)

// TagRule is the static per-image-family configuration for registry checks:
// which image, which tags count, and how they are ranked. Rules are built
// once from configuration and never mutated at runtime.
type TagRule struct {
	// Image is the image name the rule applies to ("python").
	Image string

	// DisplayName is used in human-readable output. Defaults to Image.
	DisplayName string

	// Pattern filters the candidate tags (e.g. only -slim variants).
	// A nil pattern passes everything through.
	Pattern *regexp.Regexp

	// Ordering ranks the filtered tags.
	Ordering Ordering
}

// CompileRule builds a TagRule from its configuration form.
func CompileRule(image, displayName, pattern string, ordering Ordering) (TagRule, error) {
	rule := TagRule{Image: image, DisplayName: displayName, Ordering: ordering}
	if rule.DisplayName == "" {
		rule.DisplayName = image
	}
	switch ordering {
	case OrderingSemantic, OrderingNumeric:
	case "":
		rule.Ordering = OrderingSemantic
	default:
		return TagRule{}, fmt.Errorf("tag rule for %s: unknown ordering %q", image, ordering)
	}
	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return TagRule{}, fmt.Errorf("tag rule for %s: %w", image, err)
		}
		rule.Pattern = re
	}
	return rule, nil
}

// Latest filters the tags through the rule's pattern and returns the best
// one under the rule's ordering. semver.ErrNoVersions when nothing usable
// remains.
func (r TagRule) Latest(tags []string) (string, error) {
	filtered := tags
	if r.Pattern != nil {
		filtered = filtered[:0:0]
		for _, tag := range tags {
			if r.Pattern.MatchString(tag) {
				filtered = append(filtered, tag)
			}
		}
	}
	if r.Ordering == OrderingNumeric {
		return semver.LatestNumeric(filtered)
	}
	return semver.Latest(filtered)
}
