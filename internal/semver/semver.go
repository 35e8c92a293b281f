// Package semver classifies container image tags as loose semantic versions
// and orders them.
//
// Image tags are not strict semver: registries are full of "v1.2", "3.11-slim"
// and "16.20.0-alpine". The pattern here accepts an optional leading v, a
// major.minor pair, an optional patch, and an optional -suffix of word, dot
// and hyphen characters. Everything else ("latest", "alpine", branch names)
// is non-semantic and excluded from version comparison.
package semver

import (
	"errors"
	"regexp"
	"strconv"
)

// tagPattern is the single source of truth for tag classification and key
// extraction. Group order: major, minor, patch, suffix.
var tagPattern = regexp.MustCompile(`^v?(\d+)\.(\d+)(?:\.(\d+))?(?:-([\w.-]+))?$`)

// numericPattern matches whole-number tags ("16", "20") for numeric ordering.
var numericPattern = regexp.MustCompile(`^\d+$`)

// ErrNoVersions indicates no tag in the input carried usable version
// information.
var ErrNoVersions = errors.New("no semantic version tags")

// Version is the comparison key extracted from a tag. Original preserves the
// caller's spelling, leading v included.
type Version struct {
	Major    int
	Minor    int
	Patch    int
	Suffix   string
	Original string
}

// Parse extracts a Version from a tag. The second return value is false for
// non-semantic tags. A missing patch component defaults to 0.
func Parse(tag string) (Version, bool) {
	m := tagPattern.FindStringSubmatch(tag)
	if m == nil {
		return Version{}, false
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch := 0
	if m[3] != "" {
		patch, _ = strconv.Atoi(m[3])
	}
	return Version{
		Major:    major,
		Minor:    minor,
		Patch:    patch,
		Suffix:   m[4],
		Original: tag,
	}, true
}

// IsSemantic reports whether a tag follows the loosened semver pattern.
func IsSemantic(tag string) bool {
	return tagPattern.MatchString(tag)
}

// IsNumeric reports whether a tag is a plain whole number.
func IsNumeric(tag string) bool {
	return numericPattern.MatchString(tag)
}

// Compare orders two versions by their (major, minor, patch) tuple. Suffixes
// do not participate in ordering; equal tuples compare as 0 regardless of
// variant.
func Compare(a, b Version) int {
	if a.Major != b.Major {
		return cmp(a.Major, b.Major)
	}
	if a.Minor != b.Minor {
		return cmp(a.Minor, b.Minor)
	}
	return cmp(a.Patch, b.Patch)
}

// Latest returns the tag with the greatest (major, minor, patch) tuple,
// comparing numerically ("v3.11.0" beats "v3.9.1"). Non-semantic tags in the
// input are skipped; if none remain, ErrNoVersions is returned.
//
// Tie-break for equal tuples is pinned: a bare tag beats any suffixed
// variant ("1.2.3" over "1.2.3-alpine"), and among equally-suffixed
// candidates the earliest in input order wins. Automated updates should not
// silently move a project between image variants.
func Latest(tags []string) (string, error) {
	var best Version
	found := false
	for _, tag := range tags {
		v, ok := Parse(tag)
		if !ok {
			continue
		}
		if !found {
			best, found = v, true
			continue
		}
		switch c := Compare(v, best); {
		case c > 0:
			best = v
		case c == 0 && best.Suffix != "" && v.Suffix == "":
			best = v
		}
	}
	if !found {
		return "", ErrNoVersions
	}
	return best.Original, nil
}

// LatestNumeric returns the greatest whole-number tag ("20" beats "9").
// Non-numeric tags are skipped; ties keep the earliest in input order.
func LatestNumeric(tags []string) (string, error) {
	best := ""
	bestN := 0
	for _, tag := range tags {
		if !IsNumeric(tag) {
			continue
		}
		n, err := strconv.Atoi(tag)
		if err != nil {
			continue
		}
		if best == "" || n > bestN {
			best, bestN = tag, n
		}
	}
	if best == "" {
		return "", ErrNoVersions
	}
	return best, nil
}

func cmp(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
