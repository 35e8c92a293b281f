package dockerfile

import "strings"

// ImageRef is a structured container image reference parsed from a FROM line.
// It is an immutable value: two refs naming the same image and tag are
// interchangeable for rewrite matching.
type ImageRef struct {
	// Name is the image name, including any namespace segments
	// ("node", "ubi8/python-39"). Never empty for a parsed ref.
	Name string

	// Tag is the image tag. DefaultTag when the source had none.
	Tag string

	// Registry is the explicit registry host, or "" for default-registry
	// (Docker Hub) references.
	Registry string

	// Line is the 1-based source line the ref was parsed from. Zero when
	// the ref was constructed rather than parsed.
	Line int
}

// String renders the reference as it appears in a Dockerfile:
// [registry/]name:tag.
func (r ImageRef) String() string {
	if r.Registry != "" {
		return r.Registry + "/" + r.Name + ":" + r.Tag
	}
	return r.Name + ":" + r.Tag
}

// SameImage reports whether two refs name the same image (registry and name
// match, tag ignored).
func (r ImageRef) SameImage(other ImageRef) bool {
	return r.Registry == other.Registry && r.Name == other.Name
}

// Parse scans Dockerfile content line by line and returns one ImageRef per
// valid FROM line, in source order. Lines referencing scratch or an
// unresolved build argument are skipped. The result is fully materialized;
// re-parsing is the only way to regenerate it, which is fine because
// Dockerfiles are small.
func Parse(content string) []ImageRef {
	var refs []ImageRef
	for i, line := range strings.Split(content, "\n") {
		ref, ok := ParseLine(line)
		if !ok {
			continue
		}
		ref.Line = i + 1
		refs = append(refs, ref)
	}
	return refs
}

// ParseLine parses a single FROM statement into an ImageRef. The second
// return value is false when the line is not a FROM statement or names an
// image with no concrete version information (scratch, build args).
//
// A FROM line referencing a previous build stage by alias ("FROM builder")
// is indistinguishable from a bare image name; no stage-alias resolution is
// attempted. Callers receive the alias as an image name. Known limitation.
func ParseLine(line string) (ImageRef, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, fromPrefix) {
		return ImageRef{}, false
	}
	ref := strings.TrimSpace(trimmed[len(fromPrefix):])

	// Multi-stage builds: keep only the image part, discard the alias.
	if loc := stageAliasPattern.FindStringIndex(ref); loc != nil {
		ref = strings.TrimSpace(ref[:loc[0]])
	}

	if ref == "" || strings.EqualFold(ref, scratchImage) || strings.HasPrefix(ref, buildArgPrefix) {
		return ImageRef{}, false
	}

	// Two or more slashes: first segment is an explicit registry host.
	if strings.Count(ref, "/") >= 2 {
		parts := strings.SplitN(ref, "/", 2)
		name, tag := splitTag(parts[1])
		return ImageRef{Name: name, Tag: tag, Registry: parts[0]}, true
	}

	name, tag := splitTag(ref)
	return ImageRef{Name: name, Tag: tag}, true
}

// splitTag splits a registry-less reference on the last colon of its final
// path segment. No colon means the default tag.
func splitTag(ref string) (name, tag string) {
	slash := strings.LastIndex(ref, "/")
	if colon := strings.LastIndex(ref, ":"); colon > slash {
		return ref[:colon], ref[colon+1:]
	}
	return ref, DefaultTag
}
