package dockerfile

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrRewriteMismatch indicates a rewrite that did not take effect: either
// the current reference never occurred in the content, or post-rewrite
// verification could not find the new tag. Hard failure: callers must mark
// the update as failed rather than treat it as a no-op.
var ErrRewriteMismatch = errors.New("dockerfile rewrite mismatch")

// Rewrite replaces every occurrence of "FROM <current>" with "FROM <latest>"
// in content and returns the updated text. The match is a literal,
// regex-escaped one; a Dockerfile that lists the same base image in multiple
// stages gets all of them updated in one call.
//
// The rewriter verifies its own work by re-parsing the output. It performs
// no backup of the prior content; that belongs to the caller.
func Rewrite(content string, current, latest ImageRef) (string, error) {
	if !current.SameImage(latest) {
		return "", fmt.Errorf("%w: cannot rewrite %s to different image %s", ErrRewriteMismatch, current.String(), latest.String())
	}

	// The trailing (\s|$) group keeps "node:1.2" from matching inside
	// "node:1.2.3" or "node:1.2-alpine".
	pattern := regexp.MustCompile(`(?m)FROM ` + regexp.QuoteMeta(current.String()) + `(\s|$)`)
	updated := pattern.ReplaceAllString(content, "FROM "+latest.String()+"$1")

	if updated == content {
		return "", fmt.Errorf("%w: %s does not occur in content", ErrRewriteMismatch, current.String())
	}

	for _, ref := range Parse(updated) {
		if ref.SameImage(latest) && ref.Tag == latest.Tag {
			return updated, nil
		}
	}
	return "", fmt.Errorf("%w: %s not found after substitution", ErrRewriteMismatch, latest.String())
}
