// Package dockerfile extracts and rewrites container image references in
// Dockerfile text.
//
// Foundation-tier package: stdlib only, no internal imports. The grammar is
// deliberately loose: it recognizes exactly the subset of Dockerfile syntax
// needed for base-image updates and nothing more. It is not a Dockerfile
// validator.
package dockerfile

import "regexp"

// Grammar constants. Case-sensitivity decisions are pinned here and covered
// by tests so they cannot drift between call sites.
const (
	// fromPrefix marks a candidate line. Matching is case-sensitive,
	// following Docker's own convention of upper-case instructions.
	fromPrefix = "FROM "

	// scratchImage is the reserved no-op base image. Compared
	// case-insensitively.
	scratchImage = "scratch"

	// buildArgPrefix marks an unresolved build-argument reference
	// ($BASE, ${BASE:-default}). Such references carry no concrete
	// version information and are skipped.
	buildArgPrefix = "$"

	// DefaultTag is assumed when a reference carries no explicit tag.
	DefaultTag = "latest"
)

// stageAliasPattern splits off a multi-stage build alias. The AS keyword is
// matched case-insensitively; Docker accepts "as", "AS" and mixtures.
var stageAliasPattern = regexp.MustCompile(`(?i)\s+AS\s+`)
