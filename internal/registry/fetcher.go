// Package registry fetches the available tags for container images from a
// remote registry.
//
// Foundation-tier package: stdlib + net/http + backoff, no internal imports.
package registry

import "context"

// TagSource is the port the update resolver consumes. Implementations fetch
// the flattened tag-name list for an image; pagination and result-size
// limits are their concern, not the caller's.
//
// The interface exists so the resolver and commands can be tested with no
// network dependency.
type TagSource interface {
	// Tags retrieves the available tag names for an image. Failures of
	// any kind match registry.ErrUnavailable via errors.Is.
	Tags(ctx context.Context, image string) ([]string, error)
}
