package registry

import (
	"errors"
	"fmt"
)

// ErrUnavailable classifies every tag-source failure (network error,
// non-2xx status, malformed payload) uniformly. The update resolver treats
// an unavailable registry as "skip this image", never as a scan-fatal error.
var ErrUnavailable = errors.New("registry unavailable")

// NetworkError represents a failure reaching the registry.
type NetworkError struct {
	URL     string
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("registry request to %s failed: %s: %v", e.URL, e.Message, e.Err)
	}
	return fmt.Sprintf("registry request to %s failed: %s", e.URL, e.Message)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is makes every NetworkError match ErrUnavailable.
func (e *NetworkError) Is(target error) bool {
	return target == ErrUnavailable
}

// APIError represents a non-2xx response or undecodable payload from the
// registry API.
type APIError struct {
	Image      string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("registry error for image %q (status %d): %s", e.Image, e.StatusCode, e.Message)
}

// Is makes every APIError match ErrUnavailable.
func (e *APIError) Is(target error) bool {
	return target == ErrUnavailable
}

// IsNotFound reports whether the error indicates an unknown image.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404
}
