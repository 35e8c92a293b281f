package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultBaseURL is the Docker Hub v2 repository API.
	DefaultBaseURL = "https://registry.hub.docker.com/v2"

	// officialNamespace is prefixed to bare (unnamespaced) image names,
	// following the official-image convention ("python" → "library/python").
	officialNamespace = "library"

	defaultPageSize = 100
	defaultOrdering = "last_updated"
	defaultTimeout  = 30 * time.Second
	defaultRetries  = 3

	userAgent = "evergreen/1.0"
)

// DockerHubClient fetches image tags from the Docker Hub API. It implements
// TagSource.
type DockerHubClient struct {
	// BaseURL of the registry API. DefaultBaseURL when empty.
	BaseURL string

	// PageSize is the number of tags requested per call.
	PageSize int

	// Ordering is the sort-order hint passed to the API.
	Ordering string

	// MaxRetries bounds retry attempts for transient failures.
	MaxRetries int

	httpClient *http.Client
}

// NewDockerHubClient creates a Docker Hub tag source with bounded timeouts
// and retries.
func NewDockerHubClient() *DockerHubClient {
	return &DockerHubClient{
		BaseURL:    DefaultBaseURL,
		PageSize:   defaultPageSize,
		Ordering:   defaultOrdering,
		MaxRetries: defaultRetries,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// DockerHubOptions tune the client; zero values keep the defaults.
type DockerHubOptions struct {
	PageSize int
	Timeout  time.Duration
	Retries  int
}

// NewDockerHubClientWithOptions creates a client with overrides from
// configuration.
func NewDockerHubClientWithOptions(opts DockerHubOptions) *DockerHubClient {
	c := NewDockerHubClient()
	if opts.PageSize > 0 {
		c.PageSize = opts.PageSize
	}
	if opts.Retries > 0 {
		c.MaxRetries = opts.Retries
	}
	if opts.Timeout > 0 {
		c.httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return c
}

// NewDockerHubClientWithHTTP creates a client with a custom base URL and
// http.Client. Used by tests against httptest servers.
func NewDockerHubClientWithHTTP(baseURL string, httpClient *http.Client) *DockerHubClient {
	c := NewDockerHubClient()
	c.BaseURL = baseURL
	c.httpClient = httpClient
	return c
}

// tagList is the relevant slice of the Docker Hub tag-listing response.
type tagList struct {
	Results []struct {
		Name string `json:"name"`
	} `json:"results"`
}

// Tags fetches the tag names for an image. Bare names get the library/
// namespace. Transient failures (network errors, 5xx) are retried with
// exponential backoff; everything that still fails is classified
// ErrUnavailable.
func (c *DockerHubClient) Tags(ctx context.Context, image string) ([]string, error) {
	repo := Repository(image)
	endpoint := fmt.Sprintf("%s/repositories/%s/tags", c.BaseURL, repo)

	params := url.Values{}
	params.Set("page_size", fmt.Sprintf("%d", c.pageSize()))
	if c.Ordering != "" {
		params.Set("ordering", c.Ordering)
	}
	reqURL := endpoint + "?" + params.Encode()

	operation := func() ([]string, error) {
		return c.fetchPage(ctx, image, reqURL)
	}

	tags, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(c.maxRetries())),
	)
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// fetchPage performs one tag-listing request. Non-retryable failures (4xx,
// malformed payload) are wrapped in backoff.Permanent so the retry loop
// stops immediately.
func (c *DockerHubClient) fetchPage(ctx context.Context, image, reqURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, backoff.Permanent(&NetworkError{URL: reqURL, Message: "building request", Err: err})
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: reqURL, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Image: image, StatusCode: resp.StatusCode, Message: resp.Status}
		if resp.StatusCode >= 500 {
			return nil, apiErr // retryable
		}
		return nil, backoff.Permanent(apiErr)
	}

	var list tagList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, backoff.Permanent(&APIError{Image: image, StatusCode: resp.StatusCode, Message: fmt.Sprintf("decoding payload: %v", err)})
	}

	names := make([]string, 0, len(list.Results))
	for _, r := range list.Results {
		names = append(names, r.Name)
	}
	return names, nil
}

// Repository maps an image name to its Docker Hub repository path.
func Repository(image string) string {
	for _, r := range image {
		if r == '/' {
			return image
		}
	}
	return officialNamespace + "/" + image
}

func (c *DockerHubClient) pageSize() int {
	if c.PageSize <= 0 {
		return defaultPageSize
	}
	return c.PageSize
}

func (c *DockerHubClient) maxRetries() int {
	if c.MaxRetries <= 0 {
		return defaultRetries
	}
	return c.MaxRetries
}
