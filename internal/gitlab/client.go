// Package gitlab is a minimal GitLab REST v4 client covering the project,
// branch, repository-file, and merge-request operations the update pipeline
// needs. It is deliberately not a full API binding.
package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/verdantci/evergreen/internal/logger"
)

const defaultTimeout = 30 * time.Second

// Client talks to a single GitLab project through the REST v4 API.
type Client struct {
	baseURL   string
	projectID string
	token     string
	http      *http.Client
}

// Options configures a Client.
type Options struct {
	// BaseURL is the API v4 endpoint, e.g. "https://gitlab.com/api/v4".
	BaseURL string

	// ProjectID is the numeric ID or URL-encoded path of the project.
	ProjectID string

	// Token is sent as PRIVATE-TOKEN on every request.
	Token string

	Timeout time.Duration
}

// NewClient validates the options and returns a project-scoped client.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("gitlab: API URL is required")
	}
	if opts.ProjectID == "" {
		return nil, fmt.Errorf("gitlab: project ID is required")
	}
	if opts.Token == "" {
		return nil, fmt.Errorf("gitlab: access token is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:   opts.BaseURL,
		projectID: url.PathEscape(opts.ProjectID),
		token:     opts.Token,
		http:      &http.Client{Timeout: timeout},
	}, nil
}

// ForProject returns a client scoped to another project, sharing the
// connection and credentials. Used when walking the projects of a group.
func (c *Client) ForProject(projectID string) *Client {
	scoped := *c
	scoped.projectID = url.PathEscape(projectID)
	return &scoped
}

// APIError is a non-2xx response from the GitLab API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gitlab: API error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether the API returned 404.
func (e *APIError) IsNotFound() bool { return e.StatusCode == http.StatusNotFound }

// do performs a request against a project-relative endpoint and decodes the
// JSON response into out (which may be nil).
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body any, out any) error {
	u := fmt.Sprintf("%s/projects/%s%s", c.baseURL, c.projectID, endpoint)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gitlab: encoding request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("gitlab: building request: %w", err)
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger.Debug().Str("method", method).Str("url", u).Msg("gitlab API request")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gitlab: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gitlab: decoding response: %w", err)
	}
	return nil
}

// readErrorMessage extracts the message field GitLab puts in error bodies.
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return "(no response body)"
	}
	var payload struct {
		Message any    `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Message != nil {
			return fmt.Sprintf("%v", payload.Message)
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return string(data)
}

// Project is the subset of project attributes the CLI reports.
type Project struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	PathWithNS    string `json:"path_with_namespace"`
	WebURL        string `json:"web_url"`
	DefaultBranch string `json:"default_branch"`
}

// Project fetches the configured project, which doubles as an access check.
func (c *Client) Project(ctx context.Context) (*Project, error) {
	var p Project
	if err := c.do(ctx, http.MethodGet, "", nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// BranchExists reports whether the named branch exists.
func (c *Client) BranchExists(ctx context.Context, name string) (bool, error) {
	err := c.do(ctx, http.MethodGet, "/repository/branches/"+url.PathEscape(name), nil, nil, nil)
	if err == nil {
		return true, nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.IsNotFound() {
		return false, nil
	}
	return false, err
}

// CreateBranch creates a branch from the given ref.
func (c *Client) CreateBranch(ctx context.Context, name, ref string) error {
	query := url.Values{}
	query.Set("branch", name)
	query.Set("ref", ref)
	return c.do(ctx, http.MethodPost, "/repository/branches", query, nil, nil)
}

// DeleteBranch removes a branch, typically a stale update branch.
func (c *Client) DeleteBranch(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/repository/branches/"+url.PathEscape(name), nil, nil, nil)
}

// TreeEntry is a single entry from the repository tree listing.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// ListTree walks the repository tree of ref recursively, following the
// x-next-page pagination header until exhausted.
func (c *Client) ListTree(ctx context.Context, ref string) ([]TreeEntry, error) {
	var entries []TreeEntry
	page := 1
	for {
		query := url.Values{}
		query.Set("ref", ref)
		query.Set("recursive", "true")
		query.Set("per_page", "100")
		query.Set("page", strconv.Itoa(page))

		var batch []TreeEntry
		next, err := c.doPaged(ctx, fmt.Sprintf("/projects/%s/repository/tree", c.projectID), query, &batch)
		if err != nil {
			return nil, err
		}
		entries = append(entries, batch...)
		if next == 0 {
			return entries, nil
		}
		page = next
	}
}

// ListGroupProjects returns every project of a group, including subgroup
// projects, following pagination until exhausted.
func (c *Client) ListGroupProjects(ctx context.Context, group string) ([]Project, error) {
	var projects []Project
	page := 1
	for {
		query := url.Values{}
		query.Set("include_subgroups", "true")
		query.Set("archived", "false")
		query.Set("per_page", "100")
		query.Set("page", strconv.Itoa(page))

		var batch []Project
		next, err := c.doPaged(ctx, "/groups/"+url.PathEscape(group)+"/projects", query, &batch)
		if err != nil {
			return nil, err
		}
		projects = append(projects, batch...)
		if next == 0 {
			return projects, nil
		}
		page = next
	}
}

// doPaged is a GET against a baseURL-relative path that returns the
// x-next-page header value (0 when absent).
func (c *Client) doPaged(ctx context.Context, path string, query url.Values, out any) (int, error) {
	u := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("gitlab: building request: %w", err)
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("gitlab: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return 0, fmt.Errorf("gitlab: decoding response: %w", err)
	}

	next, _ := strconv.Atoi(resp.Header.Get("x-next-page"))
	return next, nil
}

// RawFile fetches the raw contents of a file at ref.
func (c *Client) RawFile(ctx context.Context, path, ref string) ([]byte, error) {
	query := url.Values{}
	query.Set("ref", ref)
	u := fmt.Sprintf("%s/projects/%s/repository/files/%s/raw?%s",
		c.baseURL, c.projectID, url.PathEscape(path), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("gitlab: building request: %w", err)
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gitlab: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	return io.ReadAll(resp.Body)
}

// UpdateFile commits new content for an existing file on branch.
func (c *Client) UpdateFile(ctx context.Context, path, branch, content, message string) error {
	body := map[string]string{
		"branch":         branch,
		"content":        content,
		"commit_message": message,
	}
	return c.do(ctx, http.MethodPut, "/repository/files/"+url.PathEscape(path), nil, body, nil)
}

// MergeRequest is the subset of MR attributes the CLI reports.
type MergeRequest struct {
	IID          int    `json:"iid"`
	Title        string `json:"title"`
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
	State        string `json:"state"`
	WebURL       string `json:"web_url"`
}

// CreateMergeRequestOptions mirror the POST /merge_requests payload.
type CreateMergeRequestOptions struct {
	SourceBranch       string `json:"source_branch"`
	TargetBranch       string `json:"target_branch"`
	Title              string `json:"title"`
	Description        string `json:"description"`
	RemoveSourceBranch bool   `json:"remove_source_branch"`
}

// CreateMergeRequest opens a merge request.
func (c *Client) CreateMergeRequest(ctx context.Context, opts CreateMergeRequestOptions) (*MergeRequest, error) {
	var mr MergeRequest
	if err := c.do(ctx, http.MethodPost, "/merge_requests", nil, opts, &mr); err != nil {
		return nil, err
	}
	logger.Info().
		Int("iid", mr.IID).
		Str("source", opts.SourceBranch).
		Str("target", opts.TargetBranch).
		Msg("merge request created")
	return &mr, nil
}

// ListMergeRequests returns merge requests filtered by state and, optionally,
// source branch.
func (c *Client) ListMergeRequests(ctx context.Context, state, sourceBranch string) ([]MergeRequest, error) {
	query := url.Values{}
	query.Set("state", state)
	if sourceBranch != "" {
		query.Set("source_branch", sourceBranch)
	}
	var mrs []MergeRequest
	if err := c.do(ctx, http.MethodGet, "/merge_requests", query, nil, &mrs); err != nil {
		return nil, err
	}
	return mrs, nil
}
