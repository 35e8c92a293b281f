package gitlab

import (
	"context"
	"strings"

	"github.com/verdantci/evergreen/internal/resolver"
)

// RepoSource exposes a project branch as a resolver.FileSource, letting the
// scanner walk a remote repository without cloning it.
type RepoSource struct {
	client  *Client
	ref     string
	exclude []string
}

// NewRepoSource builds a FileSource over the given branch. Exclude entries
// are path prefixes.
func NewRepoSource(client *Client, ref string, exclude []string) *RepoSource {
	return &RepoSource{client: client, ref: ref, exclude: exclude}
}

// ListDockerfiles walks the repository tree and returns all Dockerfile paths.
func (s *RepoSource) ListDockerfiles(ctx context.Context) ([]string, error) {
	entries, err := s.client.ListTree(ctx, s.ref)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.Type != "blob" {
			continue
		}
		if s.excluded(entry.Path) {
			continue
		}
		name := entry.Path
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		if resolver.IsDockerfileName(name) {
			paths = append(paths, entry.Path)
		}
	}
	return paths, nil
}

// ReadFile fetches the raw file contents at the source ref.
func (s *RepoSource) ReadFile(ctx context.Context, path string) (string, error) {
	data, err := s.client.RawFile(ctx, path, s.ref)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *RepoSource) excluded(path string) bool {
	for _, prefix := range s.exclude {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
