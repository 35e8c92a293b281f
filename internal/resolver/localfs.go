package resolver

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalSource is a FileSource over a local directory tree. Dockerfiles are
// recognized by filename: "Dockerfile", "Dockerfile.<anything>" and
// "<anything>.dockerfile", matched case-insensitively.
type LocalSource struct {
	Root string

	// Exclude holds path prefixes (relative to Root, slash-separated)
	// that are skipped during the walk, e.g. "test/" or "examples/".
	Exclude []string
}

// NewLocalSource creates a local-directory file source rooted at dir.
func NewLocalSource(dir string, exclude []string) *LocalSource {
	return &LocalSource{Root: dir, Exclude: exclude}
}

// ListDockerfiles walks the tree and returns root-relative Dockerfile paths.
func (l *LocalSource) ListDockerfiles(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(l.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(l.Root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if d.Name() == ".git" || l.excluded(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if l.excluded(rel) {
			return nil
		}
		if IsDockerfileName(d.Name()) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// ReadFile reads a root-relative file.
func (l *LocalSource) ReadFile(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(filepath.Join(l.Root, filepath.FromSlash(path)))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (l *LocalSource) excluded(rel string) bool {
	for _, prefix := range l.Exclude {
		if strings.HasPrefix(rel, prefix) {
			return true
		}
	}
	return false
}

// IsDockerfileName reports whether a filename looks like a Dockerfile.
func IsDockerfileName(name string) bool {
	lower := strings.ToLower(name)
	return lower == "dockerfile" ||
		strings.HasPrefix(lower, "dockerfile.") ||
		strings.HasSuffix(lower, ".dockerfile")
}
