package updater

import (
	"context"
	"os"
	"path/filepath"
)

// LocalStore is a FileStore over a directory root. Writes preserve the
// existing file mode.
type LocalStore struct {
	Root string
}

func (s *LocalStore) ReadFile(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.Root, path))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *LocalStore) WriteFile(_ context.Context, path, content string) error {
	full := filepath.Join(s.Root, path)
	mode := os.FileMode(0o644)
	if info, err := os.Stat(full); err == nil {
		mode = info.Mode()
	}
	return os.WriteFile(full, []byte(content), mode)
}
