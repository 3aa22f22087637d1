package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type FS struct {
	root   string
	prefix string
}

func NewFS(root, prefix string) (*FS, error) {
	if root == "" {
		return nil, fmt.Errorf("sink: fs root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("sink: create %s: %w", root, err)
	}
	return &FS{root: root, prefix: prefix}, nil
}

// Put writes to a temporary file and renames it into place so readers never
// see a partial file.
func (s *FS) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	_ = contentType
	if err := ctx.Err(); err != nil {
		return err
	}
	cleaned, err := cleanKey(key)
	if err != nil {
		return err
	}
	target := s.Location(cleaned)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("sink: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".econdash-*")
	if err != nil {
		return fmt.Errorf("sink: create temp: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sink: write %s: %w", cleaned, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("sink: close %s: %w", cleaned, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("sink: rename %s: %w", cleaned, err)
	}
	return nil
}

func (s *FS) Location(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(joinPrefix(s.prefix, key)))
}

var _ Sink = (*FS)(nil)
