package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileBackend reads objects from Root/<bucket>/<key> on the local disk.
type FileBackend struct {
	root string
}

// NewFileBackend returns a backend rooted at an existing directory.
func NewFileBackend(root string) (*FileBackend, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("file storage: root is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("file storage: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("file storage: %q is not a directory", root)
	}
	return &FileBackend{root: root}, nil
}

func (b *FileBackend) Name() string { return "file" }

// GetObject reads the object file. Keys that escape the bucket are rejected.
func (b *FileBackend) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := b.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return data, err
}

// PutObject writes data to Root/<bucket>/<key>, creating the bucket directory.
func (b *FileBackend) PutObject(ctx context.Context, bucket, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := b.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (b *FileBackend) objectPath(bucket, key string) (string, error) {
	for _, part := range []string{bucket, key} {
		if part == "" || !filepath.IsLocal(part) {
			return "", fmt.Errorf("invalid object path %q", part)
		}
	}
	if strings.ContainsRune(bucket, filepath.Separator) {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	return filepath.Join(b.root, bucket, key), nil
}
