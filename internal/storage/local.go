package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Compile-time check that LocalArchiver implements Archiver.
var _ Archiver = (*LocalArchiver)(nil)

// LocalArchiver mirrors artifacts onto local disk.
// Suitable for development; swap for S3Archiver in production.
type LocalArchiver struct {
	dir        string
	httpClient *http.Client
}

// NewLocalArchiver creates a new LocalArchiver storing copies under dir.
// If dir is empty, a directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalArchiver(dir string) (*LocalArchiver, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "sora-archive")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &LocalArchiver{dir: dir, httpClient: &http.Client{}}, nil
}

// Archive downloads the artifact at srcURL into the archive directory and
// returns the local file path.
func (a *LocalArchiver) Archive(ctx context.Context, key, srcURL string) (string, error) {
	body, err := fetch(ctx, a.httpClient, srcURL)
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }()

	dest := filepath.Join(a.dir, filepath.Base(key))
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return "", fmt.Errorf("write archive file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dest)
		return "", fmt.Errorf("close archive file: %w", err)
	}
	return dest, nil
}
