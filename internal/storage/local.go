package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// LocalUploader writes objects under a directory; used in development when no
// bucket is configured.
type LocalUploader struct {
	Dir string
}

func (u LocalUploader) Upload(_ context.Context, objectName string, _ string, r io.Reader) (string, error) {
	path := filepath.Join(u.Dir, filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(path), nil
}
