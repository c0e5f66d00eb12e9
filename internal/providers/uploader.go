package providers

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Uploader stores image bytes and returns the public URL the stored object is
// reachable at. That URL is what goes into the submission batch, so it must
// survive a reachability probe.
type Uploader interface {
	UploadBytes(ctx context.Context, objectPath string, contentType string, data []byte) (string, error)
}

type localUploader struct {
	rootDir string
	baseURL string
}

// NewLocalUploader stores objects under rootDir. When baseURL is set the
// returned URL is baseURL/files/objectPath (the server mounts rootDir there);
// otherwise a file:// URL is returned for CLI use.
func NewLocalUploader(rootDir, baseURL string) Uploader {
	return &localUploader{rootDir: rootDir, baseURL: strings.TrimRight(baseURL, "/")}
}

func (u *localUploader) UploadBytes(ctx context.Context, objectPath string, contentType string, data []byte) (string, error) {
	dst := filepath.Join(u.rootDir, objectPath)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		return "", err
	}
	if u.baseURL != "" {
		return u.baseURL + "/files/" + objectPath, nil
	}
	abs, _ := filepath.Abs(dst)
	return "file://" + abs, nil
}
