package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type bucketUploader struct {
	baseURL string
	bucket  string
	anonKey string
	client  *http.Client
}

// NewBucketUploader stores objects in a hosted storage bucket over its REST
// surface. Objects land at {base}/storage/v1/object/{bucket}/{path} and are
// publicly readable at {base}/storage/v1/object/public/{bucket}/{path}.
func NewBucketUploader(baseURL, bucket, anonKey string) Uploader {
	return &bucketUploader{
		baseURL: strings.TrimRight(baseURL, "/"),
		bucket:  bucket,
		anonKey: anonKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (u *bucketUploader) UploadBytes(ctx context.Context, objectPath string, contentType string, data []byte) (string, error) {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", u.baseURL, u.bucket, objectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+u.anonKey)
	req.Header.Set("apikey", u.anonKey)
	// Re-uploading the same path replaces the object instead of erroring.
	req.Header.Set("x-upsert", "true")

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("bucket upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("bucket upload: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", u.baseURL, u.bucket, objectPath), nil
}
