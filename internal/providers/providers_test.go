package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalUploaderWritesFileAndBuildsURL(t *testing.T) {
	tmpDir := t.TempDir()
	uploader := NewLocalUploader(tmpDir, "http://localhost:8080/")

	url, err := uploader.UploadBytes(context.Background(), "uploads/img1_exterior_front.jpg", "image/jpeg", []byte("jpegbytes"))
	if err != nil {
		t.Fatalf("UploadBytes: %v", err)
	}
	if url != "http://localhost:8080/files/uploads/img1_exterior_front.jpg" {
		t.Errorf("url = %q", url)
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, "uploads/img1_exterior_front.jpg"))
	if err != nil {
		t.Fatalf("read uploaded file: %v", err)
	}
	if string(content) != "jpegbytes" {
		t.Errorf("content = %q", content)
	}
}

func TestLocalUploaderFileURLWithoutBase(t *testing.T) {
	uploader := NewLocalUploader(t.TempDir(), "")

	url, err := uploader.UploadBytes(context.Background(), "a/b.jpg", "image/jpeg", []byte("x"))
	if err != nil {
		t.Fatalf("UploadBytes: %v", err)
	}
	if len(url) < 8 || url[:7] != "file://" {
		t.Errorf("url = %q, want file:// prefix", url)
	}
}

func TestBucketUploaderPostsObject(t *testing.T) {
	var gotPath, gotAuth, gotContentType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		b := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(b)
		gotBody = b
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	uploader := NewBucketUploader(srv.URL, "vehicle-qa-images", "anon-key")
	url, err := uploader.UploadBytes(context.Background(), "uploads/img.jpg", "image/jpeg", []byte("data"))
	if err != nil {
		t.Fatalf("UploadBytes: %v", err)
	}

	if gotPath != "/storage/v1/object/vehicle-qa-images/uploads/img.jpg" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer anon-key" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotContentType != "image/jpeg" {
		t.Errorf("content-type = %q", gotContentType)
	}
	if string(gotBody) != "data" {
		t.Errorf("body = %q", gotBody)
	}
	want := srv.URL + "/storage/v1/object/public/vehicle-qa-images/uploads/img.jpg"
	if url != want {
		t.Errorf("url = %q, want %q", url, want)
	}
}

func TestBucketUploaderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"bucket not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	uploader := NewBucketUploader(srv.URL, "missing", "anon-key")
	if _, err := uploader.UploadBytes(context.Background(), "x.jpg", "image/jpeg", []byte("d")); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestNewRedisProvider(t *testing.T) {
	client := NewRedisProvider("localhost:6379", "password")
	if client == nil {
		t.Fatal("Expected redis client to be non-nil")
	}
	defer client.Close()
}
