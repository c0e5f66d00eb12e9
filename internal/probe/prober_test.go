package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReachableOKAndMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok.jpg" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := New(5 * time.Second)
	ctx := context.Background()

	if !p.Reachable(ctx, srv.URL+"/ok.jpg") {
		t.Error("existing object reported unreachable")
	}
	if p.Reachable(ctx, srv.URL+"/gone.jpg") {
		t.Error("missing object reported reachable")
	}
}

func TestReachableFallsBackToGET(t *testing.T) {
	var sawGet bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		sawGet = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(5 * time.Second)
	if !p.Reachable(context.Background(), srv.URL+"/img.jpg") {
		t.Error("GET fallback did not succeed")
	}
	if !sawGet {
		t.Error("GET fallback never issued")
	}
}

func TestReachableDataURLAlwaysPasses(t *testing.T) {
	p := New(time.Second)
	if !p.Reachable(context.Background(), "data:image/jpeg;base64,/9j/4AAQ") {
		t.Error("data URL should always be reachable")
	}
}

func TestReachableFileURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.jpg")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	p := New(time.Second)
	if !p.Reachable(context.Background(), "file://"+path) {
		t.Error("existing file reported unreachable")
	}
	if p.Reachable(context.Background(), "file://"+filepath.Join(dir, "nope.jpg")) {
		t.Error("missing file reported reachable")
	}
}

func TestReachableDownHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	p := New(time.Second)
	if p.Reachable(context.Background(), addr+"/img.jpg") {
		t.Error("dead host reported reachable")
	}
}

func TestReachableGarbageURL(t *testing.T) {
	p := New(time.Second)
	if p.Reachable(context.Background(), "::not a url::") {
		t.Error("garbage URL reported reachable")
	}
}
