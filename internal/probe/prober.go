// Package probe checks that stored image URLs still resolve. Session restore
// uses it to evict slots whose objects have disappeared from storage.
package probe

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type Prober interface {
	Reachable(ctx context.Context, rawURL string) bool
}

type httpProber struct {
	client *http.Client
}

func New(timeout time.Duration) Prober {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpProber{client: &http.Client{Timeout: timeout}}
}

// Reachable reports whether the URL still serves its object. Inline data URLs
// are self-contained and always pass. The check is HEAD first with a GET
// fallback for hosts that reject HEAD.
func (p *httpProber) Reachable(ctx context.Context, rawURL string) bool {
	if strings.HasPrefix(rawURL, "data:") {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme == "file" {
		_, err := os.Stat(u.Path)
		return err == nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if ok, decided := p.try(ctx, http.MethodHead, rawURL); decided {
		return ok
	}
	ok, _ := p.try(ctx, http.MethodGet, rawURL)
	return ok
}

// try returns decided=false when the server answered but rejected the method,
// so the caller can retry with GET.
func (p *httpProber) try(ctx context.Context, method, rawURL string) (ok bool, decided bool) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return false, true
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, true
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		return false, false
	}
	return resp.StatusCode >= 200 && resp.StatusCode < 400, true
}
