package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fleetfox/fleetfox/internal/ratelimit"
	"github.com/fleetfox/fleetfox/internal/repository"
	"github.com/fleetfox/fleetfox/pkg/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

type capture struct {
	mu        sync.Mutex
	bodies    [][]byte
	timestamp string
	signature string
	done      chan struct{}
}

func newCaptureServer(t *testing.T) (*httptest.Server, *capture) {
	t.Helper()
	c := &capture{done: make(chan struct{}, 10)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, body)
		c.timestamp = r.Header.Get("X-FleetFox-Timestamp")
		c.signature = r.Header.Get("X-FleetFox-Signature")
		c.mu.Unlock()
		c.done <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func newNotifierFixture(t *testing.T, secret string) (NotifierService, repository.SubscriptionRepository) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := repository.NewSubscriptionRepository(rdb, time.UTC)
	svc := NewNotifierService(repo, testLogger(), secret, 2, 1, 2, nil, ratelimit.Bucket{})
	return svc, repo
}

func TestNotifierDeliversToMatchingSubscription(t *testing.T) {
	srv, c := newCaptureServer(t)
	svc, repo := newNotifierFixture(t, "shh")
	ctx := context.Background()

	if _, err := repo.Create(ctx, domain.Subscription{CallbackURL: srv.URL, ClientID: "acme-cars"}, 3600); err != nil {
		t.Fatalf("Create: %v", err)
	}

	svc.Deliver(ctx, domain.VerdictEvent{
		TaskID:        "T1",
		OverallStatus: domain.StatusPass,
		ClientID:      "acme-cars",
	})

	select {
	case <-c.done:
	case <-time.After(3 * time.Second):
		t.Fatal("delivery never arrived")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.bodies) != 1 {
		t.Fatalf("deliveries = %d", len(c.bodies))
	}

	// The signature binds timestamp and payload.
	mac := hmac.New(sha256.New, []byte("shh"))
	mac.Write([]byte(c.timestamp + "."))
	mac.Write(c.bodies[0])
	want := hex.EncodeToString(mac.Sum(nil))
	if c.signature != want {
		t.Errorf("signature = %q, want %q", c.signature, want)
	}
}

func TestNotifierSkipsNonMatchingSubscription(t *testing.T) {
	srv, c := newCaptureServer(t)
	svc, repo := newNotifierFixture(t, "")
	ctx := context.Background()

	if _, err := repo.Create(ctx, domain.Subscription{CallbackURL: srv.URL, ClientID: "other-fleet"}, 3600); err != nil {
		t.Fatalf("Create: %v", err)
	}

	svc.Deliver(ctx, domain.VerdictEvent{TaskID: "T1", OverallStatus: domain.StatusPass, ClientID: "acme-cars"})

	select {
	case <-c.done:
		t.Fatal("non-matching subscription received a delivery")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestNotifierThrottlesBySubscription(t *testing.T) {
	srv, c := newCaptureServer(t)
	svc, repo := newNotifierFixture(t, "")
	ctx := context.Background()

	if _, err := repo.Create(ctx, domain.Subscription{CallbackURL: srv.URL, MinIntervalSeconds: 60}, 3600); err != nil {
		t.Fatalf("Create: %v", err)
	}

	svc.Deliver(ctx, domain.VerdictEvent{TaskID: "T1", OverallStatus: domain.StatusPass})
	svc.Deliver(ctx, domain.VerdictEvent{TaskID: "T2", OverallStatus: domain.StatusPass})

	select {
	case <-c.done:
	case <-time.After(3 * time.Second):
		t.Fatal("first delivery never arrived")
	}
	select {
	case <-c.done:
		t.Fatal("second delivery was not throttled")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestNotifierRetriesOnFailure(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
		close(done)
	}))
	defer srv.Close()

	svc, repo := newNotifierFixture(t, "")
	ctx := context.Background()
	if _, err := repo.Create(ctx, domain.Subscription{CallbackURL: srv.URL}, 3600); err != nil {
		t.Fatalf("Create: %v", err)
	}

	svc.Deliver(ctx, domain.VerdictEvent{TaskID: "T1", OverallStatus: domain.StatusPass})

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("retry never succeeded")
	}
}
