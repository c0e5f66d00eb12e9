package repository

import (
	"testing"
	"time"

	"github.com/fleetfox/fleetfox/pkg/domain"
)

func TestSubscriptionCreateAndGet(t *testing.T) {
	ctx, _, rdb := setupRedis(t)
	repo := NewSubscriptionRepository(rdb, time.UTC)

	created, err := repo.Create(ctx, domain.Subscription{
		CallbackURL: "https://example.com/callback",
		ClientID:    "client-a",
	}, 3600)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Error("ID not assigned")
	}
	if created.MinIntervalSeconds != 5 {
		t.Errorf("MinIntervalSeconds = %d, want default 5", created.MinIntervalSeconds)
	}

	got, err := repo.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CallbackURL != "https://example.com/callback" || got.ClientID != "client-a" {
		t.Errorf("subscription = %+v", got)
	}
}

func TestSubscriptionGetNotFound(t *testing.T) {
	ctx, _, rdb := setupRedis(t)
	repo := NewSubscriptionRepository(rdb, time.UTC)

	if _, err := repo.Get(ctx, "nope"); err == nil {
		t.Fatal("expected error for unknown subscription")
	}
}

func TestSubscriptionListActive(t *testing.T) {
	ctx, _, rdb := setupRedis(t)
	repo := NewSubscriptionRepository(rdb, time.UTC)

	created, err := repo.Create(ctx, domain.Subscription{CallbackURL: "https://example.com/cb"}, 3600)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	subs, err := repo.ListActive(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(subs) != 1 || subs[0].ID != created.ID {
		t.Fatalf("subs = %+v", subs)
	}

	// Beyond expiry nothing is active.
	subs, err = repo.ListActive(ctx, time.Now().UTC().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("ListActive future: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("expired subscription still listed: %+v", subs)
	}
}

func TestSubscriptionAllowNotifyThrottles(t *testing.T) {
	ctx, _, rdb := setupRedis(t)
	repo := NewSubscriptionRepository(rdb, time.UTC)

	created, _ := repo.Create(ctx, domain.Subscription{CallbackURL: "https://example.com/cb"}, 3600)

	allowed, err := repo.AllowNotify(ctx, created.ID, 30)
	if err != nil {
		t.Fatalf("AllowNotify: %v", err)
	}
	if !allowed {
		t.Error("first notify not allowed")
	}

	allowed, err = repo.AllowNotify(ctx, created.ID, 30)
	if err != nil {
		t.Fatalf("AllowNotify second: %v", err)
	}
	if allowed {
		t.Error("second notify not throttled")
	}
}

func TestSubscriptionCleanupExpired(t *testing.T) {
	ctx, mr, rdb := setupRedis(t)
	repo := NewSubscriptionRepository(rdb, time.UTC)

	created, _ := repo.Create(ctx, domain.Subscription{CallbackURL: "https://example.com/cb"}, 1)
	mr.FastForward(2 * time.Second)

	removed, err := repo.CleanupExpired(ctx, 100, time.Now().UTC().Add(5*time.Second))
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := repo.Get(ctx, created.ID); err == nil {
		t.Error("expired subscription still readable")
	}
}
