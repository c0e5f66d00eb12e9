package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fleetfox/fleetfox/internal/repository"
	"github.com/fleetfox/fleetfox/pkg/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []domain.VerdictEvent
}

func (b *fakeBroadcaster) Broadcast(ev domain.VerdictEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *fakeBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

func newVerdictFixture(t *testing.T) (VerdictService, *fakeBroadcaster) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	b := &fakeBroadcaster{}
	svc := NewVerdictService(repository.NewVerdictRepository(rdb, time.UTC), b, nil, testLogger(), fixedNow)
	return svc, b
}

func TestVerdictIngestStoresAndBroadcasts(t *testing.T) {
	svc, b := newVerdictFixture(t)
	ctx := context.Background()

	stored, err := svc.Ingest(ctx, domain.VerdictEvent{
		TaskID:        "TASK_20260801_1234",
		OverallStatus: domain.StatusReviewNeeded,
		TotalIssues:   2,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !stored {
		t.Fatal("stored = false")
	}
	if b.count() != 1 {
		t.Errorf("broadcasts = %d, want 1", b.count())
	}

	got, err := svc.Get(ctx, "TASK_20260801_1234")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.OverallStatus != domain.StatusReviewNeeded {
		t.Errorf("status = %s", got.OverallStatus)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped")
	}
}

func TestVerdictIngestValidation(t *testing.T) {
	svc, _ := newVerdictFixture(t)
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, domain.VerdictEvent{OverallStatus: domain.StatusPass}); !errors.Is(err, ErrVerdictMissingTask) {
		t.Errorf("missing task err = %v", err)
	}
	if _, err := svc.Ingest(ctx, domain.VerdictEvent{TaskID: "T1", OverallStatus: "excellent"}); !errors.Is(err, ErrVerdictUnknownStatus) {
		t.Errorf("unknown status err = %v", err)
	}
}

func TestVerdictIngestDuplicateSkipsFanout(t *testing.T) {
	svc, b := newVerdictFixture(t)
	ctx := context.Background()

	ev := domain.VerdictEvent{TaskID: "TASK_X", OverallStatus: domain.StatusPass}
	if _, err := svc.Ingest(ctx, ev); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	stored, err := svc.Ingest(ctx, ev)
	if err != nil {
		t.Fatalf("Ingest duplicate: %v", err)
	}
	if stored {
		t.Error("duplicate reported stored")
	}
	if b.count() != 1 {
		t.Errorf("broadcasts = %d, want 1 (no duplicate fanout)", b.count())
	}
}

func TestVerdictListenersInvoked(t *testing.T) {
	svc, _ := newVerdictFixture(t)
	ctx := context.Background()

	var seen []string
	svc.AddListener(func(ctx context.Context, ev domain.VerdictEvent) {
		seen = append(seen, ev.TaskID)
	})

	if _, err := svc.Ingest(ctx, domain.VerdictEvent{TaskID: "T1", OverallStatus: domain.StatusPass}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(seen) != 1 || seen[0] != "T1" {
		t.Errorf("listener saw %v", seen)
	}
}

func TestVerdictListRecent(t *testing.T) {
	svc, _ := newVerdictFixture(t)
	ctx := context.Background()

	for _, id := range []string{"T1", "T2"} {
		if _, err := svc.Ingest(ctx, domain.VerdictEvent{TaskID: id, OverallStatus: domain.StatusPass}); err != nil {
			t.Fatalf("Ingest %s: %v", id, err)
		}
	}
	got, err := svc.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(got) != 2 || got[0].TaskID != "T2" {
		t.Errorf("recent = %+v", got)
	}
}
